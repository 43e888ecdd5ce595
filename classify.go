package tsx2pdf

import "log/slog"

// Classified partitions detected font requirements by provenance.
// The three slices are disjoint, preserve input order, and their
// union equals the input.
type Classified struct {
	Google  []FontRequirement
	WebSafe []FontRequirement
	Custom  []FontRequirement
}

// classifyFonts partitions requirements by source. This is the single
// site that inspects FontSource; it performs no network or cache
// access.
//
// Web-safe fonts are dropped from further processing (the engine has
// them built in). Custom fonts are logged as unsupported and dropped
// without failing: no upload capability exists in the surrounding
// product. Only Google fonts proceed to fetching.
func classifyFonts(reqs []FontRequirement, logger *slog.Logger) Classified {
	var out Classified
	for _, r := range reqs {
		switch r.Source {
		case SourceGoogle:
			out.Google = append(out.Google, r)
		case SourceWebSafe:
			out.WebSafe = append(out.WebSafe, r)
		case SourceCustom:
			logger.Warn("custom font not supported, skipping",
				"family", r.Family, "weight", r.Weight, "style", r.Style)
			out.Custom = append(out.Custom, r)
		}
	}
	return out
}
