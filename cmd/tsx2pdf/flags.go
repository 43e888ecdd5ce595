package main

import (
	flag "github.com/spf13/pflag"
)

// cliFlags holds all parsed command-line flags.
type cliFlags struct {
	config   string
	output   string
	format   string
	workers  int
	strict   bool
	quiet    bool
	verbose  bool
	version  bool
	pageSize string
	margin   float64
	standard string
	title    string
	subject  string
	author   string
	keywords string
}

// parseFlags parses args (including the program name) and returns the
// flags plus remaining positional arguments.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("tsx2pdf", flag.ContinueOnError)

	flags := &cliFlags{}
	fs.StringVarP(&flags.config, "config", "c", "", "YAML config file or config name")
	fs.StringVarP(&flags.output, "output", "o", "", "output PDF path (default: input with .pdf extension)")
	fs.StringVar(&flags.format, "format", "", "source format: markdown or html (default: by extension)")
	fs.IntVarP(&flags.workers, "workers", "w", 0, "converter pool size for batch input (0 = auto)")
	fs.BoolVar(&flags.strict, "strict", false, "run full structural PDF validation on the output")
	fs.BoolVarP(&flags.quiet, "quiet", "q", false, "errors only")
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging and progress output")
	fs.BoolVar(&flags.version, "version", false, "print version and exit")

	fs.StringVar(&flags.pageSize, "page-size", "", "page size: Letter, A4, or Legal")
	fs.Float64Var(&flags.margin, "margin", -1, "margin for all sides, in points")
	fs.StringVar(&flags.standard, "standard", "", "PDF standard: PDF17 or PDFA1b")
	fs.StringVar(&flags.title, "title", "", "document title metadata")
	fs.StringVar(&flags.subject, "subject", "", "document subject metadata")
	fs.StringVar(&flags.author, "author", "", "document author metadata")
	fs.StringVar(&flags.keywords, "keywords", "", "document keywords metadata")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, nil, err
	}

	return flags, fs.Args(), nil
}
