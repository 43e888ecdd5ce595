package tsx2pdf

// Stage is a named phase of the conversion pipeline, used both for the
// internal state machine and for progress reporting.
type Stage string

// Pipeline stages, in state-machine order. Failed and Cancelled are
// reachable from any state.
const (
	StageQueued             Stage = "queued"
	StageDetectingFonts     Stage = "detecting-fonts"
	StageFetchingFonts      Stage = "fetching-fonts"
	StageParsing            Stage = "parsing"
	StageExtractingMetadata Stage = "extracting-metadata"
	StageRendering          Stage = "rendering"
	StageLayingOut          Stage = "laying-out"
	StageGeneratingPDF      Stage = "generating-pdf"
	StageCompleted          Stage = "completed"
	StageFailed             Stage = "failed"
	StageCancelled          Stage = "cancelled"
)

// Overall progress checkpoints for the orchestrator-owned stages.
// Engine-internal stages are rescaled into the remaining range.
const (
	progressDetectingFonts = 5
	progressFetchingFonts  = 10
	progressEngineFloor    = 15
	progressCeiling        = 100
)

// ProgressFunc receives pipeline progress. Each emission is
/// independent: percentages within the engine-rescaled range are not
// guaranteed strictly monotonic, so treat every callback on its own
// rather than as a running maximum.
type ProgressFunc func(stage Stage, overallPercent float64)

// FontProgressFunc reports per-font fetch progress during the
// fetching-fonts stage: (1, 2, "Roboto"), (2, 2, "Lato"), ...
type FontProgressFunc func(fetched, total int, family string)

// RawProgressFunc is the callback handed across the engine boundary.
// Its arguments are untyped until validated.
type RawProgressFunc func(stage any, percent any)

// rescaleEngineProgress maps an engine-reported percentage in [0,100]
// linearly into the overall [15,100] range.
func rescaleEngineProgress(enginePercent float64) float64 {
	return progressEngineFloor + enginePercent*(progressCeiling-progressEngineFloor)/100
}
