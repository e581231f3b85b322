package observability

// Attribute keys shared by log records and span attributes.
const (
	AttrRunID       = "run.id"
	AttrCVEID       = "cve.id"
	AttrStage       = "stage"
	AttrIndexName   = "index.name"
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"
)

// Metric names.
const (
	// MetricStageDuration is a histogram of stage wall-clock time in seconds.
	MetricStageDuration = "threatviz.stage.duration"
)
