package nodes

// Graph node keys.
const (
	NodeAvailability = "Availability"
	NodeExtractor    = "Extractor"
	NodeResolver     = "Resolver"
	NodeClassifier   = "Classifier"
	NodeDispatcher   = "Dispatcher"
	NodeComposer     = "Composer"
	NodeDegraded     = "Degraded"
)
