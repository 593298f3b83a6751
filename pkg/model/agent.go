package model

// AgentResponse is the outcome of an agent query: the generated answer
// plus the ordered, deduplicated document IDs it was grounded on.
type AgentResponse struct {
	Answer     string
	Sources    []DocumentID
	Confidence float64
}

// Generation is the raw output of the external generation provider.
type Generation struct {
	Text       string
	Confidence float64
}
