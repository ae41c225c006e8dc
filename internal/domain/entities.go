package domain

// Document is a unit of ingested text with its provenance.
type Document struct {
	Text     string `json:"text"`
	SourceID string `json:"source"`
}

// EmbeddedDocument is a Document plus its embedding vector.
type EmbeddedDocument struct {
	Document
	Vector []float32 `json:"vector"`
}

// ScoredDocument is a single retrieval hit. Higher scores are more relevant.
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
