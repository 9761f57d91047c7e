package models

// RetrievedChunk is a chunk ranked by similarity to a query.
type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Turn is one question/answer exchange in a session.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// IngestStatus is the outcome of an ingestion batch.
type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestError   IngestStatus = "error"
)

// IngestResult reports what an ingestion batch added.
type IngestResult struct {
	Status      IngestStatus `json:"status"`
	Message     string       `json:"message"`
	AddedChunks int          `json:"added_chunks"`
	Documents   []string     `json:"documents,omitempty"`
}

// AskResponse is the answer to an AskRequest.
type AskResponse struct {
	Answer    string           `json:"answer"`
	SessionID string           `json:"session_id"`
	Sources   []RetrievedChunk `json:"sources"`
}
