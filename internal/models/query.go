package models

import (
	"fmt"
	"strings"
)

// MaxTopK caps the number of chunks a single request may retrieve.
const MaxTopK = 50

// RetrieveQuery is a similarity search request. K <= 0 means the configured default.
type RetrieveQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate ensures the query is non-empty and caps K.
func (q *RetrieveQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K > MaxTopK {
		q.K = MaxTopK
	}
	return nil
}

// AskRequest is a question against the corpus within an optional session.
type AskRequest struct {
	Question    string `json:"question"`
	CodeContext string `json:"code_context,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	K           int    `json:"k,omitempty"`
}

// Validate ensures the question is non-empty and caps K.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.K > MaxTopK {
		r.K = MaxTopK
	}
	return nil
}
