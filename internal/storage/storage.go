// Package storage keeps the document catalog: what has been ingested, when, and with
// which embedding model. The vector snapshot stays the source of truth for retrieval.
package storage

import (
	"context"

	"github.com/hyperjump/tutor/internal/models"
)

// Catalog defines document record persistence operations.
type Catalog interface {
	// RecordDocuments upserts records by source id in one transaction.
	RecordDocuments(ctx context.Context, records []models.DocumentRecord) error
	GetDocument(ctx context.Context, sourceID string) (*models.DocumentRecord, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentRecord, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
