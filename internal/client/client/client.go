package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/models"
)

type Client interface {
	List(ctx context.Context, domain string, scope string) ([]models.Entry, error)
	Create(ctx context.Context, entry models.Entry, scope string) (models.Entry, error)
	Update(ctx context.Context, id string, patch models.Patch) (models.Entry, error)
	Delete(ctx context.Context, id string) error

	Authenticated() bool
	Principal() string
}

// Presigned is a short-lived object storage URL for an entry attachment.
type Presigned struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}
