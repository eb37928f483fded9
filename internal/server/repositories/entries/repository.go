package entries

import (
	"context"

	"github.com/dmitrijs2005/lifedash/internal/models"
)

// Repository persists entries. Every method is restricted to rows of ownerID.
type Repository interface {
	// List returns the rows of domain ("" for all domains) visible in scope.
	List(ctx context.Context, ownerID, domain, scope string) ([]models.Entry, error)
	// Get locks and returns one row; common.ErrNotFound if absent.
	Get(ctx context.Context, ownerID, id string) (models.Entry, error)
	Insert(ctx context.Context, e models.Entry) error
	Update(ctx context.Context, e models.Entry) error
	// Delete removes id and returns the removed rows.
	Delete(ctx context.Context, ownerID, id string) ([]models.Entry, error)
}
