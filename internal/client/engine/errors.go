package engine

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/common"
)

var ErrDomainRequired = errors.New("domain is required")

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// MutationError is returned by every failed write. The optimistic change has
// already been rolled back when the caller sees it.
type MutationError struct {
	Op     string
	Domain string
	ID     string
	Err    error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Domain, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Domain, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// BatchResult reports the outcome of DeleteMany per id.
type BatchResult struct {
	Succeeded []string
	Failed    []string
	Errs      map[string]error
}

// Err returns nil when every id succeeded, else a *common.BatchError that
// matches common.ErrPartialBatchFailure.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &common.BatchError{Op: OpDelete, Succeeded: len(r.Succeeded), Failed: r.Errs}
}
