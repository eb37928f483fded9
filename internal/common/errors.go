package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrAuthRequired is returned when a write is attempted without a
	// principal, or the remote rejected the credentials.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRemoteFailure matches every failed remote call that is not an auth
	// or not-found condition. See RemoteError.
	ErrRemoteFailure = errors.New("remote failure")

	ErrNotFound = errors.New("not found")

	// ErrPartialBatchFailure is matched by BatchError.
	ErrPartialBatchFailure = errors.New("partial batch failure")

	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrUnavailable marks transport level failures (server down, deadline).
	ErrUnavailable = errors.New("remote unavailable")

	ErrInternal = errors.New("internal error")
)

// RemoteError describes a failed call to the remote record service.
// errors.Is(err, ErrRemoteFailure) is always true for it.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteFailure }

// BatchError reports the ids of a batch operation that failed.
type BatchError struct {
	Op        string
	Succeeded int
	Failed    map[string]error
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%s: %d succeeded, %d failed [%s]", e.Op, e.Succeeded, len(e.Failed), strings.Join(ids, ", "))
}

func (e *BatchError) Is(target error) bool { return target == ErrPartialBatchFailure }
