package fusego

import (
	"errors"
	"fmt"

	"github.com/fusego/fusego/index"
)

var (
	// ErrNotIndexed is returned when a query arrives before Index has
	// completed.
	ErrNotIndexed = errors.New("engine not indexed")

	// ErrAlreadyIndexed is returned when Index is called more than once.
	ErrAlreadyIndexed = errors.New("engine already indexed")

	// ErrEmbeddingUnavailable is returned when the embedder fails. The
	// underlying embedder error can be accessed via errors.Unwrap.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// ErrInvalidParameter indicates a request parameter that fails validation
// before any retrieval work begins.
type ErrInvalidParameter struct {
	Param  string
	Reason string
	cause  error
}

func (e *ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

func (e *ErrInvalidParameter) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, index.ErrNotBuilt) {
		return fmt.Errorf("%w: %w", ErrNotIndexed, err)
	}
	if errors.Is(err, index.ErrAlreadyBuilt) {
		return fmt.Errorf("%w: %w", ErrAlreadyIndexed, err)
	}
	if errors.Is(err, index.ErrInvalidK) {
		return &ErrInvalidParameter{Param: "k", Reason: "must be positive", cause: err}
	}

	var sp *index.ErrInvalidSearchParam
	if errors.As(err, &sp) {
		return &ErrInvalidParameter{Param: sp.Param, Reason: sp.Reason, cause: err}
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrInvalidParameter{
			Param:  "query",
			Reason: fmt.Sprintf("dimension mismatch: expected %d, got %d", dm.Expected, dm.Actual),
			cause:  err,
		}
	}

	return err
}
