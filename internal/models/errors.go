package models

import (
	"errors"
	"fmt"
)

// Pipeline errors. All of them are fatal for a run.
var (
	// Normalization errors
	ErrEmptySeries       = errors.New("empty series: no observations in requested range")
	ErrEmptyIntersection = errors.New("empty intersection: aligned table has no rows")
	ErrDuplicateColumn   = errors.New("duplicate column name")
	ErrUnsortedSeries    = errors.New("series dates must be strictly increasing")

	// Transformation errors
	ErrInvalidLag       = errors.New("invalid lag: must be at least 1")
	ErrInvalidWindow    = errors.New("invalid window: must be at least 2")
	ErrIndexMismatch    = errors.New("series do not share the same date index")
	ErrEmptyWindow      = errors.New("empty window: no observations in year range")
	ErrInvalidYearRange = errors.New("invalid year range")

	// Inference errors
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrLengthMismatch      = errors.New("samples differ in length")
	ErrZeroVariance        = errors.New("sample has zero variance")
)

// ProviderError reports a network, HTTP or decoding failure from an external data provider.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
