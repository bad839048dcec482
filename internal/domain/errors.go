package domain

import "errors"

// Pipeline-level failures surfaced to the transport layer.
var (
	ErrExtractionUnavailable = errors.New("extraction unavailable")
	ErrNoDataProcessed       = errors.New("no data processed")
)

// ErrNoReviewURL reports a product link without a recognizable product identifier.
var ErrNoReviewURL = errors.New("product link has no identifier")
