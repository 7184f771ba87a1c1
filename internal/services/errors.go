package services

import "errors"

// Sentinel errors the transport layer maps onto API responses with
// errors.Is. Services wrap them with product and metric context.
var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownMetric  = errors.New("unknown metric")
	ErrNoData         = errors.New("no analyzable data")
	ErrFetchFailed    = errors.New("upstream fetch failed")
)
