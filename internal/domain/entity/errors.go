package entity

import "errors"

var (
	// ErrRemoteUnavailable is returned when the rate source cannot be reached
	ErrRemoteUnavailable = errors.New("remote rate source unavailable")

	// ErrEmptyResult is returned when the store or the rate source has no usable data
	ErrEmptyResult = errors.New("empty result")

	// ErrRateNotFound is returned when the rate table has no quote for a currency
	ErrRateNotFound = errors.New("rate not found")

	// ErrAmountOutOfRange is returned when a conversion does not fit in a finite float64
	ErrAmountOutOfRange = errors.New("amount out of range")
)
