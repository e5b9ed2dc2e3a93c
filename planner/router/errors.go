package router

import "errors"

var (
	// ErrValidation marks a malformed request
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedChain marks an unknown target chain
	ErrUnsupportedChain = errors.New("unsupported target chain")
	// ErrQuoteUnavailable marks a source chain that could not be priced, it is skipped
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// Messages reported with computed but unsuccessful plans
const (
	MsgInsufficientFunds = "Insufficient funds across all chains"
	MsgNoValidRoutes     = "No valid routes available"
)
