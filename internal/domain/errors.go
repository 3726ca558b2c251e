package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrServerUnavailable = errors.New("server unavailable")
	ErrClientOrAuth      = errors.New("client or auth error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrDataIncomplete    = errors.New("incomplete response data")
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrContextDone       = errors.New("context cancelled")
	ErrLockHeld          = errors.New("lock already held")
	ErrBetCapReached     = errors.New("bet cap reached")
)
