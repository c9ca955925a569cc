package throttle

import "errors"

var (
	ErrInvalidConfig = errors.New("throttle: invalid configuration")
	ErrStoreNil      = errors.New("throttle: store is required")
	ErrLimited       = errors.New("throttle: limit exceeded")
)
