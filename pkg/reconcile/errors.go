package reconcile

import "errors"

var (
	ErrStoreNil      = errors.New("reconcile: store is required")
	ErrGatewayNil    = errors.New("reconcile: payment gateway is required")
	ErrNotifierNil   = errors.New("reconcile: notifier is required")
	ErrCatalogNil    = errors.New("reconcile: tier catalog is required")
	ErrInvalidConfig = errors.New("reconcile: invalid configuration")
	ErrRunInProgress = errors.New("reconcile: a run is already in progress")
)
