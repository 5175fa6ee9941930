package scheduler

import "errors"

var (
	// ErrDocSourceStoreRequired is returned when a source store is not provided.
	ErrDocSourceStoreRequired = errors.New("doc source store required")

	// ErrLockStoreRequired is returned when a lock store is not provided.
	ErrLockStoreRequired = errors.New("lock store required")

	// ErrProcessorRequired is returned when a processor is not provided.
	ErrProcessorRequired = errors.New("processor required")

	// ErrNotStarted is returned when an operation needs a running scheduler.
	ErrNotStarted = errors.New("scheduler not started")
)
