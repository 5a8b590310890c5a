package sync

import "errors"

var (
	// ErrOffline is returned when Sync is called without connectivity.
	// It is a precondition failure, not a retry policy: the queue is left
	// untouched and the caller decides when to try again.
	ErrOffline = errors.New("sync unavailable: device is offline")

	// ErrAlreadySyncing is returned when a Sync call finds another pass
	// already in flight.
	ErrAlreadySyncing = errors.New("sync already in progress")
)
