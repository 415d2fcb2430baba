// Package model defines the domain entities of the reservation engine
// together with the sentinel errors shared across layers. Handlers use
// the sentinels to distinguish failure classes without string matching:
// ErrSlotUnavailable is terminal for the request, ErrStoreUnavailable
// is retryable, and so on.
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a requested interval has
// end <= start.
var ErrInvalidRange = errors.New("invalid range")

// ErrSlotUnavailable is returned by create when the requested range
// conflicts with an existing pending, approved or block interval.
var ErrSlotUnavailable = errors.New("slot unavailable")

// ErrNotFound is returned when a referenced interval, incident, space
// or user does not exist. The entity-qualified variants below wrap it
// so callers can match either the broad class or the specific entity.
var ErrNotFound = errors.New("not found")

// ErrInvalidState is returned when a lifecycle transition is attempted
// from a state that forbids it, such as deciding a non-pending booking
// or cancelling one that is already cancelled.
var ErrInvalidState = errors.New("invalid state")

// ErrStoreUnavailable is returned when the underlying persistence
// layer cannot be reached. The request fails but the connection stays
// open for subsequent requests.
var ErrStoreUnavailable = errors.New("store unavailable")

// Entity-qualified NotFound variants. errors.Is(err, ErrNotFound)
// holds for all of them.
var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrSpaceNotFound    = fmt.Errorf("space %w", ErrNotFound)
	ErrBookingNotFound  = fmt.Errorf("booking %w", ErrNotFound)
	ErrIncidentNotFound = fmt.Errorf("incident %w", ErrNotFound)
)
