// Package booking implements the reservation lifecycle: creation with
// conflict detection, administrative decisions, owner cancellation and
// the per-user listing.
//
// The core correctness property lives in Create: the conflict check
// and the insert behind it are serialized per space, so two
// overlapping requests for the same space can never both succeed.
// Requests for different spaces never block one another.
package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/queue"
	"github.com/iliyamo/campus-space-reservation/internal/store"
)

// EventPublisher pushes reservation lifecycle events to the broker.
// A publish failure never aborts the state change that produced the
// event; callers only learn whether notification went out.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.ReservationEvent) error
}

// CacheInvalidator drops cached calendars for a space after a
// mutation changes its occupancy.
type CacheInvalidator interface {
	InvalidateSpace(ctx context.Context, spaceID uint64)
}

// Engine carries the reservation lifecycle operations. The events and
// cache dependencies are optional; a nil publisher means decisions are
// simply not notified and a nil cache means calendars are always read
// from the store.
type Engine struct {
	store  store.Store
	events EventPublisher
	cache  CacheInvalidator
	locks  *SpaceLocks
	log    *zap.Logger
}

// NewEngine constructs a booking engine. Store, locks and logger must
// be non-nil; the locks registry is shared with the incident cascade.
func NewEngine(st store.Store, events EventPublisher, cache CacheInvalidator, locks *SpaceLocks, log *zap.Logger) *Engine {
	if st == nil || locks == nil || log == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{
		store:  st,
		events: events,
		cache:  cache,
		locks:  locks,
		log:    log,
	}
}

// Create validates the request, runs the conflict check under the
// space's lock and inserts the reservation in state pendiente.
// Inactive users and spaces are reported as not found, the same as
// missing ones.
func (e *Engine) Create(ctx context.Context, userID, spaceID uint64, start, end time.Time, reason string) (*model.Interval, error) {
	if !end.After(start) {
		return nil, model.ErrInvalidRange
	}

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, model.ErrUserNotFound
	}
	space, err := e.store.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if !space.Active {
		return nil, model.ErrSpaceNotFound
	}

	lock := e.locks.Get(spaceID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := e.HasConflict(ctx, spaceID, start, end, 0)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, model.ErrSlotUnavailable
	}

	iv := &model.Interval{
		UserID:  userID,
		SpaceID: spaceID,
		Start:   start,
		End:     end,
		Status:  model.StatusPending,
		Kind:    model.KindNormal,
		Reason:  reason,
	}
	if err := e.store.InsertInterval(ctx, iv); err != nil {
		return nil, err
	}
	e.invalidate(ctx, spaceID)

	e.log.Info("reserva creada",
		zap.Uint64("reserva", iv.ID),
		zap.Uint64("usuario", userID),
		zap.Uint64("espacio", spaceID),
	)
	return iv, nil
}

// HasConflict reports whether any active interval (pendiente,
// aprobada or bloqueo) on the space overlaps [start, end) under
// half-open semantics. excludeID skips one interval, for checks on
// behalf of an interval that already exists; pass 0 to check them all.
func (e *Engine) HasConflict(ctx context.Context, spaceID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	overlapping, err := e.store.ListOverlapping(ctx, spaceID, start, end)
	if err != nil {
		return false, err
	}
	for _, iv := range overlapping {
		if iv.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// Decide applies an administrative decision to a pendiente
// reservation. The transition is a single-row compare-and-set, so two
// concurrent decisions race on the store and exactly one wins; the
// loser gets ErrInvalidState. Returns the updated reservation and
// whether the decision event reached the broker.
func (e *Engine) Decide(ctx context.Context, intervalID uint64, outcome model.Status, adminID uint64) (*model.Interval, bool, error) {
	if outcome != model.StatusApproved && outcome != model.StatusRejected {
		return nil, false, fmt.Errorf("estado %q: %w", outcome, model.ErrInvalidState)
	}

	iv, err := e.store.TransitionInterval(ctx, intervalID, []model.Status{model.StatusPending}, outcome, adminID)
	if err != nil {
		return nil, false, err
	}
	e.invalidate(ctx, iv.SpaceID)

	evType := queue.EventApproved
	if outcome == model.StatusRejected {
		evType = queue.EventRejected
	}
	notified := e.publish(ctx, iv, evType, 0)

	e.log.Info("reserva decidida",
		zap.Uint64("reserva", iv.ID),
		zap.String("estado", string(outcome)),
		zap.Uint64("admin", adminID),
		zap.Bool("notificado", notified),
	)
	return iv, notified, nil
}

// Cancel cancels a reservation on behalf of its owner. A reservation
// belonging to someone else is reported as not found rather than
// forbidden, so callers cannot probe other users' bookings. Already
// cancelled or rejected reservations fail with ErrInvalidState.
func (e *Engine) Cancel(ctx context.Context, intervalID, userID uint64) (*model.Interval, error) {
	current, err := e.store.GetInterval(ctx, intervalID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && current.UserID != userID {
		return nil, model.ErrBookingNotFound
	}

	iv, err := e.store.TransitionInterval(ctx, intervalID,
		[]model.Status{model.StatusPending, model.StatusApproved}, model.StatusCancelled, 0)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, iv.SpaceID)
	e.publish(ctx, iv, queue.EventCancelled, 0)

	e.log.Info("reserva cancelada",
		zap.Uint64("reserva", iv.ID),
		zap.Uint64("usuario", userID),
	)
	return iv, nil
}

// ListByUser returns the user's bookings, most recently requested
// first. An unknown user simply has no bookings.
func (e *Engine) ListByUser(ctx context.Context, userID uint64) ([]store.BookingSummary, error) {
	return e.store.ListByUser(ctx, userID)
}

func (e *Engine) invalidate(ctx context.Context, spaceID uint64) {
	if e.cache != nil {
		e.cache.InvalidateSpace(ctx, spaceID)
	}
}

// publish sends one lifecycle event, reporting whether it reached the
// broker. incidentID tags cascade cancellations; 0 means a direct
// user or admin action.
func (e *Engine) publish(ctx context.Context, iv *model.Interval, evType string, incidentID uint64) bool {
	if e.events == nil {
		return false
	}
	ev := queue.ReservationEvent{
		Type:          evType,
		ReservationID: iv.ID,
		UserID:        iv.UserID,
		SpaceID:       iv.SpaceID,
		Start:         iv.Start.Format(store.TimeLayout),
		End:           iv.End.Format(store.TimeLayout),
		Reason:        iv.Reason,
		DecidedBy:     iv.DecidedBy,
		ByIncident:    incidentID != 0,
		IncidentID:    incidentID,
		OccurredAt:    time.Now().Format(store.TimeLayout),
	}
	if sp, err := e.store.GetSpace(ctx, iv.SpaceID); err == nil {
		ev.SpaceName = sp.Name
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("evento de reserva no publicado",
			zap.Uint64("reserva", iv.ID),
			zap.String("tipo", evType),
			zap.Error(err),
		)
		return false
	}
	return true
}
