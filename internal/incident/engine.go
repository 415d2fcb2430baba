// Package incident handles maintenance incidents and the space blocks
// they trigger: reporting, blocking a space with cascade cancellation
// of the bookings caught in the range, and resolution, which releases
// the block.
package incident

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/booking"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/queue"
	"github.com/iliyamo/campus-space-reservation/internal/store"
)

// EventPublisher pushes cascade cancellation events to the broker so
// the owners of cancelled bookings can be notified.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.ReservationEvent) error
}

// CacheInvalidator drops cached calendars for a space after its
// occupancy changes.
type CacheInvalidator interface {
	InvalidateSpace(ctx context.Context, spaceID uint64)
}

// Engine carries the incident operations. It shares the per-space
// lock registry with the booking engine so a block and a create on
// the same space serialize; without that, a booking could slip in
// between the cascade scan and the block insert.
type Engine struct {
	store  store.Store
	events EventPublisher
	cache  CacheInvalidator
	locks  *booking.SpaceLocks
	log    *zap.Logger
}

// NewEngine constructs an incident engine. Store, locks and logger
// must be non-nil.
func NewEngine(st store.Store, events EventPublisher, cache CacheInvalidator, locks *booking.SpaceLocks, log *zap.Logger) *Engine {
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

// Report files a new incident against a space in state abierta. The
// space may be inactive; incidents are often the reason it is.
func (e *Engine) Report(ctx context.Context, spaceID uint64, incidentType, description string, reporterID uint64) (*model.Incident, error) {
	if _, err := e.store.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}
	inc := &model.Incident{
		SpaceID:     spaceID,
		Type:        incidentType,
		Description: description,
		ReportedBy:  reporterID,
		Status:      model.IncidentOpen,
	}
	if err := e.store.InsertIncident(ctx, inc); err != nil {
		return nil, err
	}
	e.log.Info("incidencia reportada",
		zap.Uint64("incidencia", inc.ID),
		zap.Uint64("espacio", spaceID),
		zap.String("tipo", incidentType),
	)
	return inc, nil
}

// ApplyBlock blocks the incident's space for [start, end): every
// pendiente or aprobada booking overlapping the range is cancelled in
// the same transaction that inserts the block, and the incident moves
// to en_progreso. An incident holds at most one block at a time.
// Returns the block id and how many bookings were cancelled; one
// cancellation event is published per affected booking.
func (e *Engine) ApplyBlock(ctx context.Context, incidentID uint64, start, end time.Time) (uint64, int, error) {
	if !end.After(start) {
		return 0, 0, model.ErrInvalidRange
	}
	inc, err := e.store.GetIncident(ctx, incidentID)
	if err != nil {
		return 0, 0, err
	}
	// Fast path only; the store re-checks inside the cascade
	// transaction, which is what holds under concurrent ApplyBlock
	// calls on the same incident.
	if inc.BlockID != 0 {
		return 0, 0, fmt.Errorf("incidencia %d ya tiene un bloqueo activo: %w", incidentID, model.ErrInvalidState)
	}
	reason := "Bloqueo por incidencia: " + inc.Description

	lock := e.locks.Get(inc.SpaceID)
	lock.Lock()
	defer lock.Unlock()

	blockID, cancelled, err := e.store.ApplyBlock(ctx, incidentID, inc.SpaceID, start, end, reason)
	if err != nil {
		return 0, 0, err
	}
	e.invalidate(ctx, inc.SpaceID)

	spaceName := ""
	if sp, err := e.store.GetSpace(ctx, inc.SpaceID); err == nil {
		spaceName = sp.Name
	}
	for i := range cancelled {
		e.publishCancellation(ctx, &cancelled[i], spaceName, incidentID)
	}

	e.log.Info("espacio bloqueado",
		zap.Uint64("incidencia", incidentID),
		zap.Uint64("espacio", inc.SpaceID),
		zap.Uint64("bloqueo", blockID),
		zap.Int("reservas_canceladas", len(cancelled)),
	)
	return blockID, len(cancelled), nil
}

// Resolve marks the incident resuelta and releases its block if one
// is attached. Resolving is idempotent: a second call succeeds and
// reports released=false.
func (e *Engine) Resolve(ctx context.Context, incidentID uint64, solution string, resolverID uint64) (bool, error) {
	inc, err := e.store.GetIncident(ctx, incidentID)
	if err != nil {
		return false, err
	}
	released, err := e.store.ResolveIncident(ctx, incidentID, solution, resolverID)
	if err != nil {
		return false, err
	}
	if released {
		e.invalidate(ctx, inc.SpaceID)
	}
	e.log.Info("incidencia resuelta",
		zap.Uint64("incidencia", incidentID),
		zap.Bool("espacio_liberado", released),
	)
	return released, nil
}

// List returns every incident with space and reporter names attached.
func (e *Engine) List(ctx context.Context) ([]store.IncidentSummary, error) {
	return e.store.ListIncidents(ctx)
}

func (e *Engine) invalidate(ctx context.Context, spaceID uint64) {
	if e.cache != nil {
		e.cache.InvalidateSpace(ctx, spaceID)
	}
}

func (e *Engine) publishCancellation(ctx context.Context, iv *model.Interval, spaceName string, incidentID uint64) {
	if e.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		Type:          queue.EventCancelled,
		ReservationID: iv.ID,
		UserID:        iv.UserID,
		SpaceID:       iv.SpaceID,
		SpaceName:     spaceName,
		Start:         iv.Start.Format(store.TimeLayout),
		End:           iv.End.Format(store.TimeLayout),
		Reason:        iv.Reason,
		ByIncident:    true,
		IncidentID:    incidentID,
		OccurredAt:    time.Now().Format(store.TimeLayout),
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("evento de cancelación no publicado",
			zap.Uint64("reserva", iv.ID),
			zap.Uint64("incidencia", incidentID),
			zap.Error(err),
		)
	}
}
