// Package store defines the persistence contract of the reservation
// engine. Two backends implement it: sqlite (the default, embedded)
// and mysql (the provisioned production database). Engines depend on
// the interface only, so the backend is chosen once at startup from
// the database URL.
package store

import (
	"context"
	"time"

	"github.com/iliyamo/campus-space-reservation/internal/model"
)

// TimeLayout is the timestamp format used in wire responses
// (fecha_inicio, fecha_fin, fecha_solicitud, fecha_reporte).
const TimeLayout = "2006-01-02T15:04:05"

// BookingSummary is the per-booking row returned by ListByUser,
// joined with the space name and shaped for the wire.
type BookingSummary struct {
	ID        uint64 `json:"id"`
	Space     string `json:"espacio"`
	Start     string `json:"fecha_inicio"`
	End       string `json:"fecha_fin"`
	Status    string `json:"estado"`
	Reason    string `json:"motivo"`
	Requested string `json:"fecha_solicitud"`
}

// IncidentSummary is the incident listing row, joined with the space
// and reporter names.
type IncidentSummary struct {
	ID           uint64 `json:"id"`
	SpaceID      uint64 `json:"id_espacio"`
	SpaceName    string `json:"espacio_nombre"`
	Type         string `json:"tipo_incidencia"`
	Description  string `json:"descripcion"`
	Status       string `json:"estado"`
	ReporterName string `json:"usuario_reporta_nombre"`
	ReportedAt   string `json:"fecha_reporte"`
}

// Store is the full persistence surface consumed by the booking,
// availability and incident engines. The user and space directories
// are read-only: this engine verifies and lists them but never
// writes them.
//
// Methods return the model sentinel errors where applicable:
// entity-qualified NotFound variants for missing rows,
// ErrInvalidState from failed state transitions, and errors wrapping
// ErrStoreUnavailable when the backend cannot be reached.
type Store interface {
	// InsertInterval persists a new interval and fills in its
	// generated ID and CreatedAt.
	InsertInterval(ctx context.Context, iv *model.Interval) error

	// GetInterval loads one interval by id.
	GetInterval(ctx context.Context, id uint64) (*model.Interval, error)

	// ListOverlapping returns the intervals on a space in an active
	// state (pendiente, aprobada, bloqueo) that overlap [start, end)
	// under half-open semantics.
	ListOverlapping(ctx context.Context, spaceID uint64, start, end time.Time) ([]model.Interval, error)

	// TransitionInterval atomically moves an interval from one of the
	// given states to the target state (single-row compare-and-set).
	// A non-zero decidedBy is recorded on the row. Returns the updated
	// interval, ErrBookingNotFound when the id does not exist, or
	// ErrInvalidState when the current state is not in from.
	TransitionInterval(ctx context.Context, id uint64, from []model.Status, to model.Status, decidedBy uint64) (*model.Interval, error)

	// ListByUser returns the user's bookings joined with space names,
	// newest first.
	ListByUser(ctx context.Context, userID uint64) ([]BookingSummary, error)

	// GetUser looks up a directory user.
	GetUser(ctx context.Context, id uint64) (*model.User, error)

	// GetSpace looks up a directory space, active or not.
	GetSpace(ctx context.Context, id uint64) (*model.Space, error)

	// ListActiveSpaces returns active spaces, optionally filtered by
	// type. An empty spaceType means all types.
	ListActiveSpaces(ctx context.Context, spaceType string) ([]model.Space, error)

	// InsertIncident persists a new incident report and fills in its
	// generated ID and ReportedAt.
	InsertIncident(ctx context.Context, inc *model.Incident) error

	// GetIncident loads one incident by id.
	GetIncident(ctx context.Context, id uint64) (*model.Incident, error)

	// ListIncidents returns all incidents joined with space and
	// reporter names, newest first.
	ListIncidents(ctx context.Context) ([]IncidentSummary, error)

	// ApplyBlock runs the incident cascade in one transaction: every
	// pendiente/aprobada booking on the incident's space overlapping
	// [start, end) is cancelled, a block interval covering the range
	// is inserted, and the incident is attached to it and moved to
	// en_progreso. Returns the new block's id and the bookings that
	// were cancelled.
	ApplyBlock(ctx context.Context, incidentID, spaceID uint64, start, end time.Time, reason string) (uint64, []model.Interval, error)

	// ResolveIncident marks the incident resuelta and hard-deletes
	// its block interval if one is attached, in one transaction.
	// Returns whether a block was actually released. Resolving an
	// already-resolved incident succeeds with released=false.
	ResolveIncident(ctx context.Context, incidentID uint64, solution string, resolvedBy uint64) (bool, error)

	// Close releases the backend's resources.
	Close() error
}
