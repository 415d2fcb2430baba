package model

import "time"

// Status enumerates the lifecycle states of a reservation interval.
// The values are stored verbatim in the reservas.estado column and
// travel unchanged on the wire, which is why they are Spanish.
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusApproved  Status = "aprobada"
	StatusRejected  Status = "rechazada"
	StatusCancelled Status = "cancelada"
	StatusBlock     Status = "bloqueo"
)

// Kind distinguishes user bookings from incident blocks. Mirrors the
// reservas.tipo_reserva column.
type Kind string

const (
	KindNormal Kind = "normal"
	KindBlock  Kind = "bloqueo"
)

// ActiveStates lists the states that occupy a space's timeline. Only
// intervals in one of these states participate in conflict detection
// and calendar occupancy; rejected and cancelled rows are history.
func ActiveStates() []Status {
	return []Status{StatusPending, StatusApproved, StatusBlock}
}

// Interval is a half-open [Start, End) time range claimed on one space.
// It covers both user bookings (Kind normal) and incident blocks
// (Kind bloqueo, no owning user).
//
// Fields:
//  ID        – primary key identifier.
//  SpaceID   – space the interval claims.
//  UserID    – owning user; zero for blocks (stored as NULL).
//  Start     – inclusive start of the claimed range.
//  End       – exclusive end of the claimed range.
//  Status    – lifecycle state (see Status constants).
//  Kind      – normal booking or incident block.
//  Reason    – free-text purpose supplied at creation.
//  DecidedBy – admin who approved/rejected; zero until decided.
//  CreatedAt – when the request was recorded.
type Interval struct {
	ID        uint64    // reservas.id_reserva
	SpaceID   uint64    // reservas.id_espacio
	UserID    uint64    // reservas.id_usuario (nullable)
	Start     time.Time // reservas.fecha_inicio
	End       time.Time // reservas.fecha_fin
	Status    Status    // reservas.estado
	Kind      Kind      // reservas.tipo_reserva
	Reason    string    // reservas.motivo
	DecidedBy uint64    // reservas.decidido_por (nullable)
	CreatedAt time.Time // reservas.fecha_solicitud
}

// Overlaps reports whether the interval intersects [start, end) under
// half-open semantics. Two ranges that only touch at a boundary
// (a.End == b.Start) do not overlap.
func (iv *Interval) Overlaps(start, end time.Time) bool {
	return Overlaps(iv.Start, iv.End, start, end)
}

// Overlaps is the half-open intersection test shared by the conflict
// resolver and the calendar: a and b overlap iff
// a.start < b.end && b.start < a.end.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Covers reports whether the interval contains the given instant,
// i.e. Start <= t < End. The day calendar marks a slot occupied when
// an active interval covers the slot's start instant.
func (iv *Interval) Covers(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}
