// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationEventsQueue is the durable queue carrying every
// reservation state change.
const ReservationEventsQueue = "reserva.events"

// Event types carried in ReservationEvent.Type.
const (
	EventApproved  = "reserva.aprobada"
	EventRejected  = "reserva.rechazada"
	EventCancelled = "reserva.cancelada"
)

// ReservationEvent is published when a reservation is approved,
// rejected or cancelled (including cascade cancellations caused by a
// space block). It contains enough information for downstream
// consumers to log or notify without querying the primary database.
type ReservationEvent struct {
	Type          string `json:"tipo"`
	ReservationID uint64 `json:"id_reserva"`
	UserID        uint64 `json:"id_usuario,omitempty"`
	SpaceID       uint64 `json:"id_espacio"`
	SpaceName     string `json:"espacio,omitempty"`
	Start         string `json:"fecha_inicio"`
	End           string `json:"fecha_fin"`
	Reason        string `json:"motivo,omitempty"`
	DecidedBy     uint64 `json:"decidido_por,omitempty"`
	ByIncident    bool   `json:"por_incidencia"`
	IncidentID    uint64 `json:"id_incidencia,omitempty"`
	OccurredAt    string `json:"fecha_evento"`
}
