package handler

import "errors"

// wireError is client-facing message text. Handlers translate every
// domain and decode failure into one of these before returning; the
// socket server and the REST handlers send the text verbatim in an
// {error: ...} payload.
type wireError string

func (e wireError) Error() string { return string(e) }

// The wire vocabulary. Clients match on these strings, so they change
// only together with the clients.
var (
	errUnknownAction = wireError("Acción no reconocida")
	errInternal      = wireError("Error interno del servicio")

	errCreateFields   = wireError("Usuario, espacio, inicio y fin son requeridos")
	errDecideFields   = wireError("ID de reserva, estado y admin son requeridos")
	errCancelFields   = wireError("ID de reserva es requerido")
	errListFields     = wireError("ID de usuario es requerido")
	errCheckFields    = wireError("Fecha es requerida")
	errCalendarFields = wireError("ID del espacio y fecha son requeridos")
	errBlockFields    = wireError("ID de incidencia, inicio y fin son requeridos")
	errResolveFields  = wireError("ID de incidencia es requerido")
	errReportFields   = wireError("Espacio, tipo y descripción son requeridos")

	errEndBeforeStart   = wireError("La fecha de fin debe ser posterior a la de inicio")
	errSlotTaken        = wireError("El espacio no está disponible en ese horario")
	errBadState         = wireError("Estado inválido. Use 'aprobada' o 'rechazada'")
	errUserNotFound     = wireError("Usuario no encontrado")
	errSpaceNotFound    = wireError("Espacio no encontrado")
	errBookingNotFound  = wireError("Reserva no encontrada")
	errBookingNotOwned  = wireError("Reserva no encontrada o no autorizada")
	errIncidentNotFound = wireError("Incidencia no encontrada")
	errAlreadyDecided   = wireError("La reserva ya fue procesada")
	errAlreadyCancelled = wireError("La reserva ya fue cancelada o rechazada")
	errAlreadyBlocked   = wireError("La incidencia ya tiene un bloqueo activo")
)

// fieldError keeps a client-facing parse error and folds anything else
// into the operation's required-fields message.
func fieldError(err error, required wireError) error {
	var w wireError
	if errors.As(err, &w) {
		return w
	}
	return required
}
