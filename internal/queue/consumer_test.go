package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatEvent(t *testing.T) {
	cases := []struct {
		name string
		ev   ReservationEvent
		want string
	}{
		{
			name: "approved",
			ev: ReservationEvent{
				Type:          EventApproved,
				ReservationID: 7,
				UserID:        2,
				SpaceID:       1,
				SpaceName:     "Sala de Estudio 101",
				Start:         "2025-03-10T10:00:00",
				End:           "2025-03-10T12:00:00",
				DecidedBy:     1,
				OccurredAt:    "2025-03-10T09:00:00",
			},
			want: `[2025-03-10T09:00:00] Reserva aprobada | reserva=7 | usuario=2 | espacio=1 | espacio_nombre="Sala de Estudio 101" | inicio=2025-03-10T10:00:00 | fin=2025-03-10T12:00:00 | decidido_por=1` + "\n",
		},
		{
			name: "cascade cancellation",
			ev: ReservationEvent{
				Type:          EventCancelled,
				ReservationID: 9,
				UserID:        3,
				SpaceID:       4,
				SpaceName:     "Auditorio Central",
				Start:         "2025-03-11T08:00:00",
				End:           "2025-03-11T09:00:00",
				Reason:        "Cancelada por bloqueo por incidencia ID: 5",
				ByIncident:    true,
				IncidentID:    5,
				OccurredAt:    "2025-03-10T18:30:00",
			},
			want: `[2025-03-10T18:30:00] Reserva cancelada por bloqueo | reserva=9 | usuario=3 | espacio=4 | espacio_nombre="Auditorio Central" | inicio=2025-03-11T08:00:00 | fin=2025-03-11T09:00:00 | motivo="Cancelada por bloqueo por incidencia ID: 5" | incidencia=5` + "\n",
		},
		{
			name: "plain cancellation",
			ev: ReservationEvent{
				Type:          EventCancelled,
				ReservationID: 3,
				UserID:        2,
				SpaceID:       1,
				Start:         "2025-03-12T15:00:00",
				End:           "2025-03-12T16:00:00",
				OccurredAt:    "2025-03-10T12:00:00",
			},
			want: `[2025-03-10T12:00:00] Reserva cancelada | reserva=3 | usuario=2 | espacio=1 | espacio_nombre="" | inicio=2025-03-12T15:00:00 | fin=2025-03-12T16:00:00` + "\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatEvent(&tc.ev); got != tc.want {
				t.Errorf("formatEvent:\n got %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestAppendEvent(t *testing.T) {
	t.Chdir(t.TempDir())

	ev := ReservationEvent{
		Type:          EventRejected,
		ReservationID: 11,
		UserID:        2,
		SpaceID:       2,
		SpaceName:     "Sala de Estudio 102",
		Start:         "2025-03-10T10:00:00",
		End:           "2025-03-10T11:00:00",
		DecidedBy:     1,
		OccurredAt:    "2025-03-10T09:30:00",
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if err := appendEvent(body); err != nil {
		t.Fatalf("appendEvent: %v", err)
	}
	if err := appendEvent(body); err != nil {
		t.Fatalf("appendEvent (second): %v", err)
	}

	data, err := os.ReadFile(filepath.Join(reservationLogDir, reservationLogFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "Reserva rechazada") || !strings.Contains(lines[0], "reserva=11") {
		t.Errorf("log line = %q, want rejection for reserva 11", lines[0])
	}

	if err := appendEvent([]byte("{not json")); err == nil {
		t.Error("appendEvent accepted malformed JSON")
	}
}
