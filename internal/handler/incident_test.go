package handler_test

import (
	"testing"
)

func TestIncidentFlow(t *testing.T) {
	r := newServices(t)

	got := call(t, r, "incid", `{"space":"2","tipo":"mantenimiento","descripcion":"fuga de agua","user":"3"}`)
	if got["estado"] != "abierta" {
		t.Fatalf("estado = %v, want abierta", got["estado"])
	}
	if id, ok := got["id_incidencia"].(float64); !ok || id != 1 {
		t.Fatalf("id_incidencia = %v, want 1", got["id_incidencia"])
	}

	// Two bookings inside the coming block, one after it.
	call(t, r, "book", `{"user":"2","space":"2","inicio":"2025-03-10T10:00","fin":"2025-03-10T12:00"}`)
	call(t, r, "book", `{"user":"3","space":"2","inicio":"2025-03-10T13:00","fin":"2025-03-10T14:00"}`)
	call(t, r, "book", `{"reserva":"2","estado":"aprobada","admin":"1"}`)
	call(t, r, "book", `{"user":"2","space":"2","inicio":"2025-03-10T18:00","fin":"2025-03-10T19:00"}`)

	blocked := call(t, r, "incid", `{"incidencia":"1","inicio":"2025-03-10T09:00","fin":"2025-03-10T15:00"}`)
	if blocked["bloqueado"] != true {
		t.Fatalf("bloqueado = %v, want true", blocked["bloqueado"])
	}
	if n := blocked["reservas_canceladas"].(float64); n != 2 {
		t.Fatalf("reservas_canceladas = %v, want 2", n)
	}

	// The blocked range rejects new bookings.
	if msg := callErr(t, r, "book", `{"user":"2","space":"2","inicio":"2025-03-10T10:00","fin":"2025-03-10T11:00"}`); msg != "El espacio no está disponible en ese horario" {
		t.Fatalf("create during block error = %q", msg)
	}

	// The calendar shows the block with its incident note, and the
	// booking outside the block untouched.
	view := call(t, r, "avail", `{"space":"2","fecha":"2025-03-10"}`)
	byHour := map[string]map[string]any{}
	for _, s := range view["horarios"].([]any) {
		slot := s.(map[string]any)
		byHour[slot["hora"].(string)] = slot
	}
	if slot := byHour["10:00"]; slot["estado"] != "bloqueo" {
		t.Fatalf("slot 10:00 estado = %v, want bloqueo", slot["estado"])
	}
	if slot := byHour["10:00"]; slot["motivo"] != "Bloqueo por incidencia: fuga de agua" {
		t.Fatalf("slot 10:00 motivo = %v", slot["motivo"])
	}
	if slot := byHour["18:00"]; slot["estado"] != "pendiente" {
		t.Fatalf("slot 18:00 estado = %v, want pendiente", slot["estado"])
	}

	resolved := call(t, r, "incid", `{"incidencia":"1","solucion":"válvula reemplazada"}`)
	if resolved["resuelta"] != true || resolved["espacio_liberado"] != true {
		t.Fatalf("resolve = %v, want resuelta and espacio_liberado", resolved)
	}

	// The range is bookable again once the block is gone.
	call(t, r, "book", `{"user":"2","space":"2","inicio":"2025-03-10T10:00","fin":"2025-03-10T11:00"}`)

	// Resolving twice reports that no block was left to release.
	resolved = call(t, r, "incid", `{"incidencia":"1"}`)
	if resolved["resuelta"] != true || resolved["espacio_liberado"] != false {
		t.Fatalf("second resolve = %v, want resuelta without release", resolved)
	}
}

func TestIncidentValidation(t *testing.T) {
	r := newServices(t)
	call(t, r, "incid", `{"space":"3","tipo":"electricidad","descripcion":"enchufes sueltos"}`)
	call(t, r, "incid", `{"incidencia":"1","inicio":"2025-03-10T09:00","fin":"2025-03-10T10:00"}`)

	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{
			"report unknown space",
			`{"space":"999","tipo":"mantenimiento","descripcion":"x"}`,
			"Espacio no encontrado",
		},
		{
			"report empty descripcion",
			`{"space":"2","tipo":"mantenimiento","descripcion":""}`,
			"Espacio, tipo y descripción son requeridos",
		},
		{
			"block unknown incident",
			`{"incidencia":"9","inicio":"2025-03-10T09:00","fin":"2025-03-10T10:00"}`,
			"Incidencia no encontrada",
		},
		{
			"block backwards range",
			`{"incidencia":"1","inicio":"2025-03-10T10:00","fin":"2025-03-10T10:00"}`,
			"La fecha de fin debe ser posterior a la de inicio",
		},
		{
			"second block on one incident",
			`{"incidencia":"1","inicio":"2025-03-10T11:00","fin":"2025-03-10T12:00"}`,
			"La incidencia ya tiene un bloqueo activo",
		},
		{
			"block empty inicio",
			`{"incidencia":"1","inicio":"","fin":"2025-03-10T10:00"}`,
			"ID de incidencia, inicio y fin son requeridos",
		},
		{
			"resolve unknown incident",
			`{"incidencia":"9"}`,
			"Incidencia no encontrada",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := callErr(t, r, "incid", tc.payload); got != tc.want {
				t.Fatalf("error = %q, want %q", got, tc.want)
			}
		})
	}
}
