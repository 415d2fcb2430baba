package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/booking"
	"github.com/iliyamo/campus-space-reservation/internal/handler"
	"github.com/iliyamo/campus-space-reservation/internal/incident"
	"github.com/iliyamo/campus-space-reservation/internal/store/sqlite"
)

func newIncidentHandler(t *testing.T) (*handler.IncidentHandler, *incident.Engine) {
	t.Helper()
	st, err := sqlite.Open(sqlite.Config{
		Path:   filepath.Join(t.TempDir(), "reservas.db"),
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	eng := incident.NewEngine(st, nil, nil, booking.NewSpaceLocks(), zap.NewNop())
	return handler.NewIncidentHandler(eng), eng
}

// post runs one handler against a JSON body, with an optional :id
// path parameter, and decodes the response object.
func post(t *testing.T, h echo.HandlerFunc, body, id string) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return rec.Code, got
}

func TestIncidentHandlerReport(t *testing.T) {
	h, _ := newIncidentHandler(t)

	code, got := post(t, h.Report, `{"id_espacio":2,"tipo_incidencia":"mantenimiento","descripcion":"proyector quemado","id_usuario_reporta":3}`, "")
	if code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %v", code, http.StatusCreated, got)
	}
	if got["estado"] != "abierta" {
		t.Fatalf("estado = %v, want abierta", got["estado"])
	}

	code, got = post(t, h.Report, `{"id_espacio":999,"tipo_incidencia":"mantenimiento","descripcion":"x"}`, "")
	if code != http.StatusNotFound {
		t.Fatalf("unknown space status = %d, want %d: %v", code, http.StatusNotFound, got)
	}
	if got["error"] != "Espacio no encontrado" {
		t.Fatalf("unknown space error = %v", got["error"])
	}

	code, got = post(t, h.Report, `{"id_espacio":2,"descripcion":"sin tipo"}`, "")
	if code != http.StatusBadRequest {
		t.Fatalf("missing tipo status = %d, want %d: %v", code, http.StatusBadRequest, got)
	}
}

func TestIncidentHandlerList(t *testing.T) {
	h, eng := newIncidentHandler(t)
	ctx := context.Background()
	if _, err := eng.Report(ctx, 2, "mantenimiento", "gotera", 3); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if _, err := eng.Report(ctx, 3, "limpieza", "derrame", 2); err != nil {
		t.Fatalf("Report: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/incidents", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	byID := map[float64]map[string]any{}
	for _, row := range rows {
		byID[row["id"].(float64)] = row
	}
	first := byID[1]
	if first["espacio_nombre"] != "Sala de Estudio 102" {
		t.Fatalf("espacio_nombre = %v, want Sala de Estudio 102", first["espacio_nombre"])
	}
	if first["usuario_reporta_nombre"] != "Carla Mena" {
		t.Fatalf("usuario_reporta_nombre = %v, want Carla Mena", first["usuario_reporta_nombre"])
	}
}

func TestIncidentHandlerBlockAndResolve(t *testing.T) {
	h, eng := newIncidentHandler(t)
	if _, err := eng.Report(context.Background(), 2, "mantenimiento", "fuga de agua", 3); err != nil {
		t.Fatalf("Report: %v", err)
	}

	code, got := post(t, h.Block, `{"fecha_inicio":"2025-03-10T09:00","fecha_fin":"2025-03-10T15:00"}`, "1")
	if code != http.StatusOK {
		t.Fatalf("block status = %d, want %d: %v", code, http.StatusOK, got)
	}
	if got["bloqueado"] != true {
		t.Fatalf("bloqueado = %v, want true", got["bloqueado"])
	}
	if got["reservas_canceladas"].(float64) != 0 {
		t.Fatalf("reservas_canceladas = %v, want 0", got["reservas_canceladas"])
	}

	// One active block per incident.
	code, got = post(t, h.Block, `{"fecha_inicio":"2025-03-11T09:00","fecha_fin":"2025-03-11T15:00"}`, "1")
	if code != http.StatusConflict {
		t.Fatalf("second block status = %d, want %d: %v", code, http.StatusConflict, got)
	}

	code, got = post(t, h.Block, `{"fecha_inicio":"2025-03-10T09:00","fecha_fin":"2025-03-10T15:00"}`, "9")
	if code != http.StatusNotFound {
		t.Fatalf("unknown incident status = %d, want %d: %v", code, http.StatusNotFound, got)
	}

	code, got = post(t, h.Block, `{"fecha_inicio":"2025-03-10T15:00","fecha_fin":"2025-03-10T09:00"}`, "1")
	if code != http.StatusBadRequest {
		t.Fatalf("backwards range status = %d, want %d: %v", code, http.StatusBadRequest, got)
	}

	code, got = post(t, h.Resolve, `{"solucion":"válvula reemplazada","id_usuario_resuelve":1}`, "1")
	if code != http.StatusOK {
		t.Fatalf("resolve status = %d, want %d: %v", code, http.StatusOK, got)
	}
	if got["resuelta"] != true || got["espacio_liberado"] != true {
		t.Fatalf("resolve = %v, want resuelta and espacio_liberado", got)
	}

	code, got = post(t, h.Resolve, `{}`, "1")
	if code != http.StatusOK || got["espacio_liberado"] != false {
		t.Fatalf("second resolve = %d %v, want 200 without release", code, got)
	}

	code, _ = post(t, h.Resolve, `{}`, "9")
	if code != http.StatusNotFound {
		t.Fatalf("resolve unknown status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	if err := handler.Health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "ok")
	}
}
