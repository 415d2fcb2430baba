package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-space-reservation/internal/incident"
	"github.com/iliyamo/campus-space-reservation/internal/model"
)

// IncidentHandler is the HTTP face of the incident engine, used by the
// administrative tools that manage incidents over REST instead of the
// socket protocol. Responses reuse the wire vocabulary so both
// surfaces speak the same language.
type IncidentHandler struct {
	engine *incident.Engine
}

// NewIncidentHandler constructs the handler. The engine must be
// non-nil.
func NewIncidentHandler(engine *incident.Engine) *IncidentHandler {
	if engine == nil {
		panic("nil engine passed to NewIncidentHandler")
	}
	return &IncidentHandler{engine: engine}
}

// Report handles POST /v1/incidents.
func (h *IncidentHandler) Report(c echo.Context) error {
	var body struct {
		SpaceID     uint64 `json:"id_espacio"`
		Type        string `json:"tipo_incidencia"`
		Description string `json:"descripcion"`
		ReportedBy  uint64 `json:"id_usuario_reporta"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cuerpo de la petición inválido"})
	}
	if body.SpaceID == 0 || body.Type == "" || body.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(errReportFields)})
	}

	inc, err := h.engine.Report(c.Request().Context(), body.SpaceID, body.Type, body.Description, body.ReportedBy)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": string(errSpaceNotFound)})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": string(errInternal)})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id_incidencia": inc.ID, "estado": inc.Status})
}

// List handles GET /v1/incidents.
func (h *IncidentHandler) List(c echo.Context) error {
	rows, err := h.engine.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": string(errInternal)})
	}
	return c.JSON(http.StatusOK, rows)
}

// Block handles POST /v1/incidents/:id/block. The cascade cancels
// every overlapping booking before the block is inserted, so the
// response carries the number of cancellations.
func (h *IncidentHandler) Block(c echo.Context) error {
	incidentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || incidentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ID de incidencia inválido"})
	}
	var body struct {
		Start string `json:"fecha_inicio"`
		End   string `json:"fecha_fin"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cuerpo de la petición inválido"})
	}
	start, err := parseWhen(body.Start)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fieldError(err, errBlockFields).Error()})
	}
	end, err := parseWhen(body.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fieldError(err, errBlockFields).Error()})
	}

	_, cancelled, err := h.engine.ApplyBlock(c.Request().Context(), incidentID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidRange):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": string(errEndBeforeStart)})
		case errors.Is(err, model.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": string(errIncidentNotFound)})
		case errors.Is(err, model.ErrInvalidState):
			return c.JSON(http.StatusConflict, echo.Map{"error": string(errAlreadyBlocked)})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": string(errInternal)})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"bloqueado": true, "reservas_canceladas": cancelled})
}

// Resolve handles POST /v1/incidents/:id/resolve.
func (h *IncidentHandler) Resolve(c echo.Context) error {
	incidentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || incidentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ID de incidencia inválido"})
	}
	var body struct {
		Solution   string `json:"solucion"`
		ResolvedBy uint64 `json:"id_usuario_resuelve"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cuerpo de la petición inválido"})
	}

	released, err := h.engine.Resolve(c.Request().Context(), incidentID, body.Solution, body.ResolvedBy)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": string(errIncidentNotFound)})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": string(errInternal)})
	}
	return c.JSON(http.StatusOK, echo.Map{"resuelta": true, "espacio_liberado": released})
}
