package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/incident"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/server"
)

type incidentReported struct {
	ID     uint64 `json:"id_incidencia"`
	Status string `json:"estado"`
}

type blockApplied struct {
	Blocked        bool `json:"bloqueado"`
	CancelledCount int  `json:"reservas_canceladas"`
}

type incidentResolved struct {
	Resolved      bool `json:"resuelta"`
	SpaceReleased bool `json:"espacio_liberado"`
}

// IncidentService answers the incid tag: reporting an incident,
// applying its space block and resolving it.
type IncidentService struct {
	engine *incident.Engine
	log    *zap.Logger
	ops    *dispatcher
}

// NewIncidentService builds the service and its operation signatures.
func NewIncidentService(engine *incident.Engine, log *zap.Logger) *IncidentService {
	if engine == nil || log == nil {
		panic("nil dependency passed to NewIncidentService")
	}
	s := &IncidentService{engine: engine, log: log}
	s.ops = newDispatcher(
		operation{name: "report", required: []string{"space", "tipo", "descripcion"}, optional: []string{"user"}, run: s.report},
		operation{name: "block", required: []string{"incidencia", "inicio", "fin"}, run: s.block},
		operation{name: "resolve", required: []string{"incidencia"}, optional: []string{"solucion"}, run: s.resolve},
	)
	return s
}

// Register binds the service to its wire tag.
func (s *IncidentService) Register(r *server.Router) {
	r.Handle("incid", s.handle)
}

func (s *IncidentService) handle(ctx context.Context, payload []byte) (any, error) {
	return s.ops.dispatch(ctx, payload)
}

func (s *IncidentService) report(ctx context.Context, f fields) (any, error) {
	spaceID, err := f.id("space")
	if err != nil {
		return nil, errReportFields
	}
	tipo, err := f.str("tipo")
	if err != nil {
		return nil, errReportFields
	}
	descripcion, err := f.str("descripcion")
	if err != nil {
		return nil, errReportFields
	}
	reporterID, err := f.optID("user")
	if err != nil {
		return nil, errReportFields
	}

	inc, err := s.engine.Report(ctx, spaceID, tipo, descripcion, reporterID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, errSpaceNotFound
		default:
			return nil, s.internal("reportar", err)
		}
	}
	return incidentReported{ID: inc.ID, Status: string(inc.Status)}, nil
}

func (s *IncidentService) block(ctx context.Context, f fields) (any, error) {
	incidentID, err := f.id("incidencia")
	if err != nil {
		return nil, errBlockFields
	}
	start, err := f.when("inicio")
	if err != nil {
		return nil, fieldError(err, errBlockFields)
	}
	end, err := f.when("fin")
	if err != nil {
		return nil, fieldError(err, errBlockFields)
	}

	_, cancelled, err := s.engine.ApplyBlock(ctx, incidentID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidRange):
			return nil, errEndBeforeStart
		case errors.Is(err, model.ErrNotFound):
			return nil, errIncidentNotFound
		case errors.Is(err, model.ErrInvalidState):
			return nil, errAlreadyBlocked
		default:
			return nil, s.internal("bloquear", err)
		}
	}
	return blockApplied{Blocked: true, CancelledCount: cancelled}, nil
}

func (s *IncidentService) resolve(ctx context.Context, f fields) (any, error) {
	incidentID, err := f.id("incidencia")
	if err != nil {
		return nil, errResolveFields
	}

	released, err := s.engine.Resolve(ctx, incidentID, f.optStr("solucion"), 0)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, errIncidentNotFound
		default:
			return nil, s.internal("resolver", err)
		}
	}
	return incidentResolved{Resolved: true, SpaceReleased: released}, nil
}

// internal logs the unexpected error and masks it on the wire.
func (s *IncidentService) internal(op string, err error) error {
	s.log.Error("fallo interno del servicio de incidencias",
		zap.String("operacion", op),
		zap.Error(err),
	)
	return errInternal
}
