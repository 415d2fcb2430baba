package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/availability"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/server"
)

// A check without an hour looks at the opening of the bookable day.
const checkDefaultHour = 8

// AvailabilityService answers the avail tag: the which-spaces-are-free
// check for a candidate range and the one-day calendar of a space.
type AvailabilityService struct {
	engine *availability.Engine
	log    *zap.Logger
	ops    *dispatcher
}

// NewAvailabilityService builds the service and its operation
// signatures.
func NewAvailabilityService(engine *availability.Engine, log *zap.Logger) *AvailabilityService {
	if engine == nil || log == nil {
		panic("nil dependency passed to NewAvailabilityService")
	}
	s := &AvailabilityService{engine: engine, log: log}
	s.ops = newDispatcher(
		operation{name: "check", required: []string{"fecha"}, optional: []string{"hora", "duracion", "tipo"}, run: s.check},
		operation{name: "calendar", required: []string{"space", "fecha"}, run: s.calendar},
	)
	return s
}

// Register binds the service to its wire tag.
func (s *AvailabilityService) Register(r *server.Router) {
	r.Handle("avail", s.handle)
}

func (s *AvailabilityService) handle(ctx context.Context, payload []byte) (any, error) {
	return s.ops.dispatch(ctx, payload)
}

func (s *AvailabilityService) check(ctx context.Context, f fields) (any, error) {
	fecha, err := f.str("fecha")
	if err != nil {
		return nil, errCheckFields
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(fecha), time.Local)
	if err != nil {
		return nil, wireError("Formato de fecha/hora inválido: " + fecha)
	}

	start := day.Add(checkDefaultHour * time.Hour)
	if hora := strings.TrimSpace(f.optStr("hora")); hora != "" {
		t, err := time.ParseInLocation("15:04", hora, time.Local)
		if err != nil {
			return nil, wireError("Formato de fecha/hora inválido: " + hora)
		}
		start = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	}

	hours, err := f.optHours("duracion", 1)
	if err != nil {
		return nil, err
	}

	rows, err := s.engine.Check(ctx, start, time.Duration(hours)*time.Hour, f.optStr("tipo"))
	if err != nil {
		return nil, s.internal("consultar", err)
	}
	return rows, nil
}

func (s *AvailabilityService) calendar(ctx context.Context, f fields) (any, error) {
	spaceID, err := f.id("space")
	if err != nil {
		return nil, errCalendarFields
	}
	day, err := f.day("fecha")
	if err != nil {
		return nil, fieldError(err, errCalendarFields)
	}

	view, err := s.engine.Calendar(ctx, spaceID, day)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, errSpaceNotFound
		default:
			return nil, s.internal("calendario", err)
		}
	}
	return view, nil
}

// internal logs the unexpected error and masks it on the wire.
func (s *AvailabilityService) internal(op string, err error) error {
	s.log.Error("fallo interno del servicio de disponibilidad",
		zap.String("operacion", op),
		zap.Error(err),
	)
	return errInternal
}
