package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/booking"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/server"
)

type createdBooking struct {
	ID     uint64 `json:"id"`
	Status string `json:"estado"`
}

type decidedBooking struct {
	Updated  bool `json:"updated"`
	Notified bool `json:"notificado"`
}

type cancelledBooking struct {
	Cancelled bool `json:"cancelled"`
}

// BookingService answers the book tag: reservation creation, the
// administrative decision, owner cancellation and the per-user
// listing. The listing and the cancellation keep extra request shapes
// because older clients still send the getmyreservas and cancel
// marker forms.
type BookingService struct {
	engine *booking.Engine
	log    *zap.Logger
	ops    *dispatcher
}

// NewBookingService builds the service and its operation signatures.
func NewBookingService(engine *booking.Engine, log *zap.Logger) *BookingService {
	if engine == nil || log == nil {
		panic("nil dependency passed to NewBookingService")
	}
	s := &BookingService{engine: engine, log: log}
	s.ops = newDispatcher(
		operation{name: "create", required: []string{"user", "space", "inicio", "fin"}, optional: []string{"motivo"}, run: s.create},
		operation{name: "decide", required: []string{"reserva", "estado", "admin"}, run: s.decide},
		operation{name: "cancel", required: []string{"reserva", "user"}, run: s.cancel},
		operation{name: "cancel", required: []string{"cancel", "reserva", "user"}, run: s.cancel},
		operation{name: "cancel", required: []string{"reserva", "action", "user"}, run: s.cancel},
		operation{name: "list", required: []string{"user", "action"}, run: s.list},
		operation{name: "list", required: []string{"getmyreservas", "user"}, run: s.list},
	)
	return s
}

// Register binds the service to its wire tag.
func (s *BookingService) Register(r *server.Router) {
	r.Handle("book", s.handle)
}

func (s *BookingService) handle(ctx context.Context, payload []byte) (any, error) {
	return s.ops.dispatch(ctx, payload)
}

func (s *BookingService) create(ctx context.Context, f fields) (any, error) {
	userID, err := f.id("user")
	if err != nil {
		return nil, errCreateFields
	}
	spaceID, err := f.id("space")
	if err != nil {
		return nil, errCreateFields
	}
	start, err := f.when("inicio")
	if err != nil {
		return nil, fieldError(err, errCreateFields)
	}
	end, err := f.when("fin")
	if err != nil {
		return nil, fieldError(err, errCreateFields)
	}

	iv, err := s.engine.Create(ctx, userID, spaceID, start, end, f.optStr("motivo"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidRange):
			return nil, errEndBeforeStart
		case errors.Is(err, model.ErrUserNotFound):
			return nil, errUserNotFound
		case errors.Is(err, model.ErrSpaceNotFound):
			return nil, errSpaceNotFound
		case errors.Is(err, model.ErrSlotUnavailable):
			return nil, errSlotTaken
		default:
			return nil, s.internal("crear", err)
		}
	}
	return createdBooking{ID: iv.ID, Status: string(iv.Status)}, nil
}

func (s *BookingService) decide(ctx context.Context, f fields) (any, error) {
	reservationID, err := f.id("reserva")
	if err != nil {
		return nil, errDecideFields
	}
	estado, err := f.str("estado")
	if err != nil {
		return nil, errDecideFields
	}
	adminID, err := f.id("admin")
	if err != nil {
		return nil, errDecideFields
	}
	outcome := model.Status(estado)
	if outcome != model.StatusApproved && outcome != model.StatusRejected {
		return nil, errBadState
	}

	_, notified, err := s.engine.Decide(ctx, reservationID, outcome, adminID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, errBookingNotFound
		case errors.Is(err, model.ErrInvalidState):
			return nil, errAlreadyDecided
		default:
			return nil, s.internal("decidir", err)
		}
	}
	return decidedBooking{Updated: true, Notified: notified}, nil
}

func (s *BookingService) cancel(ctx context.Context, f fields) (any, error) {
	if _, ok := f["action"]; ok {
		if action, err := f.str("action"); err != nil || action != "cancel" {
			return nil, errUnknownAction
		}
	}
	reservationID, err := f.id("reserva")
	if err != nil {
		return nil, errCancelFields
	}
	// An unusable owner id can never match the booking's owner.
	userID, err := f.id("user")
	if err != nil {
		return nil, errBookingNotOwned
	}

	if _, err := s.engine.Cancel(ctx, reservationID, userID); err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, errBookingNotOwned
		case errors.Is(err, model.ErrInvalidState):
			return nil, errAlreadyCancelled
		default:
			return nil, s.internal("cancelar", err)
		}
	}
	return cancelledBooking{Cancelled: true}, nil
}

func (s *BookingService) list(ctx context.Context, f fields) (any, error) {
	if _, ok := f["action"]; ok {
		if action, err := f.str("action"); err != nil || action != "get" {
			return nil, errUnknownAction
		}
	}
	userID, err := f.id("user")
	if err != nil {
		return nil, errListFields
	}

	rows, err := s.engine.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("listar", err)
	}
	return rows, nil
}

// internal logs the unexpected error and masks it on the wire.
func (s *BookingService) internal(op string, err error) error {
	s.log.Error("fallo interno del servicio de reservas",
		zap.String("operacion", op),
		zap.Error(err),
	)
	return errInternal
}
