// Package availability answers read-only questions about occupancy:
// which spaces are free for a candidate range, and the hour-by-hour
// calendar of one space for one day. It never mutates the store.
package availability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/cache"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/store"
)

// Campus spaces are bookable from 08:00 to 22:00, giving the calendar
// its fourteen one-hour slots.
const (
	dayStartHour = 8
	dayEndHour   = 22
)

// SpaceAvailability is one row of a check response.
type SpaceAvailability struct {
	ID        uint64 `json:"id"`
	Name      string `json:"nombre"`
	Type      string `json:"tipo"`
	Capacity  int    `json:"capacidad"`
	Available bool   `json:"disponible"`
}

// Slot is one hour of a space's calendar. The pointer fields are null
// on the wire when the hour is free.
type Slot struct {
	Hour          string  `json:"hora"`
	Available     bool    `json:"disponible"`
	ReservationID *uint64 `json:"reserva_id"`
	Status        *string `json:"estado"`
	Reason        *string `json:"motivo"`
}

// CalendarView is the full-day calendar of one space.
type CalendarView struct {
	Space string `json:"espacio"`
	Date  string `json:"fecha"`
	Slots []Slot `json:"horarios"`
}

// Engine serves availability queries against the interval store, with
// an optional Redis-backed calendar cache in front.
type Engine struct {
	store store.Store
	cache *cache.Calendar
	log   *zap.Logger
}

// NewEngine constructs an availability engine. Store and logger must
// be non-nil; cal may be nil to skip caching.
func NewEngine(st store.Store, cal *cache.Calendar, log *zap.Logger) *Engine {
	if st == nil || log == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{store: st, cache: cal, log: log}
}

// Check reports, for every active space (optionally restricted to one
// type), whether the candidate range [start, start+duration) is free.
// A non-positive duration means one hour.
func (e *Engine) Check(ctx context.Context, start time.Time, duration time.Duration, spaceType string) ([]SpaceAvailability, error) {
	if duration <= 0 {
		duration = time.Hour
	}
	end := start.Add(duration)

	spaces, err := e.store.ListActiveSpaces(ctx, spaceType)
	if err != nil {
		return nil, err
	}

	out := make([]SpaceAvailability, 0, len(spaces))
	for _, sp := range spaces {
		overlapping, err := e.store.ListOverlapping(ctx, sp.ID, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, SpaceAvailability{
			ID:        sp.ID,
			Name:      sp.Name,
			Type:      sp.Type,
			Capacity:  sp.Capacity,
			Available: len(overlapping) == 0,
		})
	}
	return out, nil
}

// Calendar renders the day's slots for one active space. A slot is
// occupied when an active interval covers the slot's start instant,
// so a booking that only touches part of the hour still claims the
// whole slot; this is a coarse display grid, not interval math.
func (e *Engine) Calendar(ctx context.Context, spaceID uint64, day time.Time) (*CalendarView, error) {
	date := day.Format("2006-01-02")

	if e.cache != nil {
		var cached CalendarView
		if e.cache.GetDay(ctx, spaceID, date, &cached) {
			return &cached, nil
		}
	}

	space, err := e.store.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if !space.Active {
		return nil, model.ErrSpaceNotFound
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), dayStartHour, 0, 0, 0, time.Local)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), dayEndHour, 0, 0, 0, time.Local)

	occupied, err := e.store.ListOverlapping(ctx, spaceID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	view := &CalendarView{
		Space: space.Name,
		Date:  date,
		Slots: make([]Slot, 0, dayEndHour-dayStartHour),
	}
	for slot := dayStart; slot.Before(dayEnd); slot = slot.Add(time.Hour) {
		s := Slot{Hour: slot.Format("15:04"), Available: true}
		for i := range occupied {
			if occupied[i].Covers(slot) {
				id := occupied[i].ID
				status := string(occupied[i].Status)
				reason := occupied[i].Reason
				s.Available = false
				s.ReservationID = &id
				s.Status = &status
				s.Reason = &reason
				break
			}
		}
		view.Slots = append(view.Slots, s)
	}

	if e.cache != nil {
		e.cache.SetDay(ctx, spaceID, date, view)
	}
	return view, nil
}
