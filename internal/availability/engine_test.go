package availability_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/availability"
	"github.com/iliyamo/campus-space-reservation/internal/cache"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/store/sqlite"
)

func newTestEngine(t *testing.T) (*availability.Engine, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open(sqlite.Config{
		Path:   filepath.Join(t.TempDir(), "reservas.db"),
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	// A cache without a Redis client behind it: reads miss, writes
	// drop, which is exactly the degraded mode to keep working in.
	cal := cache.NewCalendar(nil, "", 0, zap.NewNop())
	return availability.NewEngine(st, cal, zap.NewNop()), st
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.Local)
}

func seed(t *testing.T, st *sqlite.Store, spaceID uint64, start, end time.Time, status model.Status, kind model.Kind, reason string) uint64 {
	t.Helper()
	iv := &model.Interval{
		UserID:  2,
		SpaceID: spaceID,
		Start:   start,
		End:     end,
		Status:  status,
		Kind:    kind,
		Reason:  reason,
	}
	if status == model.StatusBlock {
		iv.UserID = 0
	}
	if err := st.InsertInterval(context.Background(), iv); err != nil {
		t.Fatalf("InsertInterval: %v", err)
	}
	return iv.ID
}

func TestCheck(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	seed(t, st, 1, at(10, 0), at(12, 0), model.StatusApproved, model.KindNormal, "Taller")

	byID := func(rows []availability.SpaceAvailability) map[uint64]bool {
		m := make(map[uint64]bool, len(rows))
		for _, r := range rows {
			m[r.ID] = r.Available
		}
		return m
	}

	rows, err := e.Check(ctx, at(10, 0), time.Hour, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d active spaces, want 4", len(rows))
	}
	avail := byID(rows)
	if avail[1] {
		t.Error("space 1 reported free during its booking")
	}
	for _, id := range []uint64{2, 3, 4} {
		if !avail[id] {
			t.Errorf("space %d reported busy, want free", id)
		}
	}

	// The booking ends at 12:00; a range starting there does not
	// conflict.
	rows, err = e.Check(ctx, at(12, 0), time.Hour, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !byID(rows)[1] {
		t.Error("space 1 reported busy for a range touching its end")
	}

	// Two-hour range straddling the booking start.
	rows, err = e.Check(ctx, at(9, 0), 2*time.Hour, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if byID(rows)[1] {
		t.Error("space 1 reported free for a straddling range")
	}

	// Non-positive duration defaults to one hour.
	rows, err = e.Check(ctx, at(11, 0), 0, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if byID(rows)[1] {
		t.Error("space 1 reported free at 11:00 with the default duration")
	}

	salas, err := e.Check(ctx, at(10, 0), time.Hour, "sala")
	if err != nil {
		t.Fatalf("Check(sala): %v", err)
	}
	if len(salas) != 2 {
		t.Fatalf("got %d salas, want 2", len(salas))
	}
	for _, r := range salas {
		if r.Type != "sala" {
			t.Errorf("filtered row has type %q", r.Type)
		}
	}
}

func TestCalendar(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	booked := seed(t, st, 1, at(9, 0), at(10, 30), model.StatusPending, model.KindNormal, "Ensayo")
	seed(t, st, 1, at(14, 0), at(15, 0), model.StatusCancelled, model.KindNormal, "Cancelada")
	seed(t, st, 1, at(20, 0), at(22, 0), model.StatusBlock, model.KindBlock, "Bloqueo por incidencia: Fuga")

	view, err := e.Calendar(ctx, 1, at(0, 0))
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if view.Space != "Sala de Estudio 101" {
		t.Errorf("Space = %q, want Sala de Estudio 101", view.Space)
	}
	if view.Date != "2025-03-10" {
		t.Errorf("Date = %q, want 2025-03-10", view.Date)
	}
	if len(view.Slots) != 14 {
		t.Fatalf("got %d slots, want 14", len(view.Slots))
	}
	if view.Slots[0].Hour != "08:00" || view.Slots[13].Hour != "21:00" {
		t.Errorf("slot hours run %s..%s, want 08:00..21:00", view.Slots[0].Hour, view.Slots[13].Hour)
	}

	slotByHour := make(map[string]availability.Slot, len(view.Slots))
	for _, s := range view.Slots {
		slotByHour[s.Hour] = s
	}

	if s := slotByHour["08:00"]; !s.Available || s.ReservationID != nil || s.Status != nil {
		t.Errorf("08:00 = %+v, want free with null details", s)
	}
	if s := slotByHour["09:00"]; s.Available || s.ReservationID == nil || *s.ReservationID != booked {
		t.Errorf("09:00 = %+v, want occupied by reservation %d", s, booked)
	}
	// The booking runs to 10:30: a partial hour still claims the
	// 10:00 slot.
	if s := slotByHour["10:00"]; s.Available {
		t.Error("10:00 reported free under a booking ending at 10:30")
	}
	if s := slotByHour["11:00"]; !s.Available {
		t.Error("11:00 reported busy with nothing scheduled")
	}
	// Cancelled bookings do not occupy.
	if s := slotByHour["14:00"]; !s.Available {
		t.Error("14:00 reported busy under a cancelled booking")
	}
	for _, hour := range []string{"20:00", "21:00"} {
		s := slotByHour[hour]
		if s.Available || s.Status == nil || *s.Status != string(model.StatusBlock) {
			t.Errorf("%s = %+v, want occupied by the block", hour, s)
		}
	}
}

func TestCalendarUnknownSpace(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Calendar(ctx, 999, at(0, 0)); !errors.Is(err, model.ErrSpaceNotFound) {
		t.Errorf("unknown space error = %v, want ErrSpaceNotFound", err)
	}
	// Space 5 exists but is inactive; the calendar hides it.
	if _, err := e.Calendar(ctx, 5, at(0, 0)); !errors.Is(err, model.ErrSpaceNotFound) {
		t.Errorf("inactive space error = %v, want ErrSpaceNotFound", err)
	}
}
