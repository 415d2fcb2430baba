package booking_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/booking"
	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/queue"
	"github.com/iliyamo/campus-space-reservation/internal/store/sqlite"
)

// capturePublisher records published events, optionally failing every
// publish to exercise the notified=false path.
type capturePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	fail   bool
}

func (p *capturePublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker no disponible")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) last(t *testing.T) queue.ReservationEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no events published")
	}
	return p.events[len(p.events)-1]
}

func newTestEngine(t *testing.T, events booking.EventPublisher) *booking.Engine {
	t.Helper()
	st, err := sqlite.Open(sqlite.Config{
		Path:   filepath.Join(t.TempDir(), "reservas.db"),
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return booking.NewEngine(st, events, nil, booking.NewSpaceLocks(), zap.NewNop())
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.Local)
}

func TestCreateValidation(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	cases := []struct {
		name        string
		user, space uint64
		start, end  time.Time
		wantErr     error
	}{
		{"end equals start", 2, 1, at(10, 0), at(10, 0), model.ErrInvalidRange},
		{"end before start", 2, 1, at(12, 0), at(10, 0), model.ErrInvalidRange},
		{"unknown user", 999, 1, at(10, 0), at(11, 0), model.ErrUserNotFound},
		{"inactive user", 4, 1, at(10, 0), at(11, 0), model.ErrUserNotFound},
		{"unknown space", 2, 999, at(10, 0), at(11, 0), model.ErrSpaceNotFound},
		{"inactive space", 2, 5, at(10, 0), at(11, 0), model.ErrSpaceNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Create(ctx, tc.user, tc.space, tc.start, tc.end, "Estudio")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Create error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	iv, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Estudio grupal")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if iv.Status != model.StatusPending {
		t.Errorf("new reservation status = %s, want pendiente", iv.Status)
	}
	if iv.ID == 0 {
		t.Error("new reservation has no id")
	}
}

func TestCreateConflicts(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Base"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		name       string
		start, end time.Time
		wantErr    error
	}{
		{"identical range", at(10, 0), at(12, 0), model.ErrSlotUnavailable},
		{"contained", at(10, 30), at(11, 30), model.ErrSlotUnavailable},
		{"straddles start", at(9, 0), at(10, 30), model.ErrSlotUnavailable},
		{"straddles end", at(11, 30), at(13, 0), model.ErrSlotUnavailable},
		{"touches end", at(12, 0), at(13, 0), nil},
		{"touches start", at(9, 0), at(10, 0), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Create(ctx, 3, 1, tc.start, tc.end, "Otra")
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Create error = %v, want success", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Create error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCancelledSlotReopens(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	iv, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Primera")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.Cancel(ctx, iv.ID, 2); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := e.Create(ctx, 3, 1, at(10, 0), at(12, 0), "Segunda"); err != nil {
		t.Errorf("Create after cancel error = %v, want success", err)
	}
}

func TestConcurrentCreateSameSpace(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Carrera")
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, model.ErrSlotUnavailable):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d creates succeeded, want exactly 1", won)
	}
	if lost != attempts-1 {
		t.Errorf("%d creates lost, want %d", lost, attempts-1)
	}
}

func TestConcurrentCreateDisjointSpaces(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	spaces := []uint64{1, 2, 3, 4}
	errs := make([]error, len(spaces))
	var wg sync.WaitGroup
	for i, spaceID := range spaces {
		wg.Add(1)
		go func(i int, spaceID uint64) {
			defer wg.Done()
			_, errs[i] = e.Create(ctx, 2, spaceID, at(10, 0), at(12, 0), "Paralela")
		}(i, spaceID)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("space %d: Create error = %v, want success", spaces[i], err)
		}
	}
}

func TestDecide(t *testing.T) {
	events := &capturePublisher{}
	e := newTestEngine(t, events)
	ctx := context.Background()

	iv, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Tesis")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	decided, notified, err := e.Decide(ctx, iv.ID, model.StatusApproved, 1)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Status != model.StatusApproved || decided.DecidedBy != 1 {
		t.Errorf("decided = (%s, by %d), want (aprobada, by 1)", decided.Status, decided.DecidedBy)
	}
	if !notified {
		t.Error("notified = false, want true with a working publisher")
	}
	ev := events.last(t)
	if ev.Type != queue.EventApproved || ev.ReservationID != iv.ID {
		t.Errorf("event = (%s, %d), want (reserva.aprobada, %d)", ev.Type, ev.ReservationID, iv.ID)
	}
	if ev.ByIncident {
		t.Error("direct decision carried por_incidencia = true")
	}

	// Already decided: the compare-and-set refuses.
	if _, _, err := e.Decide(ctx, iv.ID, model.StatusRejected, 1); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("second Decide error = %v, want ErrInvalidState", err)
	}
	if _, _, err := e.Decide(ctx, 9999, model.StatusApproved, 1); !errors.Is(err, model.ErrBookingNotFound) {
		t.Errorf("unknown id error = %v, want ErrBookingNotFound", err)
	}
	if _, _, err := e.Decide(ctx, iv.ID, model.StatusCancelled, 1); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("bad outcome error = %v, want ErrInvalidState", err)
	}
}

func TestDecideBrokerDown(t *testing.T) {
	e := newTestEngine(t, &capturePublisher{fail: true})
	ctx := context.Background()

	iv, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Tesis")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	decided, notified, err := e.Decide(ctx, iv.ID, model.StatusApproved, 1)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Status != model.StatusApproved {
		t.Errorf("status = %s, want aprobada despite broker failure", decided.Status)
	}
	if notified {
		t.Error("notified = true with a failing publisher")
	}
}

func TestCancel(t *testing.T) {
	events := &capturePublisher{}
	e := newTestEngine(t, events)
	ctx := context.Background()

	iv, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Reunión")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Another user cannot see, let alone cancel, this booking.
	if _, err := e.Cancel(ctx, iv.ID, 3); !errors.Is(err, model.ErrBookingNotFound) {
		t.Errorf("foreign Cancel error = %v, want ErrBookingNotFound", err)
	}

	cancelled, err := e.Cancel(ctx, iv.ID, 2)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %s, want cancelada", cancelled.Status)
	}
	if ev := events.last(t); ev.Type != queue.EventCancelled {
		t.Errorf("event type = %s, want reserva.cancelada", ev.Type)
	}

	if _, err := e.Cancel(ctx, iv.ID, 2); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("double Cancel error = %v, want ErrInvalidState", err)
	}
	if _, err := e.Cancel(ctx, 9999, 2); !errors.Is(err, model.ErrBookingNotFound) {
		t.Errorf("unknown Cancel error = %v, want ErrBookingNotFound", err)
	}
}

func TestCancelApproved(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	iv, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Defensa")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := e.Decide(ctx, iv.ID, model.StatusApproved, 1); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	cancelled, err := e.Cancel(ctx, iv.ID, 2)
	if err != nil {
		t.Fatalf("Cancel approved: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %s, want cancelada", cancelled.Status)
	}
}

func TestListByUser(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := e.Create(ctx, 2, 1, at(10, 0), at(12, 0), "Primera")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.Create(ctx, 2, 3, at(15, 0), at(16, 0), "Segunda"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.Cancel(ctx, first.ID, 2); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	rows, err := e.ListByUser(ctx, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	byID := map[uint64]string{rows[0].ID: rows[0].Status, rows[1].ID: rows[1].Status}
	if byID[first.ID] != string(model.StatusCancelled) {
		t.Errorf("first booking status = %q, want cancelada", byID[first.ID])
	}

	empty, err := e.ListByUser(ctx, 999)
	if err != nil {
		t.Fatalf("ListByUser(unknown): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown user has %d bookings, want 0", len(empty))
	}
}
