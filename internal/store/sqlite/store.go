package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/store"
)

var _ store.Store = (*Store)(nil)

// intervalColumns is the canonical column order scanned by
// scanInterval. Every interval SELECT uses it.
const intervalColumns = `id_reserva, id_usuario, id_espacio, fecha_inicio, fecha_fin, estado, tipo_reserva, motivo, decidido_por, fecha_solicitud`

// InsertInterval persists a new interval and fills in ID and CreatedAt.
func (s *Store) InsertInterval(ctx context.Context, iv *model.Interval) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	now := time.Now()
	var userID any
	if iv.UserID != 0 {
		userID = int64(iv.UserID)
	}

	const q = `INSERT INTO reservas (id_usuario, id_espacio, fecha_inicio, fecha_fin, estado, tipo_reserva, motivo, fecha_solicitud)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{
			userID,
			int64(iv.SpaceID),
			fmtTime(iv.Start),
			fmtTime(iv.End),
			string(iv.Status),
			string(iv.Kind),
			iv.Reason,
			fmtTime(now),
		},
	})
	if err != nil {
		return fmt.Errorf("sqlite: insert interval: %w", err)
	}
	iv.ID = uint64(conn.LastInsertRowID())
	iv.CreatedAt = now
	return nil
}

// GetInterval loads one interval by id.
func (s *Store) GetInterval(ctx context.Context, id uint64) (*model.Interval, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)
	return getIntervalConn(conn, id)
}

// ListOverlapping returns the active-state intervals on a space that
// overlap [start, end). Overlap is the half-open test expressed on
// the stored text timestamps, whose fixed-width layout compares in
// chronological order.
func (s *Store) ListOverlapping(ctx context.Context, spaceID uint64, start, end time.Time) ([]model.Interval, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	const q = `SELECT ` + intervalColumns + ` FROM reservas
		WHERE id_espacio = ? AND estado IN ('pendiente', 'aprobada', 'bloqueo')
		  AND fecha_inicio < ? AND fecha_fin > ?
		ORDER BY fecha_inicio`
	var out []model.Interval
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{int64(spaceID), fmtTime(end), fmtTime(start)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			iv, err := scanInterval(stmt)
			if err != nil {
				return err
			}
			out = append(out, iv)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list overlapping for space %d: %w", spaceID, err)
	}
	return out, nil
}

// TransitionInterval is the single-row compare-and-set used by decide
// and cancel. The UPDATE carries the expected states in its WHERE
// clause, so concurrent transitions of the same row race on the
// database and exactly one wins.
func (s *Store) TransitionInterval(ctx context.Context, id uint64, from []model.Status, to model.Status, decidedBy uint64) (*model.Interval, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	marks := make([]string, len(from))
	var decided any
	if decidedBy != 0 {
		decided = int64(decidedBy)
	}
	args := []any{string(to), decided, int64(id)}
	for i, st := range from {
		marks[i] = "?"
		args = append(args, string(st))
	}

	q := `UPDATE reservas SET estado = ?, decidido_por = COALESCE(?, decidido_por)
		WHERE id_reserva = ? AND estado IN (` + strings.Join(marks, ", ") + `)`
	if err := sqlitex.Execute(conn, q, &sqlitex.ExecOptions{Args: args}); err != nil {
		return nil, fmt.Errorf("sqlite: transition interval %d: %w", id, err)
	}
	if conn.Changes() == 0 {
		// Nothing matched: either the row is gone or it is in a
		// state the caller did not expect.
		if _, err := getIntervalConn(conn, id); err != nil {
			return nil, err
		}
		return nil, model.ErrInvalidState
	}
	return getIntervalConn(conn, id)
}

// ListByUser returns the user's bookings joined with space names,
// most recently requested first.
func (s *Store) ListByUser(ctx context.Context, userID uint64) ([]store.BookingSummary, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	const q = `SELECT r.id_reserva, e.nombre, r.fecha_inicio, r.fecha_fin, r.estado, r.motivo, r.fecha_solicitud
		FROM reservas r
		JOIN espacios e ON e.id_espacio = r.id_espacio
		WHERE r.id_usuario = ?
		ORDER BY r.fecha_solicitud DESC, r.id_reserva DESC`
	var out []store.BookingSummary
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{int64(userID)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := store.BookingSummary{
				ID:     uint64(stmt.ColumnInt64(0)),
				Space:  stmt.ColumnText(1),
				Status: stmt.ColumnText(4),
				Reason: stmt.ColumnText(5),
			}
			var err error
			if row.Start, err = wireTime(stmt.ColumnText(2)); err != nil {
				return err
			}
			if row.End, err = wireTime(stmt.ColumnText(3)); err != nil {
				return err
			}
			if row.Requested, err = wireTime(stmt.ColumnText(6)); err != nil {
				return err
			}
			out = append(out, row)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list bookings for user %d: %w", userID, err)
	}
	return out, nil
}

// GetUser looks up a directory user.
func (s *Store) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	const q = `SELECT id_usuario, nombre, correo_institucional, rol, activo FROM usuarios WHERE id_usuario = ?`
	var u *model.User
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{int64(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			u = &model.User{
				ID:     uint64(stmt.ColumnInt64(0)),
				Name:   stmt.ColumnText(1),
				Email:  stmt.ColumnText(2),
				Role:   stmt.ColumnText(3),
				Active: stmt.ColumnInt64(4) != 0,
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: get user %d: %w", id, err)
	}
	if u == nil {
		return nil, model.ErrUserNotFound
	}
	return u, nil
}

// GetSpace looks up a directory space, active or not.
func (s *Store) GetSpace(ctx context.Context, id uint64) (*model.Space, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	const q = `SELECT id_espacio, nombre, tipo, capacidad, ubicacion, activo FROM espacios WHERE id_espacio = ?`
	var sp *model.Space
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{int64(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			sp = scanSpace(stmt)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: get space %d: %w", id, err)
	}
	if sp == nil {
		return nil, model.ErrSpaceNotFound
	}
	return sp, nil
}

// ListActiveSpaces returns active spaces, optionally filtered by type.
func (s *Store) ListActiveSpaces(ctx context.Context, spaceType string) ([]model.Space, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	q := `SELECT id_espacio, nombre, tipo, capacidad, ubicacion, activo FROM espacios WHERE activo = 1`
	var args []any
	if spaceType != "" {
		q += ` AND tipo = ?`
		args = append(args, spaceType)
	}
	q += ` ORDER BY id_espacio`

	var out []model.Space
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, *scanSpace(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list active spaces: %w", err)
	}
	return out, nil
}

// InsertIncident persists a new incident report and fills in ID and
// ReportedAt.
func (s *Store) InsertIncident(ctx context.Context, inc *model.Incident) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	now := time.Now()
	var reporter any
	if inc.ReportedBy != 0 {
		reporter = int64(inc.ReportedBy)
	}

	const q = `INSERT INTO incidencias (id_espacio, tipo_incidencia, descripcion, id_usuario_reporta, estado, fecha_reporte)
		VALUES (?, ?, ?, ?, ?, ?)`
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{
			int64(inc.SpaceID),
			inc.Type,
			inc.Description,
			reporter,
			string(inc.Status),
			fmtTime(now),
		},
	})
	if err != nil {
		return fmt.Errorf("sqlite: insert incident: %w", err)
	}
	inc.ID = uint64(conn.LastInsertRowID())
	inc.ReportedAt = now
	return nil
}

// GetIncident loads one incident by id.
func (s *Store) GetIncident(ctx context.Context, id uint64) (*model.Incident, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	const q = `SELECT id_incidencia, id_espacio, tipo_incidencia, descripcion, id_usuario_reporta, estado, id_bloqueo, id_usuario_resuelve, solucion, fecha_reporte, fecha_resolucion
		FROM incidencias WHERE id_incidencia = ?`
	var inc *model.Incident
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{int64(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row, err := scanIncident(stmt)
			if err != nil {
				return err
			}
			inc = row
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: get incident %d: %w", id, err)
	}
	if inc == nil {
		return nil, model.ErrIncidentNotFound
	}
	return inc, nil
}

// ListIncidents returns all incidents joined with space and reporter
// names, newest first.
func (s *Store) ListIncidents(ctx context.Context) ([]store.IncidentSummary, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	const q = `SELECT i.id_incidencia, i.id_espacio, e.nombre, i.tipo_incidencia, i.descripcion, i.estado, COALESCE(u.nombre, ''), i.fecha_reporte
		FROM incidencias i
		JOIN espacios e ON e.id_espacio = i.id_espacio
		LEFT JOIN usuarios u ON u.id_usuario = i.id_usuario_reporta
		ORDER BY i.id_incidencia DESC`
	var out []store.IncidentSummary
	err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := store.IncidentSummary{
				ID:           uint64(stmt.ColumnInt64(0)),
				SpaceID:      uint64(stmt.ColumnInt64(1)),
				SpaceName:    stmt.ColumnText(2),
				Type:         stmt.ColumnText(3),
				Description:  stmt.ColumnText(4),
				Status:       stmt.ColumnText(5),
				ReporterName: stmt.ColumnText(6),
			}
			var err error
			if row.ReportedAt, err = wireTime(stmt.ColumnText(7)); err != nil {
				return err
			}
			out = append(out, row)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list incidents: %w", err)
	}
	return out, nil
}

// ApplyBlock runs the incident cascade in one immediate transaction:
// collect the pendiente/aprobada bookings overlapping the range,
// cancel them with an audit motivo, insert the block interval and
// attach it to the incident.
func (s *Store) ApplyBlock(ctx context.Context, incidentID, spaceID uint64, start, end time.Time, reason string) (blockID uint64, cancelled []model.Interval, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer s.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, nil, fmt.Errorf("sqlite: begin block transaction: %w", err)
	}
	defer endTx(&err)

	const selectQ = `SELECT ` + intervalColumns + ` FROM reservas
		WHERE id_espacio = ? AND estado IN ('pendiente', 'aprobada')
		  AND fecha_inicio < ? AND fecha_fin > ?`
	err = sqlitex.Execute(conn, selectQ, &sqlitex.ExecOptions{
		Args: []any{int64(spaceID), fmtTime(end), fmtTime(start)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			iv, err := scanInterval(stmt)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, iv)
			return nil
		},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("sqlite: collect cascade for space %d: %w", spaceID, err)
	}

	cancelReason := fmt.Sprintf("Cancelada por bloqueo por incidencia ID: %d", incidentID)
	for i := range cancelled {
		err = sqlitex.Execute(conn, `UPDATE reservas SET estado = 'cancelada', motivo = ? WHERE id_reserva = ?`, &sqlitex.ExecOptions{
			Args: []any{cancelReason, int64(cancelled[i].ID)},
		})
		if err != nil {
			return 0, nil, fmt.Errorf("sqlite: cancel interval %d: %w", cancelled[i].ID, err)
		}
		cancelled[i].Status = model.StatusCancelled
		cancelled[i].Reason = cancelReason
	}

	const blockQ = `INSERT INTO reservas (id_usuario, id_espacio, fecha_inicio, fecha_fin, estado, tipo_reserva, motivo, fecha_solicitud)
		VALUES (NULL, ?, ?, ?, 'bloqueo', 'bloqueo', ?, ?)`
	err = sqlitex.Execute(conn, blockQ, &sqlitex.ExecOptions{
		Args: []any{int64(spaceID), fmtTime(start), fmtTime(end), reason, fmtTime(time.Now())},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("sqlite: insert block: %w", err)
	}
	blockID = uint64(conn.LastInsertRowID())

	// The attach only matches an incident with no block, so the whole
	// transaction rolls back if another call won the race between the
	// caller's check and this point.
	err = sqlitex.Execute(conn, `UPDATE incidencias SET estado = 'en_progreso', id_bloqueo = ? WHERE id_incidencia = ? AND id_bloqueo IS NULL`, &sqlitex.ExecOptions{
		Args: []any{int64(blockID), int64(incidentID)},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("sqlite: attach block to incident %d: %w", incidentID, err)
	}
	if conn.Changes() == 0 {
		err = fmt.Errorf("incidencia %d ya tiene un bloqueo activo: %w", incidentID, model.ErrInvalidState)
		return 0, nil, err
	}

	return blockID, cancelled, nil
}

// ResolveIncident marks the incident resuelta and hard-deletes its
// block interval, in one transaction. An empty solution keeps the one
// already recorded.
func (s *Store) ResolveIncident(ctx context.Context, incidentID uint64, solution string, resolvedBy uint64) (released bool, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin resolve transaction: %w", err)
	}
	defer endTx(&err)

	var found, hasBlock bool
	var blockID int64
	err = sqlitex.Execute(conn, `SELECT id_bloqueo FROM incidencias WHERE id_incidencia = ?`, &sqlitex.ExecOptions{
		Args: []any{int64(incidentID)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			if !stmt.ColumnIsNull(0) {
				hasBlock = true
				blockID = stmt.ColumnInt64(0)
			}
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("sqlite: load incident %d: %w", incidentID, err)
	}
	if !found {
		return false, model.ErrIncidentNotFound
	}

	var resolver any
	if resolvedBy != 0 {
		resolver = int64(resolvedBy)
	}
	const resolveQ = `UPDATE incidencias
		SET estado = 'resuelta', id_bloqueo = NULL,
		    solucion = COALESCE(NULLIF(?, ''), solucion),
		    id_usuario_resuelve = COALESCE(?, id_usuario_resuelve),
		    fecha_resolucion = ?
		WHERE id_incidencia = ?`
	err = sqlitex.Execute(conn, resolveQ, &sqlitex.ExecOptions{
		Args: []any{solution, resolver, fmtTime(time.Now()), int64(incidentID)},
	})
	if err != nil {
		return false, fmt.Errorf("sqlite: resolve incident %d: %w", incidentID, err)
	}

	if hasBlock {
		err = sqlitex.Execute(conn, `DELETE FROM reservas WHERE id_reserva = ? AND tipo_reserva = 'bloqueo'`, &sqlitex.ExecOptions{
			Args: []any{blockID},
		})
		if err != nil {
			return false, fmt.Errorf("sqlite: release block %d: %w", blockID, err)
		}
		released = conn.Changes() > 0
	}
	return released, nil
}

// getIntervalConn loads one interval on an already-borrowed
// connection.
func getIntervalConn(conn *sqlite.Conn, id uint64) (*model.Interval, error) {
	const q = `SELECT ` + intervalColumns + ` FROM reservas WHERE id_reserva = ?`
	var iv *model.Interval
	err := sqlitex.Execute(conn, q, &sqlitex.ExecOptions{
		Args: []any{int64(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row, err := scanInterval(stmt)
			if err != nil {
				return err
			}
			iv = &row
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: get interval %d: %w", id, err)
	}
	if iv == nil {
		return nil, model.ErrBookingNotFound
	}
	return iv, nil
}

func scanInterval(stmt *sqlite.Stmt) (model.Interval, error) {
	iv := model.Interval{
		ID:      uint64(stmt.ColumnInt64(0)),
		SpaceID: uint64(stmt.ColumnInt64(2)),
		Status:  model.Status(stmt.ColumnText(5)),
		Kind:    model.Kind(stmt.ColumnText(6)),
		Reason:  stmt.ColumnText(7),
	}
	if !stmt.ColumnIsNull(1) {
		iv.UserID = uint64(stmt.ColumnInt64(1))
	}
	if !stmt.ColumnIsNull(8) {
		iv.DecidedBy = uint64(stmt.ColumnInt64(8))
	}
	var err error
	if iv.Start, err = parseTime(stmt.ColumnText(3)); err != nil {
		return iv, err
	}
	if iv.End, err = parseTime(stmt.ColumnText(4)); err != nil {
		return iv, err
	}
	if iv.CreatedAt, err = parseTime(stmt.ColumnText(9)); err != nil {
		return iv, err
	}
	return iv, nil
}

func scanIncident(stmt *sqlite.Stmt) (*model.Incident, error) {
	inc := &model.Incident{
		ID:          uint64(stmt.ColumnInt64(0)),
		SpaceID:     uint64(stmt.ColumnInt64(1)),
		Type:        stmt.ColumnText(2),
		Description: stmt.ColumnText(3),
		Status:      model.IncidentStatus(stmt.ColumnText(5)),
		Solution:    stmt.ColumnText(8),
	}
	if !stmt.ColumnIsNull(4) {
		inc.ReportedBy = uint64(stmt.ColumnInt64(4))
	}
	if !stmt.ColumnIsNull(6) {
		inc.BlockID = uint64(stmt.ColumnInt64(6))
	}
	if !stmt.ColumnIsNull(7) {
		inc.ResolvedBy = uint64(stmt.ColumnInt64(7))
	}
	var err error
	if inc.ReportedAt, err = parseTime(stmt.ColumnText(9)); err != nil {
		return nil, err
	}
	if !stmt.ColumnIsNull(10) {
		t, err := parseTime(stmt.ColumnText(10))
		if err != nil {
			return nil, err
		}
		inc.ResolvedAt = &t
	}
	return inc, nil
}

func scanSpace(stmt *sqlite.Stmt) *model.Space {
	return &model.Space{
		ID:       uint64(stmt.ColumnInt64(0)),
		Name:     stmt.ColumnText(1),
		Type:     stmt.ColumnText(2),
		Capacity: int(stmt.ColumnInt64(3)),
		Location: stmt.ColumnText(4),
		Active:   stmt.ColumnInt64(5) != 0,
	}
}

// wireTime converts a stored timestamp to the wire layout.
func wireTime(s string) (string, error) {
	t, err := parseTime(s)
	if err != nil {
		return "", err
	}
	return t.Format(store.TimeLayout), nil
}
