package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/campus-space-reservation/internal/model"
	"github.com/iliyamo/campus-space-reservation/internal/store"
)

var _ store.Store = (*Store)(nil)

const intervalColumns = `id_reserva, id_usuario, id_espacio, fecha_inicio, fecha_fin, estado, tipo_reserva, motivo, decidido_por, fecha_solicitud`

// InsertInterval persists a new interval and fills in ID and CreatedAt.
func (s *Store) InsertInterval(ctx context.Context, iv *model.Interval) error {
	const q = `INSERT INTO reservas (id_usuario, id_espacio, fecha_inicio, fecha_fin, estado, tipo_reserva, motivo, fecha_solicitud)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := s.db.ExecContext(ctx, q,
		nullableID(iv.UserID), iv.SpaceID, iv.Start, iv.End,
		string(iv.Status), string(iv.Kind), iv.Reason, now)
	if err != nil {
		return fmt.Errorf("mysql: insert interval: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("mysql: insert interval id: %w", err)
	}
	iv.ID = uint64(id)
	iv.CreatedAt = now
	return nil
}

// GetInterval loads one interval by id.
func (s *Store) GetInterval(ctx context.Context, id uint64) (*model.Interval, error) {
	const q = `SELECT ` + intervalColumns + ` FROM reservas WHERE id_reserva = ?`
	return scanIntervalRow(s.db.QueryRowContext(ctx, q, id))
}

// ListOverlapping returns the active-state intervals on a space that
// overlap [start, end).
func (s *Store) ListOverlapping(ctx context.Context, spaceID uint64, start, end time.Time) ([]model.Interval, error) {
	const q = `SELECT ` + intervalColumns + ` FROM reservas
		WHERE id_espacio = ? AND estado IN ('pendiente', 'aprobada', 'bloqueo')
		  AND fecha_inicio < ? AND fecha_fin > ?
		ORDER BY fecha_inicio`
	rows, err := s.db.QueryContext(ctx, q, spaceID, end, start)
	if err != nil {
		return nil, fmt.Errorf("mysql: list overlapping for space %d: %w", spaceID, err)
	}
	defer rows.Close()
	return collectIntervals(rows)
}

// TransitionInterval is the single-row compare-and-set used by decide
// and cancel.
func (s *Store) TransitionInterval(ctx context.Context, id uint64, from []model.Status, to model.Status, decidedBy uint64) (*model.Interval, error) {
	marks := make([]string, len(from))
	args := []any{string(to), nullableID(decidedBy), id}
	for i, st := range from {
		marks[i] = "?"
		args = append(args, string(st))
	}
	q := `UPDATE reservas SET estado = ?, decidido_por = COALESCE(?, decidido_por)
		WHERE id_reserva = ? AND estado IN (` + strings.Join(marks, ", ") + `)`

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: transition interval %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mysql: transition interval %d: %w", id, err)
	}
	if n == 0 {
		if _, err := s.GetInterval(ctx, id); err != nil {
			return nil, err
		}
		return nil, model.ErrInvalidState
	}
	return s.GetInterval(ctx, id)
}

// ListByUser returns the user's bookings joined with space names,
// most recently requested first.
func (s *Store) ListByUser(ctx context.Context, userID uint64) ([]store.BookingSummary, error) {
	const q = `SELECT r.id_reserva, e.nombre, r.fecha_inicio, r.fecha_fin, r.estado, r.motivo, r.fecha_solicitud
		FROM reservas r
		JOIN espacios e ON e.id_espacio = r.id_espacio
		WHERE r.id_usuario = ?
		ORDER BY r.fecha_solicitud DESC, r.id_reserva DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("mysql: list bookings for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []store.BookingSummary
	for rows.Next() {
		var row store.BookingSummary
		var start, end, requested time.Time
		if err := rows.Scan(&row.ID, &row.Space, &start, &end, &row.Status, &row.Reason, &requested); err != nil {
			return nil, fmt.Errorf("mysql: scan booking summary: %w", err)
		}
		row.Start = start.Format(store.TimeLayout)
		row.End = end.Format(store.TimeLayout)
		row.Requested = requested.Format(store.TimeLayout)
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetUser looks up a directory user.
func (s *Store) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	const q = `SELECT id_usuario, nombre, correo_institucional, rol, activo FROM usuarios WHERE id_usuario = ?`
	var u model.User
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get user %d: %w", id, err)
	}
	return &u, nil
}

// GetSpace looks up a directory space, active or not.
func (s *Store) GetSpace(ctx context.Context, id uint64) (*model.Space, error) {
	const q = `SELECT id_espacio, nombre, tipo, capacidad, ubicacion, activo FROM espacios WHERE id_espacio = ?`
	var sp model.Space
	err := s.db.QueryRowContext(ctx, q, id).Scan(&sp.ID, &sp.Name, &sp.Type, &sp.Capacity, &sp.Location, &sp.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get space %d: %w", id, err)
	}
	return &sp, nil
}

// ListActiveSpaces returns active spaces, optionally filtered by type.
func (s *Store) ListActiveSpaces(ctx context.Context, spaceType string) ([]model.Space, error) {
	q := `SELECT id_espacio, nombre, tipo, capacidad, ubicacion, activo FROM espacios WHERE activo = 1`
	var args []any
	if spaceType != "" {
		q += ` AND tipo = ?`
		args = append(args, spaceType)
	}
	q += ` ORDER BY id_espacio`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: list active spaces: %w", err)
	}
	defer rows.Close()

	var out []model.Space
	for rows.Next() {
		var sp model.Space
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Type, &sp.Capacity, &sp.Location, &sp.Active); err != nil {
			return nil, fmt.Errorf("mysql: scan space: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// InsertIncident persists a new incident report and fills in ID and
// ReportedAt.
func (s *Store) InsertIncident(ctx context.Context, inc *model.Incident) error {
	const q = `INSERT INTO incidencias (id_espacio, tipo_incidencia, descripcion, id_usuario_reporta, estado, fecha_reporte)
		VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := s.db.ExecContext(ctx, q,
		inc.SpaceID, inc.Type, inc.Description, nullableID(inc.ReportedBy), string(inc.Status), now)
	if err != nil {
		return fmt.Errorf("mysql: insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("mysql: insert incident id: %w", err)
	}
	inc.ID = uint64(id)
	inc.ReportedAt = now
	return nil
}

// GetIncident loads one incident by id.
func (s *Store) GetIncident(ctx context.Context, id uint64) (*model.Incident, error) {
	const q = `SELECT id_incidencia, id_espacio, tipo_incidencia, descripcion, id_usuario_reporta, estado, id_bloqueo, id_usuario_resuelve, solucion, fecha_reporte, fecha_resolucion
		FROM incidencias WHERE id_incidencia = ?`
	var inc model.Incident
	var reporter, block, resolver sql.NullInt64
	var solution sql.NullString
	var status string
	var resolvedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&inc.ID, &inc.SpaceID, &inc.Type, &inc.Description,
		&reporter, &status, &block, &resolver, &solution,
		&inc.ReportedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get incident %d: %w", id, err)
	}
	inc.Status = model.IncidentStatus(status)
	inc.ReportedBy = uint64(reporter.Int64)
	inc.BlockID = uint64(block.Int64)
	inc.ResolvedBy = uint64(resolver.Int64)
	inc.Solution = solution.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		inc.ResolvedAt = &t
	}
	return &inc, nil
}

// ListIncidents returns all incidents joined with space and reporter
// names, newest first.
func (s *Store) ListIncidents(ctx context.Context) ([]store.IncidentSummary, error) {
	const q = `SELECT i.id_incidencia, i.id_espacio, e.nombre, i.tipo_incidencia, i.descripcion, i.estado, COALESCE(u.nombre, ''), i.fecha_reporte
		FROM incidencias i
		JOIN espacios e ON e.id_espacio = i.id_espacio
		LEFT JOIN usuarios u ON u.id_usuario = i.id_usuario_reporta
		ORDER BY i.id_incidencia DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mysql: list incidents: %w", err)
	}
	defer rows.Close()

	var out []store.IncidentSummary
	for rows.Next() {
		var row store.IncidentSummary
		var reported time.Time
		if err := rows.Scan(&row.ID, &row.SpaceID, &row.SpaceName, &row.Type, &row.Description, &row.Status, &row.ReporterName, &reported); err != nil {
			return nil, fmt.Errorf("mysql: scan incident summary: %w", err)
		}
		row.ReportedAt = reported.Format(store.TimeLayout)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ApplyBlock runs the incident cascade in one transaction. The
// cascade rows are selected FOR UPDATE so a concurrent decide or
// cancel of the same booking waits for the block to commit.
func (s *Store) ApplyBlock(ctx context.Context, incidentID, spaceID uint64, start, end time.Time, reason string) (uint64, []model.Interval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("mysql: begin block transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const selectQ = `SELECT ` + intervalColumns + ` FROM reservas
		WHERE id_espacio = ? AND estado IN ('pendiente', 'aprobada')
		  AND fecha_inicio < ? AND fecha_fin > ?
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, selectQ, spaceID, end, start)
	if err != nil {
		return 0, nil, fmt.Errorf("mysql: collect cascade for space %d: %w", spaceID, err)
	}
	cancelled, err := collectIntervals(rows)
	rows.Close()
	if err != nil {
		return 0, nil, err
	}

	cancelReason := fmt.Sprintf("Cancelada por bloqueo por incidencia ID: %d", incidentID)
	for i := range cancelled {
		_, err = tx.ExecContext(ctx, `UPDATE reservas SET estado = 'cancelada', motivo = ? WHERE id_reserva = ?`,
			cancelReason, cancelled[i].ID)
		if err != nil {
			return 0, nil, fmt.Errorf("mysql: cancel interval %d: %w", cancelled[i].ID, err)
		}
		cancelled[i].Status = model.StatusCancelled
		cancelled[i].Reason = cancelReason
	}

	const blockQ = `INSERT INTO reservas (id_usuario, id_espacio, fecha_inicio, fecha_fin, estado, tipo_reserva, motivo, fecha_solicitud)
		VALUES (NULL, ?, ?, ?, 'bloqueo', 'bloqueo', ?, ?)`
	res, err := tx.ExecContext(ctx, blockQ, spaceID, start, end, reason, time.Now())
	if err != nil {
		return 0, nil, fmt.Errorf("mysql: insert block: %w", err)
	}
	rawID, err := res.LastInsertId()
	if err != nil {
		return 0, nil, fmt.Errorf("mysql: insert block id: %w", err)
	}
	blockID := uint64(rawID)

	// The attach only matches an incident with no block, so the whole
	// transaction rolls back if another call won the race between the
	// caller's check and this point.
	res, err = tx.ExecContext(ctx, `UPDATE incidencias SET estado = 'en_progreso', id_bloqueo = ? WHERE id_incidencia = ? AND id_bloqueo IS NULL`,
		blockID, incidentID)
	if err != nil {
		return 0, nil, fmt.Errorf("mysql: attach block to incident %d: %w", incidentID, err)
	}
	attached, err := res.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("mysql: attach block to incident %d: %w", incidentID, err)
	}
	if attached == 0 {
		return 0, nil, fmt.Errorf("incidencia %d ya tiene un bloqueo activo: %w", incidentID, model.ErrInvalidState)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("mysql: commit block transaction: %w", err)
	}
	committed = true
	return blockID, cancelled, nil
}

// ResolveIncident marks the incident resuelta and hard-deletes its
// block interval, in one transaction.
func (s *Store) ResolveIncident(ctx context.Context, incidentID uint64, solution string, resolvedBy uint64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("mysql: begin resolve transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var blockID sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT id_bloqueo FROM incidencias WHERE id_incidencia = ? FOR UPDATE`, incidentID).Scan(&blockID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, model.ErrIncidentNotFound
	}
	if err != nil {
		return false, fmt.Errorf("mysql: load incident %d: %w", incidentID, err)
	}

	const resolveQ = `UPDATE incidencias
		SET estado = 'resuelta', id_bloqueo = NULL,
		    solucion = COALESCE(NULLIF(?, ''), solucion),
		    id_usuario_resuelve = COALESCE(?, id_usuario_resuelve),
		    fecha_resolucion = ?
		WHERE id_incidencia = ?`
	_, err = tx.ExecContext(ctx, resolveQ, solution, nullableID(resolvedBy), time.Now(), incidentID)
	if err != nil {
		return false, fmt.Errorf("mysql: resolve incident %d: %w", incidentID, err)
	}

	released := false
	if blockID.Valid {
		res, err := tx.ExecContext(ctx, `DELETE FROM reservas WHERE id_reserva = ? AND tipo_reserva = 'bloqueo'`, blockID.Int64)
		if err != nil {
			return false, fmt.Errorf("mysql: release block %d: %w", blockID.Int64, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			released = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("mysql: commit resolve transaction: %w", err)
	}
	committed = true
	return released, nil
}

// nullableID maps the zero id to NULL.
func nullableID(id uint64) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id != 0}
}

func scanIntervalRow(row *sql.Row) (*model.Interval, error) {
	iv, err := scanInterval(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get interval: %w", err)
	}
	return iv, nil
}

func collectIntervals(rows *sql.Rows) ([]model.Interval, error) {
	var out []model.Interval
	for rows.Next() {
		iv, err := scanInterval(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan interval: %w", err)
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

func scanInterval(scan func(dest ...any) error) (*model.Interval, error) {
	var iv model.Interval
	var userID, decidedBy sql.NullInt64
	var status, kind string
	err := scan(&iv.ID, &userID, &iv.SpaceID, &iv.Start, &iv.End,
		&status, &kind, &iv.Reason, &decidedBy, &iv.CreatedAt)
	if err != nil {
		return nil, err
	}
	iv.UserID = uint64(userID.Int64)
	iv.DecidedBy = uint64(decidedBy.Int64)
	iv.Status = model.Status(status)
	iv.Kind = model.Kind(kind)
	return &iv, nil
}
