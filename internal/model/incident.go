package model

import "time"

// IncidentStatus enumerates the states of a reported incident, stored
// verbatim in incidencias.estado.
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "abierta"
	IncidentInProgress IncidentStatus = "en_progreso"
	IncidentResolved   IncidentStatus = "resuelta"
)

// Incident is a reported problem with a space. An incident owns at
// most one active block interval, referenced by BlockID; the block
// row itself lives in the interval store and is hard-deleted when the
// incident resolves.
//
// Fields:
//  ID          – primary key identifier.
//  SpaceID     – space the incident was reported for.
//  Type        – incident category (e.g. mantenimiento, limpieza).
//  Description – free-text report.
//  ReportedBy  – user who reported; zero when reported anonymously.
//  Status      – abierta, en_progreso (block applied) or resuelta.
//  BlockID     – id of the active block interval; zero when none.
//  ResolvedBy  – user who resolved; zero until resolution.
//  Solution    – free-text resolution note.
//  ReportedAt  – when the incident was recorded.
//  ResolvedAt  – when the incident was resolved (nil while open).
type Incident struct {
	ID          uint64         // incidencias.id_incidencia
	SpaceID     uint64         // incidencias.id_espacio
	Type        string         // incidencias.tipo_incidencia
	Description string         // incidencias.descripcion
	ReportedBy  uint64         // incidencias.id_usuario_reporta (nullable)
	Status      IncidentStatus // incidencias.estado
	BlockID     uint64         // incidencias.id_bloqueo (nullable)
	ResolvedBy  uint64         // incidencias.id_usuario_resuelve (nullable)
	Solution    string         // incidencias.solucion
	ReportedAt  time.Time      // incidencias.fecha_reporte
	ResolvedAt  *time.Time     // incidencias.fecha_resolucion (nullable)
}
