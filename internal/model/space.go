package model

// Space is the read-only directory view of a reservable campus space
// as stored in the `espacios` table.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – display name (e.g. "Sala de Estudio 1").
//  Type     – category used for availability filtering
//             (e.g. sala_estudio, laboratorio, auditorio).
//  Capacity – seating capacity.
//  Location – building/floor description.
//  Active   – inactive spaces are invisible to the engine.
type Space struct {
	ID       uint64 // espacios.id_espacio
	Name     string // espacios.nombre
	Type     string // espacios.tipo
	Capacity int    // espacios.capacidad
	Location string // espacios.ubicacion
	Active   bool   // espacios.activo
}
