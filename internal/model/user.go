package model

// User is the read-only directory view of a campus user as stored in
// the `usuarios` table. The engine never creates or modifies users;
// it only verifies that a referenced account exists and is active.
//
// Fields:
//  ID     – primary key identifier of the user.
//  Name   – display name.
//  Email  – institutional email address.
//  Role   – role name (e.g. estudiante, profesor, admin).
//  Active – whether the account is active.
type User struct {
	ID     uint64 // usuarios.id_usuario
	Name   string // usuarios.nombre
	Email  string // usuarios.correo_institucional
	Role   string // usuarios.rol
	Active bool   // usuarios.activo
}
