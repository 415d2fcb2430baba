package sqlite

// schema is the idempotent bootstrap script run on every pooled
// connection. Tables keep the institutional Spanish column names so
// the rows read the same here and in the MySQL deployment.
//
// The usuarios and espacios directories are reference data for this
// engine; the seed rows below make a fresh file usable immediately
// (the demo credentials are the institutional test accounts).
const schema = `
CREATE TABLE IF NOT EXISTS usuarios (
	id_usuario           INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre               TEXT NOT NULL,
	correo_institucional TEXT NOT NULL UNIQUE,
	rol                  TEXT NOT NULL DEFAULT 'estudiante',
	activo               INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS espacios (
	id_espacio INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre     TEXT NOT NULL,
	tipo       TEXT NOT NULL,
	capacidad  INTEGER NOT NULL DEFAULT 0,
	ubicacion  TEXT NOT NULL DEFAULT '',
	activo     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS reservas (
	id_reserva      INTEGER PRIMARY KEY AUTOINCREMENT,
	id_usuario      INTEGER REFERENCES usuarios(id_usuario),
	id_espacio      INTEGER NOT NULL REFERENCES espacios(id_espacio),
	fecha_inicio    TEXT NOT NULL,
	fecha_fin       TEXT NOT NULL,
	estado          TEXT NOT NULL DEFAULT 'pendiente',
	tipo_reserva    TEXT NOT NULL DEFAULT 'normal',
	motivo          TEXT NOT NULL DEFAULT '',
	decidido_por    INTEGER REFERENCES usuarios(id_usuario),
	fecha_solicitud TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservas_espacio
	ON reservas(id_espacio, estado, fecha_inicio);
CREATE INDEX IF NOT EXISTS idx_reservas_usuario
	ON reservas(id_usuario);

CREATE TABLE IF NOT EXISTS incidencias (
	id_incidencia      INTEGER PRIMARY KEY AUTOINCREMENT,
	id_espacio         INTEGER NOT NULL REFERENCES espacios(id_espacio),
	tipo_incidencia    TEXT NOT NULL,
	descripcion        TEXT NOT NULL DEFAULT '',
	id_usuario_reporta INTEGER REFERENCES usuarios(id_usuario),
	estado             TEXT NOT NULL DEFAULT 'abierta',
	id_bloqueo         INTEGER,
	id_usuario_resuelve INTEGER REFERENCES usuarios(id_usuario),
	solucion           TEXT NOT NULL DEFAULT '',
	fecha_reporte      TEXT NOT NULL,
	fecha_resolucion   TEXT
);

INSERT OR IGNORE INTO usuarios (id_usuario, nombre, correo_institucional, rol, activo) VALUES
	(1, 'Administrador Sistema', 'admin@udp.cl', 'administrador', 1),
	(2, 'Estudiante Prueba', 'estudiante@udp.cl', 'estudiante', 1),
	(3, 'Carla Mena', 'carla.mena@udp.cl', 'profesor', 1),
	(4, 'Cuenta Suspendida', 'suspendida@udp.cl', 'estudiante', 0);

INSERT OR IGNORE INTO espacios (id_espacio, nombre, tipo, capacidad, ubicacion, activo) VALUES
	(1, 'Sala de Estudio 101', 'sala', 8, 'Biblioteca, piso 1', 1),
	(2, 'Sala de Estudio 102', 'sala', 8, 'Biblioteca, piso 1', 1),
	(3, 'Laboratorio de Computación', 'laboratorio', 30, 'Edificio B, piso 2', 1),
	(4, 'Auditorio Central', 'auditorio', 200, 'Edificio A', 1),
	(5, 'Sala Clausurada', 'sala', 6, 'Edificio C', 0);
`
