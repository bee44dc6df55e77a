package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Demographic columns are TEXT regardless of their logical type: they hold
// base64 ciphertext, so range and enum constraints are enforced in code.
const schema = `
CREATE TABLE IF NOT EXISTS oncologists (
    username      TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL,
    is_admin      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS patients (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id           TEXT NOT NULL,
    name              TEXT NOT NULL,
    sex               TEXT NOT NULL,
    birthday          TEXT NOT NULL,
    age               TEXT NOT NULL,
    phone_number      TEXT NOT NULL,
    blood_type        TEXT NOT NULL,
    all_type          TEXT NOT NULL,
    weight            TEXT NOT NULL,
    height            TEXT NOT NULL,
    body_surface_area TEXT NOT NULL,
    oncologist_id     TEXT NOT NULL REFERENCES oncologists(username) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS measurements (
    time               TEXT NOT NULL,
    patient_id         INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
    anc_measurement    REAL NOT NULL,
    dosage_measurement REAL NOT NULL,
    PRIMARY KEY (time, patient_id)
);

CREATE INDEX IF NOT EXISTS idx_patients_oncologist ON patients(oncologist_id);
`

// Open connects to the SQLite file at path, enables foreign keys and applies
// the schema. The pool is capped at one connection; modernc's driver
// serializes writers anyway and a single connection keeps the foreign_keys
// pragma in force for every statement.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
