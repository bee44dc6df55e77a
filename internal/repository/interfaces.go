package repository

import (
	"context"

	"github.com/oncodose/treatment-api/internal/model"
)

// MeasurementEntry is one paired observation row as persisted: both series
// share the date key, so a save always writes ANC and dosage together.
type MeasurementEntry struct {
	Date   string
	ANC    float64
	Dosage float64
}

// PatientRepository persists patient aggregates. Demographic fields are
// encrypted with the caller's passphrase before they reach the database and
// decrypted on the way out; measurement rows are stored in the clear because
// the (time, patient_id) primary key must stay comparable.
type PatientRepository interface {
	// Save upserts the demographic row and unconditionally inserts the
	// measurement entry, in one transaction. A duplicate
	// (time, patient_id) pair fails the whole save with a duplicate-key
	// error. On insert the patient's ID is filled in.
	Save(ctx context.Context, p *model.Patient, entry MeasurementEntry, passphrase string) error

	// Load returns the full aggregate with both series ordered ascending
	// by date.
	Load(ctx context.Context, id int64, passphrase string) (*model.Patient, error)

	// List returns demographics-only views of every patient assigned to
	// the oncologist, ordered by row id.
	List(ctx context.Context, oncologistID, passphrase string) ([]*model.Patient, error)

	Delete(ctx context.Context, id int64) error
}

// OncologistRepository persists login records.
type OncologistRepository interface {
	Create(ctx context.Context, o *model.Oncologist) error
	GetByUsername(ctx context.Context, username string) (*model.Oncologist, error)
	Delete(ctx context.Context, username string) error
}
