package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/repository"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
	"github.com/oncodose/treatment-api/pkg/security"
)

// patientRow mirrors the patients table: every demographic column carries
// base64 ciphertext.
type patientRow struct {
	ID           int64  `db:"id"`
	UserID       string `db:"user_id"`
	Name         string `db:"name"`
	Sex          string `db:"sex"`
	Birthday     string `db:"birthday"`
	Age          string `db:"age"`
	PhoneNumber  string `db:"phone_number"`
	BloodType    string `db:"blood_type"`
	ALLType      string `db:"all_type"`
	Weight       string `db:"weight"`
	Height       string `db:"height"`
	BSA          string `db:"body_surface_area"`
	OncologistID string `db:"oncologist_id"`
}

type measurementRow struct {
	Time   string  `db:"time"`
	ANC    float64 `db:"anc_measurement"`
	Dosage float64 `db:"dosage_measurement"`
}

type PatientRepository struct {
	db    *sqlx.DB
	codec *security.FieldCodec
}

func NewPatientRepository(db *sqlx.DB, codec *security.FieldCodec) *PatientRepository {
	return &PatientRepository{db: db, codec: codec}
}

// fieldEncoder accumulates the first encode error so a row can be assembled
// without an err check per column.
type fieldEncoder struct {
	codec      *security.FieldCodec
	passphrase string
	err        error
}

func (e *fieldEncoder) encode(plaintext string) string {
	if e.err != nil {
		return ""
	}
	ciphertext, err := e.codec.Encode(plaintext, e.passphrase)
	if err != nil {
		e.err = err
	}
	return ciphertext
}

type fieldDecoder struct {
	codec      *security.FieldCodec
	passphrase string
	err        error
}

func (d *fieldDecoder) decode(ciphertext string) string {
	if d.err != nil {
		return ""
	}
	plaintext, err := d.codec.Decode(ciphertext, d.passphrase)
	if err != nil {
		d.err = err
	}
	return plaintext
}

func (d *fieldDecoder) decodeFloat(ciphertext string) float64 {
	raw := d.decode(ciphertext)
	if d.err != nil {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		d.err = err
	}
	return value
}

func (d *fieldDecoder) decodeInt(ciphertext string) int {
	raw := d.decode(ciphertext)
	if d.err != nil {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		d.err = err
	}
	return value
}

func (r *PatientRepository) encodeRow(p *model.Patient, passphrase string) (*patientRow, error) {
	enc := &fieldEncoder{codec: r.codec, passphrase: passphrase}
	row := &patientRow{
		ID:           p.ID,
		UserID:       enc.encode(p.UserID),
		Name:         enc.encode(p.Name),
		Sex:          enc.encode(p.Sex),
		Birthday:     enc.encode(p.Birthday),
		Age:          enc.encode(strconv.Itoa(p.Age)),
		PhoneNumber:  enc.encode(p.PhoneNumber),
		BloodType:    enc.encode(string(p.BloodType)),
		ALLType:      enc.encode(string(p.ALLType)),
		Weight:       enc.encode(strconv.FormatFloat(p.Weight, 'f', -1, 64)),
		Height:       enc.encode(strconv.FormatFloat(p.Height, 'f', -1, 64)),
		BSA:          enc.encode(strconv.FormatFloat(p.BSA, 'f', 2, 64)),
		OncologistID: p.OncologistID,
	}
	if enc.err != nil {
		return nil, apperrors.Internal(enc.err)
	}
	return row, nil
}

func (r *PatientRepository) decodeRow(row *patientRow, passphrase string) (*model.Patient, error) {
	dec := &fieldDecoder{codec: r.codec, passphrase: passphrase}
	p := &model.Patient{
		ID:           row.ID,
		UserID:       dec.decode(row.UserID),
		Name:         dec.decode(row.Name),
		Sex:          dec.decode(row.Sex),
		Birthday:     dec.decode(row.Birthday),
		Age:          dec.decodeInt(row.Age),
		PhoneNumber:  dec.decode(row.PhoneNumber),
		BloodType:    model.BloodType(dec.decode(row.BloodType)),
		ALLType:      model.ALLType(dec.decode(row.ALLType)),
		Weight:       dec.decodeFloat(row.Weight),
		Height:       dec.decodeFloat(row.Height),
		BSA:          dec.decodeFloat(row.BSA),
		OncologistID: row.OncologistID,
	}
	if dec.err != nil {
		if errors.Is(dec.err, security.ErrDecryption) {
			return nil, apperrors.Decryption(dec.err)
		}
		return nil, apperrors.Internal(dec.err)
	}
	return p, nil
}

func (r *PatientRepository) Save(ctx context.Context, p *model.Patient, entry repository.MeasurementEntry, passphrase string) error {
	row, err := r.encodeRow(p, passphrase)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal(err)
	}
	defer tx.Rollback()

	if p.ID == 0 {
		result, err := tx.NamedExecContext(ctx, `
			INSERT INTO patients (
				user_id, name, sex, birthday, age, phone_number,
				blood_type, all_type, weight, height, body_surface_area,
				oncologist_id
			) VALUES (
				:user_id, :name, :sex, :birthday, :age, :phone_number,
				:blood_type, :all_type, :weight, :height, :body_surface_area,
				:oncologist_id
			)`, row)
		if err != nil {
			return translateError(err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return apperrors.Internal(err)
		}
		row.ID = id
		p.ID = id
	} else {
		result, err := tx.NamedExecContext(ctx, `
			UPDATE patients SET
				user_id = :user_id, name = :name, sex = :sex,
				birthday = :birthday, age = :age, phone_number = :phone_number,
				blood_type = :blood_type, all_type = :all_type,
				weight = :weight, height = :height,
				body_surface_area = :body_surface_area,
				oncologist_id = :oncologist_id
			WHERE id = :id`, row)
		if err != nil {
			return translateError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return apperrors.Internal(err)
		}
		if affected == 0 {
			return apperrors.NotFound("patient", sql.ErrNoRows)
		}
	}

	// The measurement pair is written on every save, edited or not; the
	// duplicate-key failure on an unchanged date is what callers surface
	// as "existing entry".
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO measurements (time, patient_id, anc_measurement, dosage_measurement)
		VALUES (?, ?, ?, ?)`,
		entry.Date, row.ID, entry.ANC, entry.Dosage); err != nil {
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (r *PatientRepository) Load(ctx context.Context, id int64, passphrase string) (*model.Patient, error) {
	var row patientRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM patients WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, apperrors.Internal(err)
	}

	p, err := r.decodeRow(&row, passphrase)
	if err != nil {
		return nil, err
	}

	var points []measurementRow
	if err := r.db.SelectContext(ctx, &points, `
		SELECT time, anc_measurement, dosage_measurement
		FROM measurements
		WHERE patient_id = ?
		ORDER BY time ASC`, id); err != nil {
		return nil, apperrors.Internal(err)
	}

	for _, point := range points {
		p.ANCMeasurements = append(p.ANCMeasurements, model.MeasurementPoint{Value: point.ANC, Date: point.Time})
		p.DosageMeasurements = append(p.DosageMeasurements, model.MeasurementPoint{Value: point.Dosage, Date: point.Time})
	}
	return p, nil
}

func (r *PatientRepository) List(ctx context.Context, oncologistID, passphrase string) ([]*model.Patient, error) {
	var rows []patientRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM patients WHERE oncologist_id = ? ORDER BY id ASC`, oncologistID); err != nil {
		return nil, apperrors.Internal(err)
	}

	patients := make([]*model.Patient, 0, len(rows))
	for i := range rows {
		p, err := r.decodeRow(&rows[i], passphrase)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, nil
}

func (r *PatientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal(err)
	}
	if affected == 0 {
		return apperrors.NotFound("patient", sql.ErrNoRows)
	}
	return nil
}

// translateError maps driver errors onto the application taxonomy. The
// modernc driver reports constraint violations by message, not by a typed
// error, so this matches on the SQLite error text.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperrors.DuplicateKey("duplicate key", err)
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return apperrors.Validation("referenced record does not exist")
	}
	return apperrors.Internal(err)
}
