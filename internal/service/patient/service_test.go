package patient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/repository"
	"github.com/oncodose/treatment-api/internal/repository/sqlite"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
	"github.com/oncodose/treatment-api/pkg/logger"
	"github.com/oncodose/treatment-api/pkg/security"
)

const testPassphrase = "s3cret-passphrase"

func newTestService(t *testing.T) (*Service, repository.PatientRepository) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	oncologists := sqlite.NewOncologistRepository(db)
	require.NoError(t, oncologists.Create(context.Background(), &model.Oncologist{
		Username: "house", PasswordHash: "h", FullName: "Gregory House",
	}))

	repo := sqlite.NewPatientRepository(db, security.NewFieldCodec())
	svc := NewService(repo, logger.NewLogger(nil))
	svc.now = func() time.Time {
		return time.Date(2026, 5, 6, 12, 0, 0, 123456000, time.UTC)
	}
	return svc, repo
}

func validRequest() *SaveRequest {
	return &SaveRequest{
		Name:         "Jane Doe",
		Sex:          model.SexFemale,
		Birthday:     "19900506",
		PhoneNumber:  "555-0101",
		BloodType:    "O+",
		ALLType:      "Immunophenotype",
		Weight:       70,
		Height:       169,
		OncologistID: "house",
		Consent:      true,
		Dosage:       50,
		DosageEdited: true,
		ANC:          1.2,
		ANCEdited:    true,
	}
}

func TestSaveNewPatientDerivesFields(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Save(context.Background(), validRequest(), testPassphrase)
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "janedoe123456", p.UserID)
	assert.Equal(t, 36, p.Age)
	assert.InDelta(t, 1.81, p.BSA, 0.0001)
	require.Len(t, p.ANCMeasurements, 1)
	assert.Equal(t, "20260506", p.ANCMeasurements[0].Date)
}

func TestSaveRejectsEmptyFields(t *testing.T) {
	svc, _ := newTestService(t)

	req := validRequest()
	req.Name = "   "
	_, err := svc.Save(context.Background(), req, testPassphrase)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "Input fields must not be empty")
}

func TestSaveRequiresConsentForNewPatient(t *testing.T) {
	svc, _ := newTestService(t)

	req := validRequest()
	req.Consent = false
	_, err := svc.Save(context.Background(), req, testPassphrase)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Patient must provide consent to store data")
}

func TestSaveExistingPatientSkipsConsent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Save(ctx, validRequest(), testPassphrase)
	require.NoError(t, err)

	update := validRequest()
	update.PatientID = p.ID
	update.Consent = false
	update.Weight = 68
	update.MeasurementDate = "20260601"

	updated, err := svc.Save(ctx, update, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, 68.0, updated.Weight)
	// The pseudonym is minted once at enrollment.
	assert.Equal(t, p.UserID, updated.UserID)
	assert.Len(t, updated.ANCMeasurements, 2)
}

func TestSaveRejectsInvalidEnums(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := validRequest()
	req.BloodType = "C+"
	_, err := svc.Save(ctx, req, testPassphrase)
	assert.True(t, apperrors.IsValidation(err))

	req = validRequest()
	req.ALLType = "bogus"
	_, err = svc.Save(ctx, req, testPassphrase)
	assert.True(t, apperrors.IsValidation(err))

	req = validRequest()
	req.Sex = "other"
	_, err = svc.Save(ctx, req, testPassphrase)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSaveDuplicateDateReportsExistingEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Save(ctx, validRequest(), testPassphrase)
	require.NoError(t, err)

	update := validRequest()
	update.PatientID = p.ID
	_, err = svc.Save(ctx, update, testPassphrase)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "Existing entry in the database. Please check your inputs.")
}

func TestSavePersistsMeasurementsEvenWhenUnedited(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Save(ctx, validRequest(), testPassphrase)
	require.NoError(t, err)

	update := validRequest()
	update.PatientID = p.ID
	update.DosageEdited = false
	update.ANCEdited = false
	update.MeasurementDate = "20260601"

	updated, err := svc.Save(ctx, update, testPassphrase)
	require.NoError(t, err)
	// Write-through is unconditional; the reload surfaces the new row
	// even though neither field was edited.
	assert.Len(t, updated.ANCMeasurements, 2)
	assert.Len(t, updated.DosageMeasurements, 2)
}

func TestGetMissingPatient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 404, testPassphrase)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Save(ctx, validRequest(), testPassphrase)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID, testPassphrase)
	assert.True(t, apperrors.IsNotFound(err))
}
