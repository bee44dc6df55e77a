package patient

import (
	"context"
	"strings"
	"time"

	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/repository"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
	"github.com/oncodose/treatment-api/pkg/logger"
)

// Validation messages shown to the oncologist, kept verbatim from the
// enrollment form.
const (
	msgEmptyFields      = "Input fields must not be empty"
	msgConsentRequired  = "Patient must provide consent to store data"
	msgExistingEntry    = "Existing entry in the database. Please check your inputs."
	msgInvalidBloodType = "Unknown blood type"
	msgInvalidALLType   = "Unknown ALL type"
	msgInvalidSex       = "Unknown sex"
)

// SaveRequest carries one submission of the patient form. PatientID zero
// means enrollment of a new patient; Consent is only required then. The
// edited flags say whether the oncologist touched the measurement fields
// this session; persistence of the measurement pair ignores them.
type SaveRequest struct {
	PatientID    int64
	Name         string
	Sex          string
	Birthday     string
	PhoneNumber  string
	BloodType    string
	ALLType      string
	Weight       float64
	Height       float64
	OncologistID string
	Consent      bool

	Dosage       float64
	DosageEdited bool
	ANC          float64
	ANCEdited    bool
	// MeasurementDate defaults to today when empty.
	MeasurementDate string
}

type Service struct {
	repo repository.PatientRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repository.PatientRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func (s *Service) validate(req *SaveRequest) error {
	if strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.Birthday) == "" ||
		strings.TrimSpace(req.PhoneNumber) == "" ||
		req.Weight <= 0 || req.Height <= 0 {
		return apperrors.Validation(msgEmptyFields)
	}
	if req.PatientID == 0 && !req.Consent {
		return apperrors.Validation(msgConsentRequired)
	}
	if req.Sex != model.SexMale && req.Sex != model.SexFemale {
		return apperrors.Validation(msgInvalidSex)
	}
	if !model.BloodType(req.BloodType).Valid() {
		return apperrors.Validation(msgInvalidBloodType)
	}
	if !model.ALLType(req.ALLType).Valid() {
		return apperrors.Validation(msgInvalidALLType)
	}
	return nil
}

// Save validates the form, derives age, BSA and (for new patients) the
// pseudonymous user id, then persists demographics plus the measurement
// pair in one transaction and reloads the aggregate so the caller sees
// exactly what the store now holds.
func (s *Service) Save(ctx context.Context, req *SaveRequest, passphrase string) (*model.Patient, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	age, err := model.AgeAt(req.Birthday, now)
	if err != nil {
		return nil, apperrors.Validation(msgEmptyFields)
	}

	demographics := model.Patient{
		Name:         req.Name,
		Sex:          req.Sex,
		Birthday:     req.Birthday,
		Age:          age,
		PhoneNumber:  req.PhoneNumber,
		BloodType:    model.BloodType(req.BloodType),
		ALLType:      model.ALLType(req.ALLType),
		Weight:       req.Weight,
		Height:       req.Height,
		BSA:          model.BodySurfaceArea(req.Height, req.Weight),
		OncologistID: req.OncologistID,
	}

	var current *model.Patient
	if req.PatientID == 0 {
		demographics.UserID = model.NewUserID(req.Name, now)
		current = &model.Patient{}
	} else {
		current, err = s.repo.Load(ctx, req.PatientID, passphrase)
		if err != nil {
			return nil, err
		}
		demographics.UserID = current.UserID
	}

	date := req.MeasurementDate
	if date == "" {
		date = now.Format(model.DateLayout)
	}
	dosage := model.MeasurementPoint{Value: req.Dosage, Date: date}
	anc := model.MeasurementPoint{Value: req.ANC, Date: date}

	current.ApplySave(demographics, dosage, req.DosageEdited, anc, req.ANCEdited)

	entry := repository.MeasurementEntry{Date: date, ANC: req.ANC, Dosage: req.Dosage}
	if err := s.repo.Save(ctx, current, entry, passphrase); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, apperrors.Validation(msgExistingEntry)
		}
		return nil, err
	}

	s.log.Info("patient saved", "patient_id", current.ID, "user_id", current.UserID)

	// Reload to reconcile the in-memory aggregate with the unconditional
	// measurement write.
	return s.repo.Load(ctx, current.ID, passphrase)
}

func (s *Service) Get(ctx context.Context, id int64, passphrase string) (*model.Patient, error) {
	return s.repo.Load(ctx, id, passphrase)
}

func (s *Service) List(ctx context.Context, oncologistID, passphrase string) ([]*model.Patient, error) {
	return s.repo.List(ctx, oncologistID, passphrase)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("patient deleted", "patient_id", id)
	return nil
}
