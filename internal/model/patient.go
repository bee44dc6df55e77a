package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar grain used for birthdays and measurement
// timestamps, kept in yyyyMMdd form throughout storage and transport.
const DateLayout = "20060102"

type BloodType string

const (
	BloodAPositive  BloodType = "A+"
	BloodANegative  BloodType = "A-"
	BloodBPositive  BloodType = "B+"
	BloodBNegative  BloodType = "B-"
	BloodOPositive  BloodType = "O+"
	BloodONegative  BloodType = "O-"
	BloodABPositive BloodType = "AB+"
	BloodABNegative BloodType = "AB-"
)

// BloodTypes lists every valid value, in display order.
var BloodTypes = []BloodType{
	BloodAPositive, BloodANegative,
	BloodBPositive, BloodBNegative,
	BloodOPositive, BloodONegative,
	BloodABPositive, BloodABNegative,
}

func (b BloodType) Valid() bool {
	for _, known := range BloodTypes {
		if b == known {
			return true
		}
	}
	return false
}

// ALLType classifies the acute lymphoblastic leukemia subtype scheme.
type ALLType string

const (
	ALLImmunophenotype       ALLType = "Immunophenotype"
	ALLFrenchAmericanBritish ALLType = "French-American-British (FAB)"
	ALLCytogeneticRisk       ALLType = "ALL Cytogenetic Risk Group"
)

var ALLTypes = []ALLType{ALLImmunophenotype, ALLFrenchAmericanBritish, ALLCytogeneticRisk}

func (a ALLType) Valid() bool {
	for _, known := range ALLTypes {
		if a == known {
			return true
		}
	}
	return false
}

const (
	SexMale   = "Male"
	SexFemale = "Female"
)

// MeasurementPoint is one observation in a patient series.
type MeasurementPoint struct {
	Value float64 `json:"value"`
	Date  string  `json:"date"`
}

// Patient is the decrypted in-memory view of one patient: demographics plus
// the two parallel measurement series, each ordered ascending by date.
type Patient struct {
	ID           int64     `db:"id" json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Sex          string    `json:"sex"`
	Birthday     string    `json:"birthday"`
	Age          int       `json:"age"`
	PhoneNumber  string    `json:"phone_number"`
	BloodType    BloodType `json:"blood_type"`
	ALLType      ALLType   `json:"all_type"`
	Weight       float64   `json:"weight"`
	Height       float64   `json:"height"`
	BSA          float64   `json:"body_surface_area"`
	OncologistID string    `json:"oncologist_id"`

	ANCMeasurements    []MeasurementPoint `json:"anc_measurements"`
	DosageMeasurements []MeasurementPoint `json:"dosage_measurements"`
}

// LatestANC returns the most recent ANC point. With duplicate dates the
// last row in ascending read order wins.
func (p *Patient) LatestANC() (MeasurementPoint, bool) {
	if len(p.ANCMeasurements) == 0 {
		return MeasurementPoint{}, false
	}
	return p.ANCMeasurements[len(p.ANCMeasurements)-1], true
}

// LatestDosage returns the most recent dosage point.
func (p *Patient) LatestDosage() (MeasurementPoint, bool) {
	if len(p.DosageMeasurements) == 0 {
		return MeasurementPoint{}, false
	}
	return p.DosageMeasurements[len(p.DosageMeasurements)-1], true
}

// ApplySave overwrites the demographic fields and appends the new measurement
// points to the in-memory series, gated by the edited flags. Persistence of
// the measurement pair is unconditional regardless of these flags (see
// repository.PatientRepository.Save), so callers reload the aggregate from
// the store after a successful save to reconcile.
func (p *Patient) ApplySave(demographics Patient, dosage MeasurementPoint, dosageEdited bool, anc MeasurementPoint, ancEdited bool) {
	p.UserID = demographics.UserID
	p.Name = demographics.Name
	p.Sex = demographics.Sex
	p.Birthday = demographics.Birthday
	p.Age = demographics.Age
	p.PhoneNumber = demographics.PhoneNumber
	p.BloodType = demographics.BloodType
	p.ALLType = demographics.ALLType
	p.Weight = demographics.Weight
	p.Height = demographics.Height
	p.BSA = demographics.BSA
	p.OncologistID = demographics.OncologistID

	if dosageEdited {
		p.DosageMeasurements = append(p.DosageMeasurements, dosage)
	}
	if ancEdited {
		p.ANCMeasurements = append(p.ANCMeasurements, anc)
	}
}

// BodySurfaceArea derives BSA (m²) from height (cm) and weight (kg),
// rounded to two decimals as displayed and stored.
func BodySurfaceArea(heightCm, weightKg float64) float64 {
	bsa := math.Sqrt(heightCm * weightKg / 3600)
	return math.Round(bsa*100) / 100
}

// FormatBSA renders a BSA value the way the enrollment form shows it.
func FormatBSA(bsa float64) string {
	return fmt.Sprintf("%.2f", bsa)
}

// NewUserID builds the user-facing pseudonymous id from the patient name and
// the sub-second component of the creation instant. Uniqueness is
// probabilistic and not enforced by the store.
func NewUserID(name string, now time.Time) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return fmt.Sprintf("%d", now.Nanosecond()/1000)
	}
	first := strings.ToLower(parts[0])
	last := strings.ToLower(strings.Join(parts[1:], ""))
	return fmt.Sprintf("%s%s%d", first, last, now.Nanosecond()/1000)
}

// AgeAt computes full years between a yyyyMMdd birthday and today.
func AgeAt(birthday string, today time.Time) (int, error) {
	born, err := time.Parse(DateLayout, birthday)
	if err != nil {
		return 0, fmt.Errorf("invalid birthday %q: %w", birthday, err)
	}
	age := today.Year() - born.Year()
	if today.Month() < born.Month() || (today.Month() == born.Month() && today.Day() < born.Day()) {
		age--
	}
	return age, nil
}
