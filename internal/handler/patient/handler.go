package patient

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oncodose/treatment-api/internal/handler"
	"github.com/oncodose/treatment-api/internal/middleware"
	"github.com/oncodose/treatment-api/internal/service/patient"
	"github.com/oncodose/treatment-api/internal/service/session"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

type Handler struct {
	sessions *session.Service
}

func NewHandler(sessions *session.Service) *Handler {
	return &Handler{sessions: sessions}
}

// saveRequest is the JSON form of one patient-form submission.
type saveRequest struct {
	PatientID   int64   `json:"patient_id"`
	Name        string  `json:"name" binding:"required"`
	Sex         string  `json:"sex" binding:"required,sex"`
	Birthday    string  `json:"birthday" binding:"required,yyyymmdd"`
	PhoneNumber string  `json:"phone_number" binding:"required"`
	BloodType   string  `json:"blood_type" binding:"required,bloodtype"`
	ALLType     string  `json:"all_type" binding:"required,alltype"`
	Weight      float64 `json:"weight" binding:"required,gt=0"`
	Height      float64 `json:"height" binding:"required,gt=0"`
	Consent     bool    `json:"consent"`

	Dosage          float64 `json:"dosage"`
	DosageEdited    bool    `json:"dosage_edited"`
	ANC             float64 `json:"anc"`
	ANCEdited       bool    `json:"anc_edited"`
	MeasurementDate string  `json:"measurement_date"`
}

// Save handles enrollment (patient_id absent) and updates alike.
func (h *Handler) Save(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation(handler.BindingMessage(err)))
		return
	}

	p, err := h.sessions.SavePatient(c.Request.Context(), middleware.Username(c), &patient.SaveRequest{
		PatientID:       req.PatientID,
		Name:            req.Name,
		Sex:             req.Sex,
		Birthday:        req.Birthday,
		PhoneNumber:     req.PhoneNumber,
		BloodType:       req.BloodType,
		ALLType:         req.ALLType,
		Weight:          req.Weight,
		Height:          req.Height,
		Consent:         req.Consent,
		Dosage:          req.Dosage,
		DosageEdited:    req.DosageEdited,
		ANC:             req.ANC,
		ANCEdited:       req.ANCEdited,
		MeasurementDate: req.MeasurementDate,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if req.PatientID == 0 {
		handler.RespondCreated(c, p)
		return
	}
	handler.RespondOK(c, p)
}

// List returns the session oncologist's patients, demographics only.
func (h *Handler) List(c *gin.Context) {
	patients, err := h.sessions.ListPatients(c.Request.Context(), middleware.Username(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondOK(c, patients)
}

// Get selects the patient for this session and returns the full aggregate.
func (h *Handler) Get(c *gin.Context) {
	id, err := patientID(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	p, err := h.sessions.SelectPatient(c.Request.Context(), middleware.Username(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondOK(c, p)
}

// Delete removes the patient record, measurement history included.
func (h *Handler) Delete(c *gin.Context) {
	id, err := patientID(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.sessions.DeletePatient(c.Request.Context(), middleware.Username(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondOK(c, gin.H{"deleted": id})
}

func patientID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid patient id")
	}
	return id, nil
}
