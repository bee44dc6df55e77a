package session

import (
	"context"
	"sync"
	"time"

	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/service/oncologist"
	"github.com/oncodose/treatment-api/internal/service/patient"
	"github.com/oncodose/treatment-api/internal/simulation"
	"github.com/oncodose/treatment-api/pkg/auth"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
	"github.com/oncodose/treatment-api/pkg/logger"
)

// Session is the explicit per-login state that used to live scattered across
// the UI: who is logged in, the passphrase that unlocks their patients'
// records, and which patient is currently selected. The passphrase is the
// login password; it exists only here, in memory, for the lifetime of the
// session.
type Session struct {
	Username  string
	FullName  string
	IsAdmin   bool
	CreatedAt time.Time

	mu                sync.Mutex
	passphrase        string
	selectedPatientID int64
}

// Passphrase returns the decryption passphrase for this session.
func (s *Session) Passphrase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passphrase
}

// SelectedPatient returns the currently selected patient id, zero if none.
func (s *Session) SelectedPatient() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPatientID
}

func (s *Session) selectPatient(id int64) {
	s.mu.Lock()
	s.selectedPatientID = id
	s.mu.Unlock()
}

// clear wipes session state. The passphrase goes first so no later step can
// observe a session that is half logged out but still able to decrypt.
func (s *Session) clear() {
	s.mu.Lock()
	s.passphrase = ""
	s.selectedPatientID = 0
	s.mu.Unlock()
}

// Service owns the session table and fronts every operation that needs
// session state: login, patient selection, saves and simulation runs. One
// session per oncologist; a second login replaces the first.
type Service struct {
	oncologists  *oncologist.Service
	patients     *patient.Service
	orchestrator *simulation.Orchestrator
	jwt          *auth.JWTService
	log          *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewService(
	oncologists *oncologist.Service,
	patients *patient.Service,
	orchestrator *simulation.Orchestrator,
	jwt *auth.JWTService,
	log *logger.Logger,
) *Service {
	return &Service{
		oncologists:  oncologists,
		patients:     patients,
		orchestrator: orchestrator,
		jwt:          jwt,
		log:          log,
		sessions:     make(map[string]*Session),
	}
}

// Login authenticates the oncologist and opens a session whose passphrase is
// the login password. Returns the session and a bearer token for the HTTP
// surface.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, string, error) {
	o, err := s.oncologists.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}

	token, err := s.jwt.Generate(o)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}

	session := &Session{
		Username:   o.Username,
		FullName:   o.FullName,
		IsAdmin:    o.IsAdmin,
		CreatedAt:  time.Now(),
		passphrase: password,
	}

	s.mu.Lock()
	s.sessions[o.Username] = session
	s.mu.Unlock()

	s.log.Info("session opened", "username", o.Username)
	return session, token, nil
}

// Logout wipes and removes the session. Safe to call twice.
func (s *Service) Logout(username string) {
	s.mu.Lock()
	session, ok := s.sessions[username]
	delete(s.sessions, username)
	s.mu.Unlock()

	if ok {
		session.clear()
		s.log.Info("session closed", "username", username)
	}
}

// Get returns the live session for the username, if any. A valid token
// without a session means the user logged out; callers treat that as
// unauthorized.
func (s *Service) Get(username string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[username]
	return session, ok
}

func (s *Service) session(username string) (*Session, error) {
	session, ok := s.Get(username)
	if !ok {
		return nil, apperrors.Unauthorized(nil)
	}
	return session, nil
}

// SelectPatient loads the patient with the session passphrase and records the
// selection, which scopes simulation status reads from now on.
func (s *Service) SelectPatient(ctx context.Context, username string, patientID int64) (*model.Patient, error) {
	session, err := s.session(username)
	if err != nil {
		return nil, err
	}

	p, err := s.patients.Get(ctx, patientID, session.Passphrase())
	if err != nil {
		return nil, err
	}
	session.selectPatient(patientID)
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, username string) ([]*model.Patient, error) {
	session, err := s.session(username)
	if err != nil {
		return nil, err
	}
	return s.patients.List(ctx, username, session.Passphrase())
}

// SavePatient runs the form submission under the session's identity and
// passphrase. A newly enrolled patient becomes the selection.
func (s *Service) SavePatient(ctx context.Context, username string, req *patient.SaveRequest) (*model.Patient, error) {
	session, err := s.session(username)
	if err != nil {
		return nil, err
	}

	req.OncologistID = username
	p, err := s.patients.Save(ctx, req, session.Passphrase())
	if err != nil {
		return nil, err
	}
	session.selectPatient(p.ID)
	return p, nil
}

// DeletePatient removes the patient, any recorded simulation state, and the
// selection if it pointed at them.
func (s *Service) DeletePatient(ctx context.Context, username string, patientID int64) error {
	session, err := s.session(username)
	if err != nil {
		return err
	}

	if err := s.patients.Delete(ctx, patientID); err != nil {
		return err
	}
	s.orchestrator.Forget(patientID)
	if session.SelectedPatient() == patientID {
		session.selectPatient(0)
	}
	return nil
}

// RunSimulation builds the engine request from the patient's stored series
// and starts an asynchronous run. The engine's planning horizon includes the
// baseline cycle, so the requested cycle count is sent incremented by one.
// Returns false if a run for this patient is already in flight.
func (s *Service) RunSimulation(ctx context.Context, username string, patientID int64, cycles int) (bool, error) {
	session, err := s.session(username)
	if err != nil {
		return false, err
	}
	if cycles <= 0 {
		return false, apperrors.Validation("cycles must be positive")
	}

	p, err := s.patients.Get(ctx, patientID, session.Passphrase())
	if err != nil {
		return false, err
	}
	anc, ok := p.LatestANC()
	if !ok {
		return false, apperrors.Validation("patient has no measurements to simulate from")
	}
	dosage, _ := p.LatestDosage()

	// The engine projects forward from the most recent observation pair,
	// passed as one-element lists.
	req := &simulation.Request{
		Cycles:       float64(cycles + 1),
		BSA:          p.BSA,
		ANCValues:    []float64{anc.Value},
		ANCDates:     []string{anc.Date},
		DosageValues: []float64{dosage.Value},
		DosageDates:  []string{dosage.Date},
	}

	return s.orchestrator.Start(patientID, req), nil
}

// SimulationStatus reports the run state for the patient, but only while
// that patient is the session's selection. Results for a formerly selected
// patient are suppressed here and kept in the orchestrator for redisplay
// when the patient is selected again.
func (s *Service) SimulationStatus(username string, patientID int64) (simulation.RunState, error) {
	session, err := s.session(username)
	if err != nil {
		return simulation.RunState{}, err
	}
	if session.SelectedPatient() != patientID {
		return simulation.RunState{Status: simulation.StatusIdle}, nil
	}
	return s.orchestrator.State(patientID), nil
}
