package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/repository/sqlite"
	"github.com/oncodose/treatment-api/internal/service/oncologist"
	"github.com/oncodose/treatment-api/internal/service/patient"
	"github.com/oncodose/treatment-api/internal/simulation"
	"github.com/oncodose/treatment-api/pkg/auth"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
	"github.com/oncodose/treatment-api/pkg/logger"
	"github.com/oncodose/treatment-api/pkg/metrics"
	"github.com/oncodose/treatment-api/pkg/security"
)

type fakeEngine struct {
	calls atomic.Int64
	out   *simulation.Output
	err   error
	delay time.Duration
}

func (f *fakeEngine) Run(ctx context.Context, req *simulation.Request) (*simulation.Output, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func newTestStack(t *testing.T, engine simulation.Engine) *Service {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewLogger(nil)
	oncologists := oncologist.NewService(sqlite.NewOncologistRepository(db), security.NewBcryptHasher(4), log)
	patients := patient.NewService(sqlite.NewPatientRepository(db, security.NewFieldCodec()), log)
	orchestrator := simulation.NewOrchestrator(engine, time.Minute, log, metrics.New("test"))
	t.Cleanup(orchestrator.Shutdown)
	jwtSvc := auth.NewJWTService("test-secret", time.Hour)

	svc := NewService(oncologists, patients, orchestrator, jwtSvc, log)

	_, err = oncologists.Register(context.Background(), &model.RegisterOncologistRequest{
		Username: "house", Password: "vicodin-addict", FullName: "Gregory House",
	})
	require.NoError(t, err)
	return svc
}

func saveRequest(name string) *patient.SaveRequest {
	return &patient.SaveRequest{
		Name:         name,
		Sex:          model.SexFemale,
		Birthday:     "19900506",
		PhoneNumber:  "555-0101",
		BloodType:    "O+",
		ALLType:      "Immunophenotype",
		Weight:       70,
		Height:       169,
		Consent:      true,
		Dosage:       50,
		DosageEdited: true,
		ANC:          1.2,
		ANCEdited:    true,
	}
}

func waitForStatus(t *testing.T, svc *Service, username string, patientID int64, want simulation.Status) simulation.RunState {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		state, err := svc.SimulationStatus(username, patientID)
		require.NoError(t, err)
		if state.Status == want {
			return state
		}
		select {
		case <-deadline:
			t.Fatalf("never reached %s, last %s", want, state.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLoginOpensSessionWithPassphrase(t *testing.T) {
	svc := newTestStack(t, &fakeEngine{})

	session, token, err := svc.Login(context.Background(), "house", "vicodin-addict")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "vicodin-addict", session.Passphrase())
	assert.Equal(t, "Gregory House", session.FullName)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestStack(t, &fakeEngine{})

	_, _, err := svc.Login(context.Background(), "house", "tylenol")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestLogoutClearsPassphraseFirst(t *testing.T) {
	svc := newTestStack(t, &fakeEngine{})
	ctx := context.Background()

	session, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)

	svc.Logout("house")

	assert.Empty(t, session.Passphrase())
	assert.Zero(t, session.SelectedPatient())
	_, ok := svc.Get("house")
	assert.False(t, ok)

	// Subsequent session-scoped calls are unauthorized.
	_, err = svc.ListPatients(ctx, "house")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	// Logout is idempotent.
	svc.Logout("house")
}

func TestEnrollSelectAndListRoundTrip(t *testing.T) {
	svc := newTestStack(t, &fakeEngine{})
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)

	p, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "house", p.OncologistID)

	session, _ := svc.Get("house")
	assert.Equal(t, p.ID, session.SelectedPatient())

	patients, err := svc.ListPatients(ctx, "house")
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "Jane Doe", patients[0].Name)

	selected, err := svc.SelectPatient(ctx, "house", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", selected.Name)
	require.Len(t, selected.ANCMeasurements, 1)
}

func TestRunSimulationLifecycle(t *testing.T) {
	engine := &fakeEngine{out: &simulation.Output{
		Time:           []float64{0, 7, 14},
		ReactiveANC:    []float64{1.2, 0.9, 1.4},
		ReactiveDosage: []float64{50, 37.5, 50},
	}}
	svc := newTestStack(t, engine)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)
	p, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)

	started, err := svc.RunSimulation(ctx, "house", p.ID, 6)
	require.NoError(t, err)
	assert.True(t, started)

	state := waitForStatus(t, svc, "house", p.ID, simulation.StatusCompleted)
	require.NotNil(t, state.Output)
	assert.Equal(t, []float64{50, 37.5, 50}, state.Output.ReactiveDosage)
}

func TestRunSimulationSecondStartJoins(t *testing.T) {
	engine := &fakeEngine{delay: time.Hour, out: &simulation.Output{Time: []float64{0}}}
	svc := newTestStack(t, engine)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)
	p, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)

	started, err := svc.RunSimulation(ctx, "house", p.ID, 6)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = svc.RunSimulation(ctx, "house", p.ID, 6)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, int64(1), engine.calls.Load())
}

func TestSimulationStatusSuppressedForUnselectedPatient(t *testing.T) {
	engine := &fakeEngine{out: &simulation.Output{Time: []float64{0, 7}}}
	svc := newTestStack(t, engine)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)

	first, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)
	_, err = svc.RunSimulation(ctx, "house", first.ID, 6)
	require.NoError(t, err)
	waitForStatus(t, svc, "house", first.ID, simulation.StatusCompleted)

	// Enrolling a second patient moves the selection; the finished run for
	// the first patient no longer surfaces.
	second, err := svc.SavePatient(ctx, "house", saveRequest("John Roe"))
	require.NoError(t, err)

	state, err := svc.SimulationStatus("house", first.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusIdle, state.Status)

	state, err = svc.SimulationStatus("house", second.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusIdle, state.Status)

	// Re-selecting the first patient redisplays the retained result.
	_, err = svc.SelectPatient(ctx, "house", first.ID)
	require.NoError(t, err)
	state, err = svc.SimulationStatus("house", first.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, state.Status)
	assert.NotNil(t, state.Output)
}

func TestRunSimulationValidation(t *testing.T) {
	svc := newTestStack(t, &fakeEngine{})
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)
	p, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)

	_, err = svc.RunSimulation(ctx, "house", p.ID, 0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.RunSimulation(ctx, "house", 9999, 6)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeletePatientForgetsSimulationAndSelection(t *testing.T) {
	engine := &fakeEngine{out: &simulation.Output{Time: []float64{0}}}
	svc := newTestStack(t, engine)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)
	p, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)

	_, err = svc.RunSimulation(ctx, "house", p.ID, 6)
	require.NoError(t, err)
	waitForStatus(t, svc, "house", p.ID, simulation.StatusCompleted)

	require.NoError(t, svc.DeletePatient(ctx, "house", p.ID))

	session, _ := svc.Get("house")
	assert.Zero(t, session.SelectedPatient())

	_, err = svc.SelectPatient(ctx, "house", p.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCyclesSentWithBaselineIncrement(t *testing.T) {
	var captured atomic.Value
	engine := &captureEngine{captured: &captured}
	svc := newTestStack(t, engine)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)
	p, err := svc.SavePatient(ctx, "house", saveRequest("Jane Doe"))
	require.NoError(t, err)

	_, err = svc.RunSimulation(ctx, "house", p.ID, 6)
	require.NoError(t, err)
	waitForStatus(t, svc, "house", p.ID, simulation.StatusCompleted)

	req := captured.Load().(*simulation.Request)
	assert.Equal(t, 7.0, req.Cycles)
	assert.InDelta(t, 1.81, req.BSA, 0.0001)
	require.Len(t, req.ANCValues, 1)
	assert.Equal(t, 1.2, req.ANCValues[0])
	assert.Equal(t, []float64{50}, req.DosageValues)
}

type captureEngine struct {
	captured *atomic.Value
}

func (c *captureEngine) Run(ctx context.Context, req *simulation.Request) (*simulation.Output, error) {
	c.captured.Store(req)
	return &simulation.Output{Time: []float64{0}}, nil
}

func TestJaneDoeEndToEnd(t *testing.T) {
	var captured atomic.Value
	series := []float64{0, 7, 14, 21}
	engine := &fullOutputEngine{captured: &captured, series: series}
	svc := newTestStack(t, engine)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "house", "vicodin-addict")
	require.NoError(t, err)

	req := saveRequest("Jane Doe")
	req.Weight = 60
	req.Height = 160
	req.BloodType = "A+"
	req.ANC = 2.1
	req.Dosage = 50
	req.MeasurementDate = "20230101"
	p, err := svc.SavePatient(ctx, "house", req)
	require.NoError(t, err)
	require.Len(t, p.ANCMeasurements, 1)

	update := saveRequest("Jane Doe")
	update.PatientID = p.ID
	update.Weight = 60
	update.Height = 160
	update.BloodType = "A+"
	update.ANC = 2.3
	update.Dosage = 55
	update.MeasurementDate = "20230201"
	p, err = svc.SavePatient(ctx, "house", update)
	require.NoError(t, err)

	require.Len(t, p.ANCMeasurements, 2)
	assert.Equal(t, []float64{2.1, 2.3}, []float64{p.ANCMeasurements[0].Value, p.ANCMeasurements[1].Value})
	assert.Equal(t, []float64{50, 55}, []float64{p.DosageMeasurements[0].Value, p.DosageMeasurements[1].Value})
	assert.Equal(t, "20230101", p.ANCMeasurements[0].Date)
	assert.Equal(t, "20230201", p.ANCMeasurements[1].Date)

	started, err := svc.RunSimulation(ctx, "house", p.ID, 2)
	require.NoError(t, err)
	assert.True(t, started)
	state := waitForStatus(t, svc, "house", p.ID, simulation.StatusCompleted)

	engineReq := captured.Load().(*simulation.Request)
	assert.Equal(t, 3.0, engineReq.Cycles)
	assert.Equal(t, []float64{2.3}, engineReq.ANCValues)
	assert.Equal(t, []float64{55}, engineReq.DosageValues)

	out := state.Output
	require.NotNil(t, out)
	for _, s := range [][]float64{
		out.Time, out.Nominal, out.Linearized,
		out.ReactiveANC, out.AnticipatoryANC,
		out.ReactiveDosage, out.AnticipatoryDosage,
	} {
		assert.NotEmpty(t, s)
	}
}

type fullOutputEngine struct {
	captured *atomic.Value
	series   []float64
}

func (f *fullOutputEngine) Run(ctx context.Context, req *simulation.Request) (*simulation.Output, error) {
	f.captured.Store(req)
	return &simulation.Output{
		Time:               f.series,
		Nominal:            f.series,
		Linearized:         f.series,
		ReactiveANC:        f.series,
		AnticipatoryANC:    f.series,
		ReactiveDosage:     f.series,
		AnticipatoryDosage: f.series,
	}, nil
}
