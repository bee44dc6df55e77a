package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/oncodose/treatment-api/pkg/logger"
	"github.com/oncodose/treatment-api/pkg/metrics"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RunState is the last known state of a patient's simulation, kept so a
// completed run can be redisplayed when the patient is selected again.
type RunState struct {
	Status     Status    `json:"status"`
	Output     *Output   `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Result is the message a finished run posts to the results channel.
type Result struct {
	PatientID int64
	Output    *Output
	Err       error
}

// Orchestrator runs engine invocations asynchronously, at most one in flight
// per patient. Each run gets its own goroutine and a deadline; outcomes are
// recorded in a per-patient state map and additionally posted to Results for
// consumers that want push delivery. The state map is authoritative, so the
// channel send never blocks: if no consumer is draining, the result is
// dropped there and still observable via State.
type Orchestrator struct {
	engine  Engine
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	running map[int64]context.CancelFunc
	states  map[int64]*RunState
	wg      sync.WaitGroup

	results chan Result
}

func NewOrchestrator(engine Engine, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		engine:  engine,
		timeout: timeout,
		log:     log,
		metrics: m,
		running: make(map[int64]context.CancelFunc),
		states:  make(map[int64]*RunState),
		results: make(chan Result, 16),
	}
}

// Results exposes the completion channel.
func (o *Orchestrator) Results() <-chan Result {
	return o.results
}

// Start launches a run for the patient unless one is already in flight, in
// which case the request joins the existing run and started is false.
func (o *Orchestrator) Start(patientID int64, req *Request) (started bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, inFlight := o.running[patientID]; inFlight {
		o.metrics.SimulationRunsJoined.Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	o.running[patientID] = cancel
	o.states[patientID] = &RunState{Status: StatusRunning, StartedAt: time.Now()}
	o.metrics.SimulationRunsStarted.Inc()

	o.wg.Add(1)
	go o.run(ctx, cancel, patientID, req)
	return true
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, patientID int64, req *Request) {
	defer o.wg.Done()
	defer cancel()

	start := time.Now()
	out, err := o.engine.Run(ctx, req)
	elapsed := time.Since(start)
	o.metrics.SimulationDuration.Observe(elapsed.Seconds())

	o.mu.Lock()
	delete(o.running, patientID)
	if err != nil {
		o.metrics.SimulationRunsFailed.Inc()
	} else {
		o.metrics.SimulationRunsCompleted.Inc()
	}
	// Forget may have dropped the state entry mid-run (patient deleted);
	// in that case the outcome is discarded rather than resurrected.
	prev, tracked := o.states[patientID]
	if tracked {
		state := &RunState{
			StartedAt:  prev.StartedAt,
			FinishedAt: time.Now(),
		}
		if err != nil {
			state.Status = StatusFailed
			state.Error = err.Error()
		} else {
			state.Status = StatusCompleted
			state.Output = out
		}
		o.states[patientID] = state
	}
	o.mu.Unlock()

	if err != nil {
		o.log.Error(err, "simulation run failed", "patient_id", patientID, "elapsed", elapsed.String())
	} else {
		o.log.Info("simulation run completed", "patient_id", patientID, "elapsed", elapsed.String())
	}

	if !tracked {
		return
	}
	select {
	case o.results <- Result{PatientID: patientID, Output: out, Err: err}:
	default:
	}
}

// State reports the patient's run state; idle if none has been started.
func (o *Orchestrator) State(patientID int64) RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if state, ok := o.states[patientID]; ok {
		return *state
	}
	return RunState{Status: StatusIdle}
}

// Cancel aborts the patient's in-flight run, if any.
func (o *Orchestrator) Cancel(patientID int64) {
	o.mu.Lock()
	cancel, ok := o.running[patientID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// Forget drops any recorded state for the patient, used after deletion.
func (o *Orchestrator) Forget(patientID int64) {
	o.Cancel(patientID)
	o.mu.Lock()
	delete(o.states, patientID)
	o.mu.Unlock()
}

// Shutdown cancels every in-flight run and waits for the workers to drain.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	for _, cancel := range o.running {
		cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}
