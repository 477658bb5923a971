// Package orchestrator drives the multi-step prediction flows: the alum flow
// chains classification into the appropriate regression, the lime flows are
// single-step. All state is mutex-guarded and superseded in-flight calls are
// discarded by generation.
package orchestrator

import (
	"context"
	"log"
	"sync"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Service is the slice of the prediction gateway the orchestrator drives.
type Service interface {
	ClassifyWaterQuality(ctx context.Context, ph, turbidity, conductivity string) (models.ClassificationResult, error)
	PredictAlumBasic(ctx context.Context, ph, turbidity, conductivity string) (models.AlumBasicPrediction, error)
	PredictAlumAdvanced(ctx context.Context, ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow string) (models.AlumAdvancedPrediction, error)
	PredictPreLime(ctx context.Context, ph, turbidity, conductivity string) (models.LimePrediction, error)
	PredictPostLime(ctx context.Context, ph, turbidity, conductivity string) (models.LimePrediction, error)
}

// State identifies where an alum flow currently is.
type State string

const (
	StateIdle                  State = "idle"
	StateClassifying           State = "classifying"
	StateNormalPredicting      State = "normal_predicting"
	StateAwaitingAdvancedInput State = "awaiting_advanced_input"
	StateAdvancedPredicting    State = "advanced_predicting"
	StateDone                  State = "done"
	StateError                 State = "error"
)

// InFlight reports whether the state has an outstanding backend call.
func (s State) InFlight() bool {
	return s == StateClassifying || s == StateNormalPredicting || s == StateAdvancedPredicting
}

// AlumSnapshot is a copy of the alum flow's state for handlers and reports.
type AlumSnapshot struct {
	State          State                        `json:"state"`
	Inputs         alumInputs                   `json:"inputs"`
	Classification *models.ClassificationResult `json:"classification,omitempty"`
	Basic          *models.AlumBasicPrediction  `json:"basic_prediction,omitempty"`
	Advanced       *models.AlumAdvancedPrediction `json:"advanced_prediction,omitempty"`
	Chart          []models.ChartPoint          `json:"chart,omitempty"`
	Err            string                       `json:"error,omitempty"`
}

type alumInputs struct {
	Ph           string `json:"ph"`
	Turbidity    string `json:"turbidity"`
	Conductivity string `json:"conductivity"`
}

// AlumFlow runs the classify-then-predict alum dosing flow. A NORMAL
// classification chains straight into the basic regression; an ABNORMAL one
// parks at AwaitingAdvancedInput until SubmitAdvanced provides the flow
// readings. Editing any primary input resets the flow.
type AlumFlow struct {
	mu  sync.Mutex
	svc Service

	generation     uint64
	state          State
	inputs         alumInputs
	classification *models.ClassificationResult
	basic          *models.AlumBasicPrediction
	advanced       *models.AlumAdvancedPrediction
	errMsg         string
}

// NewAlumFlow returns an idle alum flow backed by the given service.
func NewAlumFlow(svc Service) *AlumFlow {
	return &AlumFlow{
		svc:   svc,
		state: StateIdle,
	}
}

// Submit runs classification for the three primary readings, then chains
// into the basic regression when the sample classifies NORMAL. It blocks
// until the flow settles (Done, AwaitingAdvancedInput, or Error). A newer
// Submit or UpdateInputs supersedes this call and its result is discarded.
func (f *AlumFlow) Submit(ctx context.Context, ph, turbidity, conductivity string) error {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.state = StateClassifying
	f.inputs = alumInputs{Ph: ph, Turbidity: turbidity, Conductivity: conductivity}
	f.classification = nil
	f.basic = nil
	f.advanced = nil
	f.errMsg = ""
	f.mu.Unlock()

	classification, err := f.svc.ClassifyWaterQuality(ctx, ph, turbidity, conductivity)
	if err != nil {
		return f.fail(gen, err)
	}

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return nil
	}
	f.classification = &classification
	if !classification.IsNormal() {
		f.state = StateAwaitingAdvancedInput
		f.mu.Unlock()
		return nil
	}
	f.state = StateNormalPredicting
	f.mu.Unlock()

	basic, err := f.svc.PredictAlumBasic(ctx, ph, turbidity, conductivity)
	if err != nil {
		return f.fail(gen, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return nil
	}
	f.basic = &basic
	f.state = StateDone
	return nil
}

// SubmitAdvanced completes an ABNORMAL flow with the three flow-rate
// readings. It is only valid while the flow awaits advanced input.
func (f *AlumFlow) SubmitAdvanced(ctx context.Context, rawWaterFlow, dChamberFlow, aeratorFlow string) error {
	f.mu.Lock()
	if f.state != StateAwaitingAdvancedInput {
		f.mu.Unlock()
		return &FlowStateError{State: f.state}
	}
	gen := f.generation
	inputs := f.inputs
	f.state = StateAdvancedPredicting
	f.mu.Unlock()

	advanced, err := f.svc.PredictAlumAdvanced(ctx, inputs.Ph, inputs.Turbidity, inputs.Conductivity,
		rawWaterFlow, dChamberFlow, aeratorFlow)
	if err != nil {
		return f.fail(gen, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return nil
	}
	f.advanced = &advanced
	f.state = StateDone
	return nil
}

// UpdateInputs records an edit to the primary readings. Changing any of the
// three after a submission invalidates that submission: the flow resets to
// Idle, cached results are cleared, and in-flight calls are superseded.
func (f *AlumFlow) UpdateInputs(ph, turbidity, conductivity string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := alumInputs{Ph: ph, Turbidity: turbidity, Conductivity: conductivity}
	if next == f.inputs {
		return
	}
	if f.state != StateIdle {
		log.Printf("Alum flow inputs changed, resetting %s flow", f.state)
	}
	f.generation++
	f.state = StateIdle
	f.inputs = next
	f.classification = nil
	f.basic = nil
	f.advanced = nil
	f.errMsg = ""
}

// Snapshot returns a copy of the current flow state, with the chart series
// synthesized when a completed basic prediction is available.
func (f *AlumFlow) Snapshot() AlumSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := AlumSnapshot{
		State:          f.state,
		Inputs:         f.inputs,
		Classification: f.classification,
		Basic:          f.basic,
		Advanced:       f.advanced,
		Err:            f.errMsg,
	}
	if f.state == StateDone && f.basic != nil {
		snap.Chart = AlumDoseCurve(f.basic.RecommendedDose, f.basic.PredictedSettledTurbidity)
	}
	return snap
}

func (f *AlumFlow) fail(gen uint64, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return nil
	}
	f.state = StateError
	f.errMsg = err.Error()
	return err
}

// FlowStateError reports an operation attempted in the wrong flow state.
type FlowStateError struct {
	State State
}

func (e *FlowStateError) Error() string {
	return "operation not valid in flow state " + string(e.State)
}

// LimeSnapshot is a copy of a lime flow's state.
type LimeSnapshot struct {
	State      State                  `json:"state"`
	Stage      models.LimeStage       `json:"stage"`
	Prediction *models.LimePrediction `json:"prediction,omitempty"`
	Chart      []models.ChartPoint    `json:"chart,omitempty"`
	Err        string                 `json:"error,omitempty"`
}

// LimeFlow runs a single-step lime dosing prediction for one stage.
type LimeFlow struct {
	mu    sync.Mutex
	svc   Service
	stage models.LimeStage

	generation uint64
	state      State
	inputs     alumInputs
	prediction *models.LimePrediction
	errMsg     string
}

// NewLimeFlow returns an idle lime flow for the given dosing stage.
func NewLimeFlow(svc Service, stage models.LimeStage) *LimeFlow {
	return &LimeFlow{
		svc:   svc,
		stage: stage,
		state: StateIdle,
	}
}

// Submit runs the stage's prediction for the given raw readings and blocks
// until it settles. The spike flag on the result comes from the fixed safe
// band for the stage.
func (f *LimeFlow) Submit(ctx context.Context, ph, turbidity, conductivity string) error {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.state = StateNormalPredicting
	f.inputs = alumInputs{Ph: ph, Turbidity: turbidity, Conductivity: conductivity}
	f.prediction = nil
	f.errMsg = ""
	f.mu.Unlock()

	predict := f.svc.PredictPreLime
	if f.stage == models.LimeStagePost {
		predict = f.svc.PredictPostLime
	}
	prediction, err := predict(ctx, ph, turbidity, conductivity)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return nil
	}
	if err != nil {
		f.state = StateError
		f.errMsg = err.Error()
		return err
	}
	f.prediction = &prediction
	f.state = StateDone
	return nil
}

// UpdateInputs resets the flow when any reading changes, invalidating stale
// results the same way the alum flow does.
func (f *LimeFlow) UpdateInputs(ph, turbidity, conductivity string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := alumInputs{Ph: ph, Turbidity: turbidity, Conductivity: conductivity}
	if next == f.inputs {
		return
	}
	f.generation++
	f.state = StateIdle
	f.inputs = next
	f.prediction = nil
	f.errMsg = ""
}

// Snapshot returns a copy of the flow state with the pH ramp chart when a
// prediction has settled.
func (f *LimeFlow) Snapshot() LimeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := LimeSnapshot{
		State:      f.state,
		Stage:      f.stage,
		Prediction: f.prediction,
		Err:        f.errMsg,
	}
	if f.state == StateDone && f.prediction != nil {
		snap.Chart = LimeDoseCurve(f.prediction.RecommendedDose, f.prediction.PredictedPH,
			f.prediction.Inputs.Ph)
	}
	return snap
}
