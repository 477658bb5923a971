package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// stubService lets each test script the gateway per capability
type stubService struct {
	mu    sync.Mutex
	calls []string

	classifyFn func(ph, turbidity, conductivity string) (models.ClassificationResult, error)
	basicFn    func(ph, turbidity, conductivity string) (models.AlumBasicPrediction, error)
	advancedFn func(ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow string) (models.AlumAdvancedPrediction, error)
	preLimeFn  func(ph, turbidity, conductivity string) (models.LimePrediction, error)
	postLimeFn func(ph, turbidity, conductivity string) (models.LimePrediction, error)
}

func (s *stubService) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *stubService) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubService) ClassifyWaterQuality(ctx context.Context, ph, turbidity, conductivity string) (models.ClassificationResult, error) {
	s.record("classify")
	return s.classifyFn(ph, turbidity, conductivity)
}

func (s *stubService) PredictAlumBasic(ctx context.Context, ph, turbidity, conductivity string) (models.AlumBasicPrediction, error) {
	s.record("basic")
	return s.basicFn(ph, turbidity, conductivity)
}

func (s *stubService) PredictAlumAdvanced(ctx context.Context, ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow string) (models.AlumAdvancedPrediction, error) {
	s.record("advanced")
	return s.advancedFn(ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow)
}

func (s *stubService) PredictPreLime(ctx context.Context, ph, turbidity, conductivity string) (models.LimePrediction, error) {
	s.record("pre-lime")
	return s.preLimeFn(ph, turbidity, conductivity)
}

func (s *stubService) PredictPostLime(ctx context.Context, ph, turbidity, conductivity string) (models.LimePrediction, error) {
	s.record("post-lime")
	return s.postLimeFn(ph, turbidity, conductivity)
}

func normalClassification() (models.ClassificationResult, error) {
	return models.ClassificationResult{
		Classification:      models.ClassificationNormal,
		AbnormalProbability: 0.1,
		Threshold:           0.5,
	}, nil
}

func abnormalClassification() (models.ClassificationResult, error) {
	return models.ClassificationResult{
		Classification:      models.ClassificationAbnormal,
		AbnormalProbability: 0.9,
		Threshold:           0.5,
	}, nil
}

// TestAlumFlow_NormalChainsIntoBasic tests that a NORMAL classification
// immediately runs the basic regression without further input.
func TestAlumFlow_NormalChainsIntoBasic(t *testing.T) {
	svc := &stubService{
		classifyFn: func(ph, turbidity, conductivity string) (models.ClassificationResult, error) {
			return normalClassification()
		},
		basicFn: func(ph, turbidity, conductivity string) (models.AlumBasicPrediction, error) {
			if ph != "7.2" || turbidity != "5.5" || conductivity != "450" {
				t.Errorf("Basic regression called with wrong inputs: %s %s %s", ph, turbidity, conductivity)
			}
			return models.AlumBasicPrediction{
				RecommendedDose:           9,
				PredictedSettledTurbidity: 1.8,
			}, nil
		},
	}
	flow := NewAlumFlow(svc)

	if err := flow.Submit(context.Background(), "7.2", "5.5", "450"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got := svc.callLog()
	want := []string{"classify", "basic"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected call order %v, got %v", want, got)
	}

	snap := flow.Snapshot()
	if snap.State != StateDone {
		t.Errorf("Expected state done, got %s", snap.State)
	}
	if snap.Basic == nil || snap.Basic.RecommendedDose != 9 {
		t.Errorf("Expected basic prediction with dose 9, got %+v", snap.Basic)
	}
	if len(snap.Chart) == 0 {
		t.Error("Expected chart series on completed flow")
	}
}

// TestAlumFlow_AbnormalAwaitsAdvancedInput tests that an ABNORMAL
// classification does not call any regression until the flow readings arrive.
func TestAlumFlow_AbnormalAwaitsAdvancedInput(t *testing.T) {
	svc := &stubService{
		classifyFn: func(ph, turbidity, conductivity string) (models.ClassificationResult, error) {
			return abnormalClassification()
		},
		advancedFn: func(ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow string) (models.AlumAdvancedPrediction, error) {
			if ph != "7.2" {
				t.Errorf("Advanced regression lost the primary inputs: got ph %s", ph)
			}
			if rawWaterFlow != "120" || dChamberFlow != "60" || aeratorFlow != "30" {
				t.Errorf("Advanced regression called with wrong flow readings: %s %s %s", rawWaterFlow, dChamberFlow, aeratorFlow)
			}
			return models.AlumAdvancedPrediction{PredictedAlumDose: 23.4, IsAdvanced: true}, nil
		},
	}
	flow := NewAlumFlow(svc)

	if err := flow.Submit(context.Background(), "7.2", "5.5", "450"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	snap := flow.Snapshot()
	if snap.State != StateAwaitingAdvancedInput {
		t.Fatalf("Expected awaiting_advanced_input, got %s", snap.State)
	}
	for _, call := range svc.callLog() {
		if call == "basic" || call == "advanced" {
			t.Errorf("Regression %q called before advanced input was submitted", call)
		}
	}

	if err := flow.SubmitAdvanced(context.Background(), "120", "60", "30"); err != nil {
		t.Fatalf("SubmitAdvanced failed: %v", err)
	}

	snap = flow.Snapshot()
	if snap.State != StateDone {
		t.Errorf("Expected state done, got %s", snap.State)
	}
	if snap.Advanced == nil || !snap.Advanced.IsAdvanced {
		t.Errorf("Expected advanced prediction, got %+v", snap.Advanced)
	}
}

// TestAlumFlow_SubmitAdvancedInWrongState tests the state guard
func TestAlumFlow_SubmitAdvancedInWrongState(t *testing.T) {
	flow := NewAlumFlow(&stubService{})

	err := flow.SubmitAdvanced(context.Background(), "120", "60", "30")
	var stateErr *FlowStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Expected FlowStateError, got %v", err)
	}
	if stateErr.State != StateIdle {
		t.Errorf("Expected idle in error, got %s", stateErr.State)
	}
}

// TestAlumFlow_EditResetsToIdle tests stale-result invalidation
func TestAlumFlow_EditResetsToIdle(t *testing.T) {
	svc := &stubService{
		classifyFn: func(ph, turbidity, conductivity string) (models.ClassificationResult, error) {
			return normalClassification()
		},
		basicFn: func(ph, turbidity, conductivity string) (models.AlumBasicPrediction, error) {
			return models.AlumBasicPrediction{RecommendedDose: 9, PredictedSettledTurbidity: 1.8}, nil
		},
	}
	flow := NewAlumFlow(svc)

	if err := flow.Submit(context.Background(), "7.2", "5.5", "450"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	flow.UpdateInputs("7.3", "5.5", "450")

	snap := flow.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Expected reset to idle after edit, got %s", snap.State)
	}
	if snap.Classification != nil || snap.Basic != nil {
		t.Error("Expected cached results cleared after edit")
	}

	// Re-submitting the same values is not an edit
	flow.UpdateInputs("7.3", "5.5", "450")
	if flow.Snapshot().State != StateIdle {
		t.Error("Expected unchanged inputs to be a no-op")
	}
}

// TestAlumFlow_SupersededResultDiscarded tests the generation guard: a result
// resolving after the inputs changed must not overwrite the reset state.
func TestAlumFlow_SupersededResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	svc := &stubService{
		classifyFn: func(ph, turbidity, conductivity string) (models.ClassificationResult, error) {
			<-release
			return normalClassification()
		},
		basicFn: func(ph, turbidity, conductivity string) (models.AlumBasicPrediction, error) {
			return models.AlumBasicPrediction{RecommendedDose: 9, PredictedSettledTurbidity: 1.8}, nil
		},
	}
	flow := NewAlumFlow(svc)

	done := make(chan error, 1)
	go func() {
		done <- flow.Submit(context.Background(), "7.2", "5.5", "450")
	}()

	for flow.Snapshot().State != StateClassifying {
		time.Sleep(time.Millisecond)
	}
	flow.UpdateInputs("9.9", "5.5", "450")
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Superseded submit returned error: %v", err)
	}

	snap := flow.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Expected superseded result discarded, state idle, got %s", snap.State)
	}
	if snap.Classification != nil {
		t.Error("Expected no classification from a superseded call")
	}
}

// TestAlumFlow_GatewayErrorSurfaces tests the error state
func TestAlumFlow_GatewayErrorSurfaces(t *testing.T) {
	svc := &stubService{
		classifyFn: func(ph, turbidity, conductivity string) (models.ClassificationResult, error) {
			return models.ClassificationResult{}, errors.New("Failed to classify water quality")
		},
	}
	flow := NewAlumFlow(svc)

	if err := flow.Submit(context.Background(), "7.2", "5.5", "450"); err == nil {
		t.Fatal("Expected error from failed classification")
	}

	snap := flow.Snapshot()
	if snap.State != StateError {
		t.Errorf("Expected error state, got %s", snap.State)
	}
	if snap.Err != "Failed to classify water quality" {
		t.Errorf("Expected error message surfaced, got %q", snap.Err)
	}
}

// TestLimeFlow_PreAndPostStages tests stage routing and spike pass-through
func TestLimeFlow_PreAndPostStages(t *testing.T) {
	svc := &stubService{
		preLimeFn: func(ph, turbidity, conductivity string) (models.LimePrediction, error) {
			return models.LimePrediction{
				Stage:           models.LimeStagePre,
				RecommendedDose: 12.5,
				PredictedPH:     6.7,
				IsSpike:         true,
				Inputs:          models.WaterSample{Ph: 7.2, Turbidity: 5.5, Conductivity: 450},
			}, nil
		},
		postLimeFn: func(ph, turbidity, conductivity string) (models.LimePrediction, error) {
			return models.LimePrediction{
				Stage:           models.LimeStagePost,
				RecommendedDose: 8.2,
				PredictedPH:     7.0,
				Inputs:          models.WaterSample{Ph: 6.4, Turbidity: 2.1, Conductivity: 380},
			}, nil
		},
	}

	pre := NewLimeFlow(svc, models.LimeStagePre)
	if err := pre.Submit(context.Background(), "7.2", "5.5", "450"); err != nil {
		t.Fatalf("Pre-lime submit failed: %v", err)
	}
	snap := pre.Snapshot()
	if snap.State != StateDone || snap.Prediction == nil {
		t.Fatalf("Expected completed pre-lime flow, got %+v", snap)
	}
	if !snap.Prediction.IsSpike {
		t.Error("Expected spike flag preserved through the flow")
	}
	if len(snap.Chart) == 0 {
		t.Error("Expected pH ramp chart on completed lime flow")
	}

	post := NewLimeFlow(svc, models.LimeStagePost)
	if err := post.Submit(context.Background(), "6.4", "2.1", "380"); err != nil {
		t.Fatalf("Post-lime submit failed: %v", err)
	}
	if got := svc.callLog(); got[len(got)-1] != "post-lime" {
		t.Errorf("Expected post-lime stage to call the post-lime capability, got %v", got)
	}
}

// TestLimeFlow_EditResetsToIdle mirrors the alum invalidation rule
func TestLimeFlow_EditResetsToIdle(t *testing.T) {
	svc := &stubService{
		preLimeFn: func(ph, turbidity, conductivity string) (models.LimePrediction, error) {
			return models.LimePrediction{Stage: models.LimeStagePre, RecommendedDose: 12.5, PredictedPH: 6.3}, nil
		},
	}
	flow := NewLimeFlow(svc, models.LimeStagePre)

	if err := flow.Submit(context.Background(), "7.2", "5.5", "450"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	flow.UpdateInputs("7.2", "6.0", "450")

	snap := flow.Snapshot()
	if snap.State != StateIdle || snap.Prediction != nil {
		t.Errorf("Expected reset flow, got %+v", snap)
	}
}
