package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Capstone-E1/hydrodose_console/internal/api"
	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Gateway exposes one typed function per backend capability. Each function
// parses raw operator input, sends the capability's exact wire field names,
// unwraps the route's response envelope and re-maps backend field names into
// the stable client schema. Gateway functions are stateless; every call is an
// independent request/response pair with no retries or caching.
type Gateway struct {
	client *api.Client
}

// New creates a gateway over the given API client
func New(client *api.Client) *Gateway {
	return &Gateway{client: client}
}

// Login authenticates the operator and returns the session to store
func (g *Gateway) Login(ctx context.Context, email, password string) (models.Session, error) {
	if email == "" || password == "" {
		return models.Session{}, &models.ValidationError{Field: "email", Message: "Please fill in all fields"}
	}

	env, err := g.client.Post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "Login failed")
	if err != nil {
		return models.Session{}, err
	}

	var wire struct {
		AccessToken string `json:"access_token"`
		Email       string `json:"email"`
		Name        string `json:"name"`
	}
	if err := env.Unwrap(&wire); err != nil {
		return models.Session{}, &api.Error{Fallback: "Login failed"}
	}
	if wire.AccessToken == "" {
		return models.Session{}, &api.Error{Fallback: "Login failed"}
	}

	return models.Session{
		User:  models.User{Email: wire.Email, Name: wire.Name},
		Token: wire.AccessToken,
	}, nil
}

// Register creates a new operator account
func (g *Gateway) Register(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return &models.ValidationError{Field: "email", Message: "Please fill in all fields"}
	}

	_, err := g.client.Post(ctx, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, "Registration failed")
	return err
}

// ClassifyWaterQuality runs the water quality classifier on a 3-field sample.
// The result gates the alum dosing flow between the basic and advanced models.
func (g *Gateway) ClassifyWaterQuality(ctx context.Context, ph, turbidity, conductivity string) (models.ClassificationResult, error) {
	sample, err := models.ParseSample(ph, turbidity, conductivity)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	env, err := g.client.Post(ctx, "/classify/predict", map[string]float64{
		"ph":           sample.Ph,
		"turbidity":    sample.Turbidity,
		"conductivity": sample.Conductivity,
	}, "Failed to classify water quality")
	if err != nil {
		return models.ClassificationResult{}, err
	}

	var result models.ClassificationResult
	if err := env.UnwrapNested(&result); err != nil {
		return models.ClassificationResult{}, &api.Error{Fallback: "Failed to classify water quality"}
	}
	if result.Classification != models.ClassificationNormal && result.Classification != models.ClassificationAbnormal {
		return models.ClassificationResult{}, &api.Error{
			Fallback: fmt.Sprintf("Unexpected classification %q from backend", result.Classification),
		}
	}
	return result, nil
}

// alumBasicWire is the /normal-regression/predict response shape
type alumBasicWire struct {
	RecommendedDosePpm        float64 `json:"recommended_dose_ppm"`
	PredictedSettledTurbidity float64 `json:"predicted_settled_turbidity"`
	ConfidenceInterval        struct {
		Lower float64 `json:"lower"`
		Upper float64 `json:"upper"`
	} `json:"confidence_interval"`
	Predictions struct {
		Dose9Turbidity  float64 `json:"dose_9_turbidity"`
		Dose10Turbidity float64 `json:"dose_10_turbidity"`
	} `json:"predictions"`
	ShapExplanation json.RawMessage `json:"shap_explanation"`
}

// PredictAlumBasic runs the 3-parameter alum regression for NORMAL samples
func (g *Gateway) PredictAlumBasic(ctx context.Context, ph, turbidity, conductivity string) (models.AlumBasicPrediction, error) {
	sample, err := models.ParseSample(ph, turbidity, conductivity)
	if err != nil {
		return models.AlumBasicPrediction{}, err
	}

	env, err := g.client.Post(ctx, "/normal-regression/predict", map[string]float64{
		"ph":           sample.Ph,
		"turbidity":    sample.Turbidity,
		"conductivity": sample.Conductivity,
	}, "Failed to predict alum dosage")
	if err != nil {
		return models.AlumBasicPrediction{}, err
	}

	var wire alumBasicWire
	if err := env.Unwrap(&wire); err != nil {
		return models.AlumBasicPrediction{}, &api.Error{Fallback: "Failed to predict alum dosage"}
	}

	result := models.AlumBasicPrediction{
		RecommendedDose:           wire.RecommendedDosePpm,
		PredictedSettledTurbidity: wire.PredictedSettledTurbidity,
		ConfidenceInterval: models.Interval{
			Lower: wire.ConfidenceInterval.Lower,
			Upper: wire.ConfidenceInterval.Upper,
		},
		DoseComparison: models.DoseComparison{
			Dose9Turbidity:  wire.Predictions.Dose9Turbidity,
			Dose10Turbidity: wire.Predictions.Dose10Turbidity,
		},
		ShapExplanation: wire.ShapExplanation,
		Inputs:          sample,
	}

	if !result.ConfidenceInterval.Valid() {
		return models.AlumBasicPrediction{}, &api.Error{
			Fallback: fmt.Sprintf("Backend returned inverted confidence interval [%.3f, %.3f]",
				result.ConfidenceInterval.Lower, result.ConfidenceInterval.Upper),
		}
	}
	return result, nil
}

// alumAdvancedWire is the /advance-regression/predict response shape
type alumAdvancedWire struct {
	PredictedAlumDosagePpm float64 `json:"predicted_alum_dosage_ppm"`
	DoseRangePpm           struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"dose_range_ppm"`
	ShapExplanation json.RawMessage `json:"shap_explanation"`
}

// PredictAlumAdvanced runs the 6-parameter alum regression for ABNORMAL samples
func (g *Gateway) PredictAlumAdvanced(ctx context.Context, ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow string) (models.AlumAdvancedPrediction, error) {
	sample, err := models.ParseAdvancedSample(ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow)
	if err != nil {
		return models.AlumAdvancedPrediction{}, err
	}

	env, err := g.client.Post(ctx, "/advance-regression/predict", map[string]float64{
		"ph":             sample.Ph,
		"turbidity":      sample.Turbidity,
		"conductivity":   sample.Conductivity,
		"raw_water_flow": sample.RawWaterFlow,
		"d_chamber_flow": sample.DChamberFlow,
		"aerator_flow":   sample.AeratorFlow,
	}, "Failed to predict alum dosage with advanced model")
	if err != nil {
		return models.AlumAdvancedPrediction{}, err
	}

	var wire alumAdvancedWire
	if err := env.Unwrap(&wire); err != nil {
		return models.AlumAdvancedPrediction{}, &api.Error{Fallback: "Failed to predict alum dosage with advanced model"}
	}

	result := models.AlumAdvancedPrediction{
		PredictedAlumDose: wire.PredictedAlumDosagePpm,
		DoseRange: models.DoseRange{
			Min: wire.DoseRangePpm.Min,
			Max: wire.DoseRangePpm.Max,
		},
		ShapExplanation: wire.ShapExplanation,
		Inputs:          sample,
		IsAdvanced:      true,
	}

	if !result.DoseRange.Valid() {
		return models.AlumAdvancedPrediction{}, &api.Error{
			Fallback: fmt.Sprintf("Backend returned inverted dose range [%.3f, %.3f]",
				result.DoseRange.Min, result.DoseRange.Max),
		}
	}
	return result, nil
}

// PredictPreLime predicts the pre-lime dose and settled pH for a raw water sample
func (g *Gateway) PredictPreLime(ctx context.Context, ph, turbidity, conductivity string) (models.LimePrediction, error) {
	return g.predictLime(ctx, models.LimeStagePre, ph, turbidity, conductivity)
}

// PredictPostLime predicts the post-lime dose and final pH for a raw water sample
func (g *Gateway) PredictPostLime(ctx context.Context, ph, turbidity, conductivity string) (models.LimePrediction, error) {
	return g.predictLime(ctx, models.LimeStagePost, ph, turbidity, conductivity)
}

// limeWire covers both lime routes; the two differ only in which dose and pH
// field names they populate.
type limeWire struct {
	RecommendedDosePpm         float64 `json:"recommended_dose_ppm"`
	RecommendedPostLimeDosePpm float64 `json:"recommended_post_lime_dose_ppm"`
	PredictedSettledPH         float64 `json:"predicted_settled_pH"`
	PredictedFinalPHSph2       float64 `json:"predicted_final_pH_sph2"`
	ConformalInterval          struct {
		LowerPH float64 `json:"lower_pH"`
		UpperPH float64 `json:"upper_pH"`
	} `json:"conformal_interval"`
	ShapExplanation json.RawMessage `json:"shap_explanation"`
}

func (g *Gateway) predictLime(ctx context.Context, stage models.LimeStage, ph, turbidity, conductivity string) (models.LimePrediction, error) {
	sample, err := models.ParseSample(ph, turbidity, conductivity)
	if err != nil {
		return models.LimePrediction{}, err
	}

	path := "/pre-lime/predict"
	fallback := "Failed to predict pre-lime dosage"
	if stage == models.LimeStagePost {
		path = "/post-lime/predict"
		fallback = "Failed to predict post-lime dosage"
	}

	env, err := g.client.Post(ctx, path, map[string]float64{
		"raw_ph":           sample.Ph,
		"raw_turbidity":    sample.Turbidity,
		"raw_conductivity": sample.Conductivity,
	}, fallback)
	if err != nil {
		return models.LimePrediction{}, err
	}

	var wire limeWire
	if err := env.UnwrapNested(&wire); err != nil {
		return models.LimePrediction{}, &api.Error{Fallback: fallback}
	}

	result := models.LimePrediction{
		Stage: stage,
		ConformalInterval: models.Interval{
			Lower: wire.ConformalInterval.LowerPH,
			Upper: wire.ConformalInterval.UpperPH,
		},
		ShapExplanation: wire.ShapExplanation,
		Inputs:          sample,
	}

	if stage == models.LimeStagePre {
		result.RecommendedDose = wire.RecommendedDosePpm
		result.PredictedPH = wire.PredictedSettledPH
	} else {
		result.RecommendedDose = wire.RecommendedPostLimeDosePpm
		result.PredictedPH = wire.PredictedFinalPHSph2
	}

	// Spike detection is a client-side derivation against the fixed safe band
	result.IsSpike = models.DeriveSpike(stage, result.PredictedPH)
	result.Explanation = limeExplanation(result)

	if !result.ConformalInterval.Valid() {
		return models.LimePrediction{}, &api.Error{
			Fallback: fmt.Sprintf("Backend returned inverted conformal interval [%.3f, %.3f]",
				result.ConformalInterval.Lower, result.ConformalInterval.Upper),
		}
	}
	return result, nil
}

// limeExplanation synthesizes the operator-facing narrative shown alongside a
// lime prediction and in its report.
func limeExplanation(p models.LimePrediction) string {
	purpose := "to achieve the target settled pH"
	phLabel := "settled pH"
	if p.Stage == models.LimeStagePost {
		purpose = "for pH stabilization"
		phLabel = "final pH"
	}
	halfWidth := (p.ConformalInterval.Upper - p.ConformalInterval.Lower) / 2

	return fmt.Sprintf("The %s dosing model analyzes the input raw water parameters to predict "+
		"the optimal lime dosage required %s. Based on the current raw water pH of %.1f and "+
		"turbidity of %.1f NTU, the model recommends %.1f mg/L of %s. This dosage is expected "+
		"to result in a %s of approximately %.2f with a conformal prediction interval of "+
		"±%.2f pH. The model uses machine learning trained on historical water treatment data "+
		"to provide this recommendation.",
		p.Stage, purpose, p.Inputs.Ph, p.Inputs.Turbidity, p.RecommendedDose, p.Stage,
		phLabel, p.PredictedPH, halfWidth)
}
