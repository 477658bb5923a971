package models

import (
	"encoding/json"
	"time"
)

// Classification labels returned by the water quality classifier
const (
	ClassificationNormal   = "NORMAL"
	ClassificationAbnormal = "ABNORMAL"
)

// ClassificationResult is the outcome of the water quality classification step.
// It decides whether the basic or advanced alum regression runs next.
type ClassificationResult struct {
	Classification      string  `json:"classification"`
	AbnormalProbability float64 `json:"abnormal_probability"`
	Threshold           float64 `json:"threshold"`
}

// IsNormal reports whether the sample was classified as in-distribution
func (c ClassificationResult) IsNormal() bool {
	return c.Classification == ClassificationNormal
}

// Interval is a lower/upper bound pair (confidence or conformal)
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Valid reports whether the interval is ordered
func (i Interval) Valid() bool {
	return i.Lower <= i.Upper
}

// DoseRange is the min/max recommended dose window from the advanced model
type DoseRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valid reports whether the range is ordered
func (r DoseRange) Valid() bool {
	return r.Min <= r.Max
}

// DoseComparison holds the turbidity predicted at the two candidate alum doses
// evaluated by the basic regression.
type DoseComparison struct {
	Dose9Turbidity  float64 `json:"dose_9_turbidity"`
	Dose10Turbidity float64 `json:"dose_10_turbidity"`
}

// AlumBasicPrediction is the normalized result of the 3-parameter alum regression
type AlumBasicPrediction struct {
	RecommendedDose           float64         `json:"recommended_dose"`
	PredictedSettledTurbidity float64         `json:"predicted_settled_turbidity"`
	ConfidenceInterval        Interval        `json:"confidence_interval"`
	DoseComparison            DoseComparison  `json:"dose_comparison"`
	ShapExplanation           json.RawMessage `json:"shap_explanation,omitempty"`
	Inputs                    WaterSample     `json:"inputs"`
}

// AlumAdvancedPrediction is the normalized result of the 6-parameter alum regression
type AlumAdvancedPrediction struct {
	PredictedAlumDose float64         `json:"predicted_alum_dose"`
	DoseRange         DoseRange       `json:"dose_range"`
	ShapExplanation   json.RawMessage `json:"shap_explanation,omitempty"`
	Inputs            AdvancedSample  `json:"inputs"`
	IsAdvanced        bool            `json:"is_advanced"`
}

// LimeStage identifies which lime dosing stage a prediction belongs to
type LimeStage string

const (
	LimeStagePre  LimeStage = "pre-lime"
	LimeStagePost LimeStage = "post-lime"
)

// Safe bands for the lime stages. The spike flag is derived locally from these,
// never read from the backend.
var limeSafeBands = map[LimeStage]Interval{
	LimeStagePre:  {Lower: 6.0, Upper: 6.6},
	LimeStagePost: {Lower: 6.8, Upper: 7.2},
}

// SafeBand returns the fixed acceptable pH band for a lime stage
func (s LimeStage) SafeBand() Interval {
	return limeSafeBands[s]
}

// LimePrediction is the normalized result of a pre- or post-lime dose prediction.
// PredictedPH is the settled pH for pre-lime and the final pH for post-lime.
type LimePrediction struct {
	Stage             LimeStage       `json:"stage"`
	RecommendedDose   float64         `json:"recommended_dose"`
	PredictedPH       float64         `json:"predicted_ph"`
	ConformalInterval Interval        `json:"conformal_interval"`
	IsSpike           bool            `json:"is_spike"`
	Explanation       string          `json:"explanation,omitempty"`
	ShapExplanation   json.RawMessage `json:"shap_explanation,omitempty"`
	Inputs            WaterSample     `json:"inputs"`
}

// DeriveSpike flags a predicted pH outside the stage's safe band
func DeriveSpike(stage LimeStage, predictedPH float64) bool {
	band := stage.SafeBand()
	return predictedPH < band.Lower || predictedPH > band.Upper
}

// HistoryPoint is one stored prediction fetched from a history endpoint
type HistoryPoint struct {
	CreatedAt       time.Time   `json:"created_at"`
	RecommendedDose float64     `json:"recommended_dose"`
	PredictedValue  float64     `json:"predicted_value"`
	RawInputs       WaterSample `json:"raw_inputs"`
}

// SensorFeedPoint is one automated sensor reading with its prediction
type SensorFeedPoint struct {
	PredictedAt    time.Time   `json:"predicted_at"`
	RawInputs      WaterSample `json:"raw_inputs"`
	PredictedValue float64     `json:"predicted_value"`
}

// ChartPoint is one step of a synthesized dose sensitivity curve.
// RecommendedPoint is non-nil only at the sweep step nearest the recommended dose.
type ChartPoint struct {
	Dose             float64  `json:"dose"`
	Value            float64  `json:"value"`
	RecommendedPoint *float64 `json:"recommended_point"`
}
