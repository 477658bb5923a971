package gateway

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Timestamp layouts seen across backend revisions. The history repositories
// emit RFC3339, the sensor scheduler emits a second-precision local form.
var historyTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseHistoryTime(raw string) time.Time {
	for _, layout := range historyTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// historyRecordWire is one stored prediction row. The per-capability prediction
// payloads share the dose field but name their predicted value differently.
type historyRecordWire struct {
	CreatedAt   string `json:"created_at"`
	PredictedAt string `json:"predicted_at"`
	RawInputs   struct {
		RawPH           float64 `json:"raw_ph"`
		RawTurbidity    float64 `json:"raw_turbidity"`
		RawConductivity float64 `json:"raw_conductivity"`
		Ph              float64 `json:"ph"`
		Turbidity       float64 `json:"turbidity"`
		Conductivity    float64 `json:"conductivity"`
	} `json:"raw_inputs"`
	Prediction struct {
		RecommendedDosePpm         float64 `json:"recommended_dose_ppm"`
		RecommendedPostLimeDosePpm float64 `json:"recommended_post_lime_dose_ppm"`
		PredictedSettledPH         float64 `json:"predicted_settled_pH"`
		PredictedFinalPHSph2       float64 `json:"predicted_final_pH_sph2"`
		PredictedSettledTurbidity  float64 `json:"predicted_settled_turbidity"`
	} `json:"prediction"`
}

// historyCapability identifies which history route a stored row came from,
// so field selection never guesses from zero values.
type historyCapability int

const (
	historyPreLime historyCapability = iota
	historyPostLime
	historyAlum
	historySensorFeed
)

func (w historyRecordWire) toHistoryPoint(capability historyCapability) models.HistoryPoint {
	var point models.HistoryPoint

	raw := w.CreatedAt
	if raw == "" {
		raw = w.PredictedAt
	}
	point.CreatedAt = parseHistoryTime(raw)

	switch capability {
	case historyPreLime:
		point.RecommendedDose = w.Prediction.RecommendedDosePpm
		point.PredictedValue = w.Prediction.PredictedSettledPH
	case historyPostLime:
		point.RecommendedDose = w.Prediction.RecommendedPostLimeDosePpm
		point.PredictedValue = w.Prediction.PredictedFinalPHSph2
	case historyAlum:
		point.RecommendedDose = w.Prediction.RecommendedDosePpm
		point.PredictedValue = w.Prediction.PredictedSettledTurbidity
	case historySensorFeed:
		// the automated feed mixes pre- and post-lime rows
		point.RecommendedDose = w.Prediction.RecommendedDosePpm
		point.PredictedValue = w.Prediction.PredictedSettledPH
		if w.Prediction.RecommendedPostLimeDosePpm != 0 {
			point.RecommendedDose = w.Prediction.RecommendedPostLimeDosePpm
		}
		if w.Prediction.PredictedFinalPHSph2 != 0 {
			point.PredictedValue = w.Prediction.PredictedFinalPHSph2
		}
	}

	point.RawInputs = models.WaterSample{
		Ph:           w.RawInputs.RawPH,
		Turbidity:    w.RawInputs.RawTurbidity,
		Conductivity: w.RawInputs.RawConductivity,
	}
	if point.RawInputs == (models.WaterSample{}) {
		point.RawInputs = models.WaterSample{
			Ph:           w.RawInputs.Ph,
			Turbidity:    w.RawInputs.Turbidity,
			Conductivity: w.RawInputs.Conductivity,
		}
	}
	return point
}

// PreLimeHistory fetches stored pre-lime predictions for a date window
func (g *Gateway) PreLimeHistory(ctx context.Context, startDate, endDate string) ([]models.HistoryPoint, error) {
	return g.fetchHistory(ctx, "/history/pre-lime", historyPreLime, startDate, endDate, "Failed to fetch pre-lime history")
}

// PostLimeHistory fetches stored post-lime predictions for a date window
func (g *Gateway) PostLimeHistory(ctx context.Context, startDate, endDate string) ([]models.HistoryPoint, error) {
	return g.fetchHistory(ctx, "/history/post-lime", historyPostLime, startDate, endDate, "Failed to fetch post-lime history")
}

// AlumHistory fetches stored alum dose predictions for a date window
func (g *Gateway) AlumHistory(ctx context.Context, startDate, endDate string) ([]models.HistoryPoint, error) {
	return g.fetchHistory(ctx, "/history/alum", historyAlum, startDate, endDate, "Failed to fetch alum history")
}

// fetchHistory shares the window query, envelope unwrap and chronological sort.
// The backend returns most-recent-first; charts want ascending. A missing or
// malformed array normalizes to an empty slice for display robustness.
func (g *Gateway) fetchHistory(ctx context.Context, path string, capability historyCapability, startDate, endDate, fallback string) ([]models.HistoryPoint, error) {
	query := url.Values{}
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)

	env, err := g.client.Get(ctx, path, query, fallback)
	if err != nil {
		return nil, err
	}

	var wire []historyRecordWire
	if err := env.UnwrapNested(&wire); err != nil {
		return []models.HistoryPoint{}, nil
	}

	points := make([]models.HistoryPoint, 0, len(wire))
	for _, record := range wire {
		points = append(points, record.toHistoryPoint(capability))
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].CreatedAt.Before(points[j].CreatedAt)
	})
	return points, nil
}

// SensorFeed fetches the automated sensor readings with their predictions for
// a [start, end] window, feeding the live dashboard trend charts.
func (g *Gateway) SensorFeed(ctx context.Context, startDate, endDate string) ([]models.SensorFeedPoint, error) {
	query := url.Values{}
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)

	env, err := g.client.Get(ctx, "/sensor-auto/history", query, "Failed to fetch sensor data")
	if err != nil {
		return nil, err
	}

	var wire []historyRecordWire
	if err := env.UnwrapNested(&wire); err != nil {
		return []models.SensorFeedPoint{}, nil
	}

	points := make([]models.SensorFeedPoint, 0, len(wire))
	for _, record := range wire {
		h := record.toHistoryPoint(historySensorFeed)
		points = append(points, models.SensorFeedPoint{
			PredictedAt:    h.CreatedAt,
			RawInputs:      h.RawInputs,
			PredictedValue: h.PredictedValue,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].PredictedAt.Before(points[j].PredictedAt)
	})
	return points, nil
}
