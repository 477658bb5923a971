package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Capstone-E1/hydrodose_console/internal/api"
	"github.com/Capstone-E1/hydrodose_console/internal/session"
)

// newTestGateway wires a gateway against a stub backend
func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := api.NewClient(server.URL, 5*time.Second, session.NewMemoryStore())
	return New(client), server
}

// decodeBody reads the request JSON into a generic map for field-name checks
func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
	return body
}

// TestClassify_WireFieldNames tests that classification uses its exact field names
func TestClassify_WireFieldNames(t *testing.T) {
	var gotBody map[string]interface{}
	var gotPath string
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = decodeBody(t, r)
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{"classification":"NORMAL","abnormal_probability":0.12,"threshold":0.5}}}`))
	})

	result, err := g.ClassifyWaterQuality(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if gotPath != "/classify/predict" {
		t.Errorf("Expected path /classify/predict, got %s", gotPath)
	}
	for _, field := range []string{"ph", "turbidity", "conductivity"} {
		if _, ok := gotBody[field]; !ok {
			t.Errorf("Expected wire field %q in classify request", field)
		}
	}
	if len(gotBody) != 3 {
		t.Errorf("Expected exactly 3 wire fields, got %v", gotBody)
	}
	if !result.IsNormal() {
		t.Errorf("Expected NORMAL classification, got %s", result.Classification)
	}
	if result.AbnormalProbability != 0.12 {
		t.Errorf("Expected abnormal_probability 0.12, got %v", result.AbnormalProbability)
	}
}

// TestPreLime_WireFieldNames tests the raw_-prefixed lime field names, which must
// not leak from the classification capability's field names.
func TestPreLime_WireFieldNames(t *testing.T) {
	var gotBody map[string]interface{}
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody = decodeBody(t, r)
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{
			"recommended_dose_ppm": 12.5,
			"predicted_settled_pH": 6.3,
			"conformal_interval": {"lower_pH": 6.1, "upper_pH": 6.5},
			"safe_band": {"lower": 6.0, "upper": 6.6}
		}}}`))
	})

	result, err := g.PredictPreLime(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("PredictPreLime failed: %v", err)
	}

	for _, field := range []string{"raw_ph", "raw_turbidity", "raw_conductivity"} {
		if _, ok := gotBody[field]; !ok {
			t.Errorf("Expected wire field %q in pre-lime request", field)
		}
	}
	if _, ok := gotBody["ph"]; ok {
		t.Error("Classification field name 'ph' leaked into pre-lime request")
	}

	if result.RecommendedDose != 12.5 {
		t.Errorf("Expected recommended dose 12.5, got %v", result.RecommendedDose)
	}
	if result.PredictedPH != 6.3 {
		t.Errorf("Expected settled pH 6.3, got %v", result.PredictedPH)
	}
	if result.ConformalInterval.Lower != 6.1 || result.ConformalInterval.Upper != 6.5 {
		t.Errorf("Expected conformal interval [6.1, 6.5], got %+v", result.ConformalInterval)
	}
	if result.IsSpike {
		t.Error("Expected no spike for settled pH 6.3 inside [6.0, 6.6]")
	}
}

// TestPreLime_SpikeDerivation tests that the spike flag is derived locally
func TestPreLime_SpikeDerivation(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{
			"recommended_dose_ppm": 14.0,
			"predicted_settled_pH": 6.7,
			"conformal_interval": {"lower_pH": 6.5, "upper_pH": 6.9}
		}}}`))
	})

	result, err := g.PredictPreLime(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("PredictPreLime failed: %v", err)
	}
	if !result.IsSpike {
		t.Error("Expected spike for settled pH 6.7 outside [6.0, 6.6]")
	}
}

// TestPostLime_Normalization tests the post-lime field mapping and safe band
func TestPostLime_Normalization(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post-lime/predict" {
			t.Errorf("Expected path /post-lime/predict, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{
			"recommended_post_lime_dose_ppm": 8.2,
			"predicted_final_pH_sph2": 7.0,
			"conformal_interval": {"lower_pH": 6.85, "upper_pH": 7.15}
		}}}`))
	})

	result, err := g.PredictPostLime(context.Background(), "6.4", "2.1", "380")
	if err != nil {
		t.Fatalf("PredictPostLime failed: %v", err)
	}
	if result.RecommendedDose != 8.2 {
		t.Errorf("Expected recommended dose 8.2, got %v", result.RecommendedDose)
	}
	if result.PredictedPH != 7.0 {
		t.Errorf("Expected final pH 7.0, got %v", result.PredictedPH)
	}
	if result.IsSpike {
		t.Error("Expected no spike for final pH 7.0 inside [6.8, 7.2]")
	}
}

// TestLime_ExplanationNarrative tests the synthesized explanation text shown
// alongside lime predictions and in their reports
func TestLime_ExplanationNarrative(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{
			"recommended_dose_ppm": 12.5,
			"predicted_settled_pH": 6.3,
			"conformal_interval": {"lower_pH": 6.1, "upper_pH": 6.5}
		}}}`))
	})

	result, err := g.PredictPreLime(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("PredictPreLime failed: %v", err)
	}
	for _, want := range []string{
		"pre-lime dosing model",
		"raw water pH of 7.2",
		"turbidity of 5.5 NTU",
		"12.5 mg/L of pre-lime",
		"settled pH of approximately 6.30",
		"±0.20 pH",
	} {
		if !strings.Contains(result.Explanation, want) {
			t.Errorf("Expected explanation to contain %q, got %q", want, result.Explanation)
		}
	}

	g, _ = newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{
			"recommended_post_lime_dose_ppm": 8.2,
			"predicted_final_pH_sph2": 7.0,
			"conformal_interval": {"lower_pH": 6.85, "upper_pH": 7.15}
		}}}`))
	})

	result, err = g.PredictPostLime(context.Background(), "6.4", "2.1", "380")
	if err != nil {
		t.Fatalf("PredictPostLime failed: %v", err)
	}
	for _, want := range []string{
		"post-lime dosing model",
		"for pH stabilization",
		"8.2 mg/L of post-lime",
		"final pH of approximately 7.00",
	} {
		if !strings.Contains(result.Explanation, want) {
			t.Errorf("Expected explanation to contain %q, got %q", want, result.Explanation)
		}
	}
}

// TestAlumBasic_Normalization tests the basic regression envelope and field remap
func TestAlumBasic_Normalization(t *testing.T) {
	var gotBody map[string]interface{}
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody = decodeBody(t, r)
		w.Write([]byte(`{"status":"success","message":"Normal regression successful","data":{
			"recommended_dose_ppm": 9,
			"predicted_settled_turbidity": 1.842,
			"confidence_interval": {"lower": 1.512, "upper": 2.173},
			"predictions": {"dose_9_turbidity": 1.842, "dose_10_turbidity": 1.901},
			"shap_explanation": {"feature_names": ["ph"], "shap_values": [0.2]}
		}}`))
	})

	result, err := g.PredictAlumBasic(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("PredictAlumBasic failed: %v", err)
	}

	for _, field := range []string{"ph", "turbidity", "conductivity"} {
		if _, ok := gotBody[field]; !ok {
			t.Errorf("Expected wire field %q in basic regression request", field)
		}
	}
	if result.RecommendedDose != 9 {
		t.Errorf("Expected recommended dose 9, got %v", result.RecommendedDose)
	}
	if result.PredictedSettledTurbidity != 1.842 {
		t.Errorf("Expected settled turbidity 1.842, got %v", result.PredictedSettledTurbidity)
	}
	if result.DoseComparison.Dose10Turbidity != 1.901 {
		t.Errorf("Expected dose_10_turbidity 1.901, got %v", result.DoseComparison.Dose10Turbidity)
	}
	if len(result.ShapExplanation) == 0 {
		t.Error("Expected opaque shap explanation to pass through")
	}
}

// TestAlumBasic_InvertedInterval tests that a contract-violating interval is flagged
func TestAlumBasic_InvertedInterval(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{
			"recommended_dose_ppm": 9,
			"predicted_settled_turbidity": 1.8,
			"confidence_interval": {"lower": 2.5, "upper": 1.5}
		}}`))
	})

	if _, err := g.PredictAlumBasic(context.Background(), "7.2", "5.5", "450"); err == nil {
		t.Error("Expected error for inverted confidence interval, got none")
	}
}

// TestAlumAdvanced_WireFieldNames tests the six-field advanced request shape
func TestAlumAdvanced_WireFieldNames(t *testing.T) {
	var gotBody map[string]interface{}
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/advance-regression/predict" {
			t.Errorf("Expected path /advance-regression/predict, got %s", r.URL.Path)
		}
		gotBody = decodeBody(t, r)
		w.Write([]byte(`{"status":"success","data":{
			"predicted_alum_dosage_ppm": 23.4,
			"dose_range_ppm": {"min": 20.1, "max": 26.7},
			"shap_explanation": {"feature_names": ["raw_water_flow"], "shap_values": [1.1]}
		}}`))
	})

	result, err := g.PredictAlumAdvanced(context.Background(), "7.2", "5.5", "450", "120", "60", "30")
	if err != nil {
		t.Fatalf("PredictAlumAdvanced failed: %v", err)
	}

	expected := []string{"ph", "turbidity", "conductivity", "raw_water_flow", "d_chamber_flow", "aerator_flow"}
	for _, field := range expected {
		if _, ok := gotBody[field]; !ok {
			t.Errorf("Expected wire field %q in advanced regression request", field)
		}
	}
	if len(gotBody) != len(expected) {
		t.Errorf("Expected exactly %d wire fields, got %v", len(expected), gotBody)
	}
	if result.PredictedAlumDose != 23.4 {
		t.Errorf("Expected predicted dose 23.4, got %v", result.PredictedAlumDose)
	}
	if !result.IsAdvanced {
		t.Error("Expected advanced prediction to be marked as advanced")
	}
	if result.DoseRange.Min != 20.1 || result.DoseRange.Max != 26.7 {
		t.Errorf("Expected dose range [20.1, 26.7], got %+v", result.DoseRange)
	}
}

// TestGateway_ValidationBeforeNetwork tests fail-fast on non-numeric input
func TestGateway_ValidationBeforeNetwork(t *testing.T) {
	called := false
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	if _, err := g.ClassifyWaterQuality(context.Background(), "not-a-number", "5.5", "450"); err == nil {
		t.Error("Expected validation error for non-numeric ph")
	}
	if _, err := g.PredictPreLime(context.Background(), "7.2", "", "450"); err == nil {
		t.Error("Expected validation error for empty turbidity")
	}
	if called {
		t.Error("Expected no network call for invalid input")
	}
}

// TestHistory_MalformedNormalizesToEmpty tests display robustness of history fetches
func TestHistory_MalformedNormalizesToEmpty(t *testing.T) {
	responses := []string{
		`{"status":"success","data":null}`,
		`{"status":"success"}`,
		`{"status":"success","data":{"unexpected":"shape"}}`,
	}

	for _, response := range responses {
		resp := response
		g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(resp))
		})

		points, err := g.PreLimeHistory(context.Background(), "2026-08-01", "2026-08-31")
		if err != nil {
			t.Errorf("Response %q: expected no error, got %v", resp, err)
			continue
		}
		if points == nil {
			t.Errorf("Response %q: expected empty slice, got nil", resp)
		}
		if len(points) != 0 {
			t.Errorf("Response %q: expected 0 points, got %d", resp, len(points))
		}
	}
}

// TestHistory_SortsAscending tests the client-side chronological sort of the
// backend's most-recent-first ordering.
// TestHistory_CapabilityFieldSelection tests that the predicted-value column
// follows the route the row came from, not which fields happen to be non-zero
func TestHistory_CapabilityFieldSelection(t *testing.T) {
	payload := `{"status":"success","data":{"status":"success","data":[
		{"created_at":"2026-08-30T10:00:00Z",
		 "raw_inputs":{"raw_ph":7.1,"raw_turbidity":4.0,"raw_conductivity":400},
		 "prediction":{"recommended_dose_ppm":12,"recommended_post_lime_dose_ppm":8,
		   "predicted_settled_pH":6.3,"predicted_final_pH_sph2":0,"predicted_settled_turbidity":1.5}}
	]}}`
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	post, err := g.PostLimeHistory(context.Background(), "2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("PostLimeHistory failed: %v", err)
	}
	if post[0].RecommendedDose != 8 {
		t.Errorf("Expected post-lime dose 8, got %v", post[0].RecommendedDose)
	}
	// a stored final pH of exactly 0 stays 0 instead of falling through to
	// another capability's column
	if post[0].PredictedValue != 0 {
		t.Errorf("Expected final pH 0, got %v", post[0].PredictedValue)
	}

	alum, err := g.AlumHistory(context.Background(), "2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("AlumHistory failed: %v", err)
	}
	if alum[0].RecommendedDose != 12 {
		t.Errorf("Expected alum dose 12, got %v", alum[0].RecommendedDose)
	}
	if alum[0].PredictedValue != 1.5 {
		t.Errorf("Expected settled turbidity 1.5, got %v", alum[0].PredictedValue)
	}
}

func TestHistory_SortsAscending(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_date") != "2026-08-01" {
			t.Errorf("Expected start_date query param, got %v", r.URL.Query())
		}
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":[
			{"created_at":"2026-08-30T10:00:00Z","raw_inputs":{"raw_ph":7.1,"raw_turbidity":4.0,"raw_conductivity":400},"prediction":{"recommended_dose_ppm":12,"predicted_settled_pH":6.3}},
			{"created_at":"2026-08-29T10:00:00Z","raw_inputs":{"raw_ph":7.0,"raw_turbidity":3.5,"raw_conductivity":390},"prediction":{"recommended_dose_ppm":11,"predicted_settled_pH":6.2}}
		]}}`))
	})

	points, err := g.PreLimeHistory(context.Background(), "2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("PreLimeHistory failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 history points, got %d", len(points))
	}
	if !points[0].CreatedAt.Before(points[1].CreatedAt) {
		t.Error("Expected history sorted chronologically ascending")
	}
	if points[0].RecommendedDose != 11 {
		t.Errorf("Expected oldest point first (dose 11), got %v", points[0].RecommendedDose)
	}
	if points[0].RawInputs.Ph != 7.0 {
		t.Errorf("Expected raw inputs preserved, got %+v", points[0].RawInputs)
	}
}

// TestSensorFeed_Normalization tests the sensor feed window fetch
func TestSensorFeed_Normalization(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sensor-auto/history" {
			t.Errorf("Expected path /sensor-auto/history, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","data":[
			{"predicted_at":"2026-08-31T08:00:00","raw_inputs":{"raw_ph":7.3,"raw_turbidity":5.1,"raw_conductivity":455},"prediction":{"recommended_dose_ppm":13,"predicted_settled_pH":6.4}}
		]}`))
	})

	points, err := g.SensorFeed(context.Background(), "2026-08-31T07:45:00", "2026-08-31T08:00:00")
	if err != nil {
		t.Fatalf("SensorFeed failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Expected 1 feed point, got %d", len(points))
	}
	if points[0].RawInputs.Turbidity != 5.1 {
		t.Errorf("Expected raw turbidity 5.1, got %v", points[0].RawInputs.Turbidity)
	}
	if points[0].PredictedValue != 6.4 {
		t.Errorf("Expected predicted value 6.4, got %v", points[0].PredictedValue)
	}
}

// TestLogin_SessionShape tests the auth capability mapping
func TestLogin_SessionShape(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("Expected path /auth/login, got %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["email"] != "op@plant.local" || body["password"] != "secret" {
			t.Errorf("Expected email/password wire fields, got %v", body)
		}
		w.Write([]byte(`{"status":"success","message":"Login successful","data":{"access_token":"jwt-abc","email":"op@plant.local"}}`))
	})

	sess, err := g.Login(context.Background(), "op@plant.local", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token != "jwt-abc" {
		t.Errorf("Expected token 'jwt-abc', got '%s'", sess.Token)
	}
	if sess.User.Email != "op@plant.local" {
		t.Errorf("Expected user email preserved, got '%s'", sess.User.Email)
	}
}

// TestIdempotentShape tests that two identical calls produce identically shaped results
func TestIdempotentShape(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"success","data":{
			"recommended_dose_ppm": 12.5,
			"predicted_settled_pH": 6.3,
			"conformal_interval": {"lower_pH": 6.1, "upper_pH": 6.5}
		}}}`))
	})

	first, err := g.PredictPreLime(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	second, err := g.PredictPreLime(context.Background(), "7.2", "5.5", "450")
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if first.RecommendedDose != second.RecommendedDose ||
		first.PredictedPH != second.PredictedPH ||
		first.ConformalInterval != second.ConformalInterval ||
		first.IsSpike != second.IsSpike {
		t.Errorf("Expected identical normalized results, got %+v vs %+v", first, second)
	}
}
