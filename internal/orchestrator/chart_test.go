package orchestrator

import (
	"math"
	"testing"
)

// TestAlumDoseCurve_Shape tests sweep bounds, monotonicity and the floor
func TestAlumDoseCurve_Shape(t *testing.T) {
	points := AlumDoseCurve(9, 1.8)
	if len(points) != 30 {
		t.Fatalf("Expected 30 sweep points (2..60 step 2), got %d", len(points))
	}
	if points[0].Dose != 2 || points[len(points)-1].Dose != 60 {
		t.Errorf("Expected sweep from 2 to 60, got %v..%v", points[0].Dose, points[len(points)-1].Dose)
	}

	for i := 1; i < len(points); i++ {
		if points[i].Value > points[i-1].Value+1e-9 {
			t.Errorf("Curve not monotone non-increasing at dose %v: %v > %v",
				points[i].Dose, points[i].Value, points[i-1].Value)
		}
	}
	for _, p := range points {
		if p.Value < turbidityFloor-1e-9 {
			t.Errorf("Value %v at dose %v below floor", p.Value, p.Dose)
		}
	}
}

// TestAlumDoseCurve_RecommendedMarker tests that exactly one point carries
// the marker, at the sweep step nearest the recommended dose.
func TestAlumDoseCurve_RecommendedMarker(t *testing.T) {
	points := AlumDoseCurve(9, 1.8)

	var marked []float64
	for _, p := range points {
		if p.RecommendedPoint != nil {
			marked = append(marked, p.Dose)
			if *p.RecommendedPoint != p.Value {
				t.Errorf("Marker value %v disagrees with point value %v", *p.RecommendedPoint, p.Value)
			}
		}
	}
	if len(marked) != 1 {
		t.Fatalf("Expected exactly one marked point, got %v", marked)
	}
	// 9 ppm is equidistant between grid steps and rounds up
	if marked[0] != 10 {
		t.Errorf("Expected marker at 10 ppm for recommended dose 9, got %v", marked[0])
	}
}

// TestAlumDoseCurve_DegenerateInputs tests the nil guard
func TestAlumDoseCurve_DegenerateInputs(t *testing.T) {
	if AlumDoseCurve(0, 1.8) != nil {
		t.Error("Expected nil curve for zero recommended dose")
	}
	if AlumDoseCurve(9, 0) != nil {
		t.Error("Expected nil curve for zero anchor turbidity")
	}
}

// TestLimeDoseCurve_Ramp tests the linear ramp anchors and clamping
func TestLimeDoseCurve_Ramp(t *testing.T) {
	points := LimeDoseCurve(12.5, 6.3, 5.8)
	if len(points) != 41 {
		t.Fatalf("Expected 41 sweep points (0..20 step 0.5), got %d", len(points))
	}
	if points[0].Dose != 0 || points[0].Value != 5.8 {
		t.Errorf("Expected ramp to start at (0, rawPH), got (%v, %v)", points[0].Dose, points[0].Value)
	}

	// The point at the recommended dose reproduces the predicted pH
	var atRecommended *float64
	for i := range points {
		if points[i].RecommendedPoint != nil {
			atRecommended = points[i].RecommendedPoint
		}
	}
	if atRecommended == nil {
		t.Fatal("Expected a marked recommended point")
	}
	if math.Abs(*atRecommended-6.3) > 0.05 {
		t.Errorf("Expected marker near predicted pH 6.3, got %v", *atRecommended)
	}

	// Rising ramp stays monotone
	for i := 1; i < len(points); i++ {
		if points[i].Value < points[i-1].Value-1e-9 {
			t.Errorf("Rising ramp decreased at dose %v", points[i].Dose)
		}
	}
}

// TestLimeDoseCurve_ClampsToScale tests that extrapolation never leaves [0, 14]
func TestLimeDoseCurve_ClampsToScale(t *testing.T) {
	points := LimeDoseCurve(1.0, 13.0, 5.0)
	for _, p := range points {
		if p.Value < 0 || p.Value > 14 {
			t.Errorf("pH %v at dose %v outside the scale", p.Value, p.Dose)
		}
	}
}
