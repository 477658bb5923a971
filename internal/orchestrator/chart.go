package orchestrator

import (
	"math"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Sweep ranges for the dose-response charts. The alum curve sweeps the
// plant's practical coagulant range; the lime curve sweeps the pH-correction
// range. Both are heuristics anchored at the model's recommended dose, used
// for visualization only.
const (
	alumSweepMin  = 2.0
	alumSweepMax  = 60.0
	alumSweepStep = 2.0

	limeSweepMax  = 20.0
	limeSweepStep = 0.5

	turbidityFloor = 0.1
)

// AlumDoseCurve synthesizes a dose-vs-settled-turbidity series around the
// recommended alum dose. Settling improves proportionally with dose up to a
// capped improvement factor of 1.5, so the curve is non-increasing and
// flattens past ~1.25x the recommended dose. Values never drop below the
// measurable turbidity floor.
func AlumDoseCurve(recommendedDose, anchorTurbidity float64) []models.ChartPoint {
	if recommendedDose <= 0 || anchorTurbidity <= 0 {
		return nil
	}

	var points []models.ChartPoint
	nearest := nearestStep(recommendedDose, alumSweepMin, alumSweepMax, alumSweepStep)

	for dose := alumSweepMin; dose <= alumSweepMax+1e-9; dose += alumSweepStep {
		improvement := math.Min(1.2*dose/recommendedDose, 1.5)
		value := math.Max(anchorTurbidity/improvement, turbidityFloor)

		point := models.ChartPoint{Dose: dose, Value: value}
		if math.Abs(dose-nearest) < 1e-9 {
			marked := value
			point.RecommendedPoint = &marked
		}
		points = append(points, point)
	}
	return points
}

// LimeDoseCurve synthesizes a dose-vs-pH series as a linear ramp from the
// untreated pH at zero dose through the predicted pH at the recommended
// dose, clamped to the physical pH scale.
func LimeDoseCurve(recommendedDose, predictedPH, rawPH float64) []models.ChartPoint {
	if recommendedDose <= 0 {
		return nil
	}

	slope := (predictedPH - rawPH) / recommendedDose
	nearest := nearestStep(recommendedDose, 0, limeSweepMax, limeSweepStep)

	var points []models.ChartPoint
	for dose := 0.0; dose <= limeSweepMax+1e-9; dose += limeSweepStep {
		value := rawPH + slope*dose
		if value < 0 {
			value = 0
		} else if value > 14 {
			value = 14
		}

		point := models.ChartPoint{Dose: dose, Value: value}
		if math.Abs(dose-nearest) < 1e-9 {
			marked := value
			point.RecommendedPoint = &marked
		}
		points = append(points, point)
	}
	return points
}

// nearestStep snaps a dose onto the sweep grid, clamped to its bounds.
func nearestStep(dose, min, max, step float64) float64 {
	if dose < min {
		return min
	}
	if dose > max {
		return max
	}
	return min + math.Round((dose-min)/step)*step
}
