package report

import (
	"fmt"
	"time"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// BuildAlumReport assembles the report for a completed alum flow. Exactly one
// of basic or advanced is expected; the other may be nil.
func BuildAlumReport(classification *models.ClassificationResult, basic *models.AlumBasicPrediction,
	advanced *models.AlumAdvancedPrediction, history []models.HistoryPoint, now time.Time) Report {

	r := Report{
		Capability:         "Alum",
		GeneratedAt:        now,
		History:            history,
		HistoryValueHeader: "Settled Turbidity",
	}

	if classification != nil {
		r.Results = append(r.Results,
			Field{"Water Quality Classification", string(classification.Classification)},
			Field{"Abnormal Probability", fmt.Sprintf("%.1f%% (threshold %.0f%%)",
				classification.AbnormalProbability*100, classification.Threshold*100)},
		)
	}

	switch {
	case advanced != nil:
		r.Inputs = sampleFields(advanced.Inputs.WaterSample)
		r.Inputs = append(r.Inputs,
			Field{"Raw Water Flow (m3/h)", fmt.Sprintf("%.2f", advanced.Inputs.RawWaterFlow)},
			Field{"D-Chamber Flow (m3/h)", fmt.Sprintf("%.2f", advanced.Inputs.DChamberFlow)},
			Field{"Aerator Flow (m3/h)", fmt.Sprintf("%.2f", advanced.Inputs.AeratorFlow)},
		)
		r.Results = append(r.Results,
			Field{"Predicted Alum Dose (ppm)", fmt.Sprintf("%.2f", advanced.PredictedAlumDose)},
			Field{"Dose Range (ppm)", fmt.Sprintf("%.2f - %.2f", advanced.DoseRange.Min, advanced.DoseRange.Max)},
		)
	case basic != nil:
		r.Inputs = sampleFields(basic.Inputs)
		r.Results = append(r.Results,
			Field{"Recommended Alum Dose (ppm)", fmt.Sprintf("%.2f", basic.RecommendedDose)},
			Field{"Predicted Settled Turbidity (NTU)", fmt.Sprintf("%.3f", basic.PredictedSettledTurbidity)},
			Field{"Confidence Interval (NTU)", fmt.Sprintf("%.3f - %.3f",
				basic.ConfidenceInterval.Lower, basic.ConfidenceInterval.Upper)},
			Field{"Turbidity at 9 ppm (NTU)", fmt.Sprintf("%.3f", basic.DoseComparison.Dose9Turbidity)},
			Field{"Turbidity at 10 ppm (NTU)", fmt.Sprintf("%.3f", basic.DoseComparison.Dose10Turbidity)},
		)
	}

	return r
}

// BuildLimeReport assembles the report for a completed lime prediction.
func BuildLimeReport(prediction models.LimePrediction, history []models.HistoryPoint, now time.Time) Report {
	capability := "Pre-Lime"
	doseLabel := "Recommended Pre-Lime Dose (ppm)"
	phLabel := "Predicted Settled pH"
	valueHeader := "Settled pH"
	if prediction.Stage == models.LimeStagePost {
		capability = "Post-Lime"
		doseLabel = "Recommended Post-Lime Dose (ppm)"
		phLabel = "Predicted Final pH"
		valueHeader = "Final pH"
	}

	r := Report{
		Capability:         capability,
		GeneratedAt:        now,
		Inputs:             sampleFields(prediction.Inputs),
		Explanation:        prediction.Explanation,
		History:            history,
		HistoryValueHeader: valueHeader,
	}

	r.Results = []Field{
		{doseLabel, fmt.Sprintf("%.2f", prediction.RecommendedDose)},
		{phLabel, fmt.Sprintf("%.2f", prediction.PredictedPH)},
		{"Conformal Interval (pH)", fmt.Sprintf("%.2f - %.2f",
			prediction.ConformalInterval.Lower, prediction.ConformalInterval.Upper)},
	}

	if prediction.IsSpike {
		band := prediction.Stage.SafeBand()
		r.SpikeAlert = fmt.Sprintf("Predicted %s %.2f is outside the safe band %.1f - %.1f. Review dosing before applying.",
			phLabel, prediction.PredictedPH, band.Lower, band.Upper)
	}

	return r
}

func sampleFields(sample models.WaterSample) []Field {
	return []Field{
		{"Raw Water pH", fmt.Sprintf("%.2f", sample.Ph)},
		{"Raw Water Turbidity (NTU)", fmt.Sprintf("%.2f", sample.Turbidity)},
		{"Raw Water Conductivity (uS/cm)", fmt.Sprintf("%.0f", sample.Conductivity)},
	}
}
