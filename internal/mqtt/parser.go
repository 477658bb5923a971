package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// rawWaterPayload is the device's JSON message shape.
type rawWaterPayload struct {
	RawPh           float64 `json:"raw_ph"`
	RawTurbidity    float64 `json:"raw_turbidity"`
	RawConductivity float64 `json:"raw_conductivity"`
}

// ParseRawWaterJSON parses a JSON payload from the plant sensor gateway.
func ParseRawWaterJSON(payload []byte) (models.WaterSample, error) {
	var data rawWaterPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return models.WaterSample{}, fmt.Errorf("failed to parse raw-water JSON: %w", err)
	}

	sample := models.WaterSample{
		Ph:           data.RawPh,
		Turbidity:    data.RawTurbidity,
		Conductivity: data.RawConductivity,
	}
	if err := sample.Validate(); err != nil {
		return models.WaterSample{}, fmt.Errorf("invalid raw-water reading: %w", err)
	}
	return sample, nil
}

// ParseRawWaterString parses comma-separated sensor values (fallback format).
// Expected format: "ph,turbidity,conductivity"
func ParseRawWaterString(payload string) (models.WaterSample, error) {
	var ph, turbidity, conductivity float64

	n, err := fmt.Sscanf(payload, "%f,%f,%f", &ph, &turbidity, &conductivity)
	if err != nil || n != 3 {
		return models.WaterSample{}, fmt.Errorf("failed to parse raw-water string: expected 3 values (ph,turbidity,conductivity), got %d", n)
	}

	sample := models.WaterSample{Ph: ph, Turbidity: turbidity, Conductivity: conductivity}
	if err := sample.Validate(); err != nil {
		return models.WaterSample{}, fmt.Errorf("invalid raw-water reading: %w", err)
	}
	return sample, nil
}

// FormatReading formats a reading for logging.
func FormatReading(r Reading) string {
	return fmt.Sprintf("Time: %s, pH: %.2f, Turbidity: %.2f NTU, Conductivity: %.0f uS/cm",
		r.ReceivedAt.Format("2006-01-02 15:04:05"),
		r.Sample.Ph,
		r.Sample.Turbidity,
		r.Sample.Conductivity)
}
