package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WaterSample represents operator-entered raw water quality readings for the
// 3-parameter models (classification, basic alum regression, lime dosing).
type WaterSample struct {
	Ph           float64 `json:"ph"`
	Turbidity    float64 `json:"turbidity"`
	Conductivity float64 `json:"conductivity"`
}

// AdvancedSample extends WaterSample with the operational flow readings required
// by the 6-parameter advanced alum regression.
type AdvancedSample struct {
	WaterSample
	RawWaterFlow float64 `json:"raw_water_flow"`
	DChamberFlow float64 `json:"d_chamber_flow"`
	AeratorFlow  float64 `json:"aerator_flow"`
}

// Validate checks that all sample values are finite and non-negative.
// The conventional pH range [0,14] is a UI hint, not a hard invariant.
func (s WaterSample) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"ph", s.Ph},
		{"turbidity", s.Turbidity},
		{"conductivity", s.Conductivity},
	}
	for _, f := range fields {
		if err := validateValue(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the advanced sample, including the three flow readings.
func (s AdvancedSample) Validate() error {
	if err := s.WaterSample.Validate(); err != nil {
		return err
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"raw_water_flow", s.RawWaterFlow},
		{"d_chamber_flow", s.DChamberFlow},
		{"aerator_flow", s.AeratorFlow},
	}
	for _, f := range fields {
		if err := validateValue(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{Field: name, Message: name + " must be a finite number"}
	}
	if value < 0 {
		return &ValidationError{Field: name, Message: name + " must be non-negative"}
	}
	return nil
}

// ValidationError is raised before any network call when operator input is unusable
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ParseSample converts raw form input strings into a validated WaterSample.
// Non-numeric or empty input fails fast, before any request is attempted.
func ParseSample(ph, turbidity, conductivity string) (WaterSample, error) {
	var sample WaterSample
	var err error

	if sample.Ph, err = parseField("ph", ph); err != nil {
		return WaterSample{}, err
	}
	if sample.Turbidity, err = parseField("turbidity", turbidity); err != nil {
		return WaterSample{}, err
	}
	if sample.Conductivity, err = parseField("conductivity", conductivity); err != nil {
		return WaterSample{}, err
	}

	if err := sample.Validate(); err != nil {
		return WaterSample{}, err
	}
	return sample, nil
}

// ParseAdvancedSample converts the six raw form input strings into a validated AdvancedSample
func ParseAdvancedSample(ph, turbidity, conductivity, rawWaterFlow, dChamberFlow, aeratorFlow string) (AdvancedSample, error) {
	base, err := ParseSample(ph, turbidity, conductivity)
	if err != nil {
		return AdvancedSample{}, err
	}

	sample := AdvancedSample{WaterSample: base}
	if sample.RawWaterFlow, err = parseField("raw_water_flow", rawWaterFlow); err != nil {
		return AdvancedSample{}, err
	}
	if sample.DChamberFlow, err = parseField("d_chamber_flow", dChamberFlow); err != nil {
		return AdvancedSample{}, err
	}
	if sample.AeratorFlow, err = parseField("aerator_flow", aeratorFlow); err != nil {
		return AdvancedSample{}, err
	}

	if err := sample.Validate(); err != nil {
		return AdvancedSample{}, err
	}
	return sample, nil
}

func parseField(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: name, Message: "Please fill in all fields"}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ValidationError{Field: name, Message: fmt.Sprintf("%s must be a number, got %q", name, raw)}
	}
	return value, nil
}
