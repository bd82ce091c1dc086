package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// HealthData is the typed view of a raw health-data snapshot. Every metric
// is optional; a nil pointer means the metric was absent or unparseable.
type HealthData struct {
	Cardiovascular Cardiovascular
	Metabolic      Metabolic
	Respiratory    Respiratory
	Thermal        Thermal
	Activity       Activity
	Neurological   Neurological
}

type Cardiovascular struct {
	HeartRate      *float64
	SystolicBP     *float64
	DiastolicBP    *float64
	HRV            *float64 // ms
	Rhythm         string
	HeartRateTrend string
}

type Metabolic struct {
	Glucose      *float64 // mg/dL
	GlucoseTrend string
}

type Respiratory struct {
	OxygenSaturation *float64
	RespiratoryRate  *float64
	OxygenTrend      string
}

type Thermal struct {
	Temperature *float64 // Celsius
}

type Activity struct {
	DailySteps *float64
}

type Neurological struct {
	Confusion bool
	Notes     string
}

// Empty reports whether no metric at all was recognised.
func (h HealthData) Empty() bool {
	c, m, r := h.Cardiovascular, h.Metabolic, h.Respiratory
	return c.HeartRate == nil && c.SystolicBP == nil && c.DiastolicBP == nil && c.HRV == nil &&
		c.Rhythm == "" && c.HeartRateTrend == "" &&
		m.Glucose == nil && m.GlucoseTrend == "" &&
		r.OxygenSaturation == nil && r.RespiratoryRate == nil && r.OxygenTrend == "" &&
		h.Thermal.Temperature == nil && h.Activity.DailySteps == nil &&
		!h.Neurological.Confusion && h.Neurological.Notes == ""
}

// ParseHealthData builds a HealthData from a loosely typed snapshot. Values
// that cannot be interpreted are dropped rather than reported.
func ParseHealthData(raw map[string]any) HealthData {
	var h HealthData
	if len(raw) == 0 {
		return h
	}

	h.Cardiovascular.HeartRate = firstNumber(raw, "heart_rate", "hr", "pulse_rate", "pulse")
	h.Cardiovascular.SystolicBP = firstNumber(raw, "systolic_bp", "blood_pressure_systolic", "systolic", "bp_systolic")
	h.Cardiovascular.DiastolicBP = firstNumber(raw, "diastolic_bp", "blood_pressure_diastolic", "diastolic", "bp_diastolic")
	if sys, dia := parseBloodPressure(raw["blood_pressure"]); sys != nil || dia != nil {
		if h.Cardiovascular.SystolicBP == nil {
			h.Cardiovascular.SystolicBP = sys
		}
		if h.Cardiovascular.DiastolicBP == nil {
			h.Cardiovascular.DiastolicBP = dia
		}
	}
	h.Cardiovascular.HRV = firstNumber(raw, "heart_rate_variability", "hrv")
	h.Cardiovascular.Rhythm = firstLabel(raw, "rhythm", "rhythm_type", "ecg_rhythm")
	h.Cardiovascular.HeartRateTrend = firstLabel(raw, "heart_rate_trend")

	h.Metabolic.Glucose = firstNumber(raw, "glucose", "blood_glucose", "glucose_level")
	h.Metabolic.GlucoseTrend = firstLabel(raw, "glucose_trend")

	h.Respiratory.OxygenSaturation = firstNumber(raw, "oxygen_saturation", "spo2", "blood_oxygen")
	h.Respiratory.RespiratoryRate = firstNumber(raw, "respiratory_rate", "rr", "breathing_rate")
	h.Respiratory.OxygenTrend = firstLabel(raw, "oxygen_trend", "spo2_trend")

	h.Thermal.Temperature = firstNumber(raw, "temperature", "body_temperature", "core_temperature")
	h.Activity.DailySteps = firstNumber(raw, "daily_steps", "steps")

	if b, ok := raw["confusion"].(bool); ok {
		h.Neurological.Confusion = b
	}
	if notes, ok := raw["notes"].(string); ok {
		h.Neurological.Notes = strings.TrimSpace(notes)
	} else if notes, ok := raw["symptoms"].(string); ok {
		h.Neurological.Notes = strings.TrimSpace(notes)
	}

	return h
}

func firstNumber(raw map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return &f
		}
	}
	return nil
}

func firstLabel(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return normalizeLabel(s)
		}
	}
	return ""
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseBloodPressure accepts "120/80" or {"systolic":120,"diastolic":80}.
func parseBloodPressure(v any) (*float64, *float64) {
	switch bp := v.(type) {
	case string:
		parts := strings.SplitN(bp, "/", 2)
		if len(parts) != 2 {
			return nil, nil
		}
		var sys, dia *float64
		if f, ok := toFloat(parts[0]); ok {
			sys = &f
		}
		if f, ok := toFloat(parts[1]); ok {
			dia = &f
		}
		return sys, dia
	case map[string]any:
		return firstNumber(bp, "systolic", "sys"), firstNumber(bp, "diastolic", "dia")
	}
	return nil, nil
}
