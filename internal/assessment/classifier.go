package assessment

import (
	"strings"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type rule struct {
	classification models.Classification
	match          func(h models.HealthData, alertType models.AlertType) bool
}

// rules is evaluated in order and the first match wins. Cardiac conditions
// come first.
var rules = []rule{
	{models.ClassificationCardiacArrest, func(h models.HealthData, _ models.AlertType) bool {
		if below(h.Cardiovascular.HeartRate, 40) || above(h.Cardiovascular.HeartRate, 180) {
			return true
		}
		switch h.Cardiovascular.Rhythm {
		case "asystole", "ventricular_fibrillation", "vfib", "ventricular_tachycardia", "vtach", "pulseless", "pea":
			return true
		}
		return false
	}},
	{models.ClassificationCardiacArrhythmia, func(h models.HealthData, _ models.AlertType) bool {
		if below(h.Cardiovascular.HeartRate, 50) || above(h.Cardiovascular.HeartRate, 150) {
			return true
		}
		switch h.Cardiovascular.Rhythm {
		case "atrial_fibrillation", "afib", "atrial_flutter", "irregular", "bradycardia", "tachycardia", "svt":
			return true
		}
		return false
	}},
	{models.ClassificationHypertensiveCrisis, func(h models.HealthData, _ models.AlertType) bool {
		return above(h.Cardiovascular.SystolicBP, 180) || above(h.Cardiovascular.DiastolicBP, 120)
	}},
	{models.ClassificationHypotension, func(h models.HealthData, _ models.AlertType) bool {
		return below(h.Cardiovascular.SystolicBP, 90)
	}},
	{models.ClassificationHypoglycemia, func(h models.HealthData, _ models.AlertType) bool {
		return below(h.Metabolic.Glucose, 54)
	}},
	{models.ClassificationHyperglycemia, func(h models.HealthData, _ models.AlertType) bool {
		return above(h.Metabolic.Glucose, 400)
	}},
	{models.ClassificationSevereHypoxemia, func(h models.HealthData, _ models.AlertType) bool {
		return below(h.Respiratory.OxygenSaturation, 85)
	}},
	{models.ClassificationRespiratoryDistress, func(h models.HealthData, _ models.AlertType) bool {
		return below(h.Respiratory.RespiratoryRate, 8) || above(h.Respiratory.RespiratoryRate, 30)
	}},
	{models.ClassificationHyperthermia, func(h models.HealthData, _ models.AlertType) bool {
		v := h.Thermal.Temperature
		return v != nil && *v >= 40
	}},
	{models.ClassificationStroke, func(h models.HealthData, alertType models.AlertType) bool {
		if alertType == models.AlertTypeNeurological || h.Neurological.Confusion {
			return true
		}
		notes := strings.ToLower(h.Neurological.Notes)
		return strings.Contains(notes, "confusion") || strings.Contains(notes, "confused") ||
			strings.Contains(notes, "slurred")
	}},
}

// Classify returns the first matching condition, or ClassificationNone.
func Classify(h models.HealthData, alertType models.AlertType) models.Classification {
	for _, r := range rules {
		if r.match(h, alertType) {
			return r.classification
		}
	}
	return models.ClassificationNone
}

func below(v *float64, limit float64) bool {
	return v != nil && *v < limit
}

func above(v *float64, limit float64) bool {
	return v != nil && *v > limit
}
