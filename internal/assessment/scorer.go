package assessment

import (
	"math"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

const (
	weightVitals      = 0.4
	weightTrend       = 0.3
	weightCombination = 0.2
	weightAlertType   = 0.1
)

var alertTypeWeights = map[models.AlertType]float64{
	models.AlertTypeManualTrigger:  0.9,
	models.AlertTypeNeurological:   0.9,
	models.AlertTypeDeviceReading:  0.8,
	models.AlertTypeHealthAnalysis: 0.7,
	models.AlertTypeTrendAnalysis:  0.3,
	models.AlertTypeScheduledCheck: 0.2,
	models.AlertTypeSystemTest:     0.1,
}

const defaultAlertTypeWeight = 0.5

// Score returns the composite severity in [0,1], rounded to 3 decimals.
// A snapshot with no recognised metric scores 0.
func Score(h models.HealthData, alertType models.AlertType) float64 {
	if h.Empty() {
		return 0
	}

	score := weightVitals*vitalRisk(h) +
		weightTrend*trendRisk(h) +
		weightCombination*combinationRisk(AbnormalCount(h)) +
		weightAlertType*alertTypeRisk(alertType)

	score = math.Max(0, math.Min(1, score))
	return math.Round(score*1000) / 1000
}

// vitalRisk is the worst single-metric tier, not the sum.
func vitalRisk(h models.HealthData) float64 {
	worst := 0.0
	for m, v := range Readings(h) {
		worst = math.Max(worst, TierFor(m, v))
	}
	return worst
}

func trendRisk(h models.HealthData) float64 {
	risk := 0.0

	switch h.Metabolic.GlucoseTrend {
	case "rising_rapidly", "falling_rapidly":
		risk += 0.4
	case "rising", "falling":
		risk += 0.1
	}

	if hrv := h.Cardiovascular.HRV; hrv != nil {
		switch {
		case *hrv < 20:
			risk += 0.3
		case *hrv < 30:
			risk += 0.15
		}
	}

	switch h.Cardiovascular.HeartRateTrend {
	case "rising_rapidly", "falling_rapidly":
		risk += 0.3
	}

	switch h.Respiratory.OxygenTrend {
	case "falling", "falling_rapidly":
		risk += 0.3
	}

	return math.Min(risk, 1.0)
}

func combinationRisk(abnormal int) float64 {
	switch {
	case abnormal <= 0:
		return 0
	case abnormal == 1:
		return 0.2
	case abnormal == 2:
		return 0.4
	case abnormal == 3:
		return 0.7
	default:
		return 1.0
	}
}

func alertTypeRisk(t models.AlertType) float64 {
	if w, ok := alertTypeWeights[t]; ok {
		return w
	}
	return defaultAlertTypeWeight
}
