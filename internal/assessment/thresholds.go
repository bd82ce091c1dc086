package assessment

import "github.com/mr1hm/go-emergency-alerts/internal/models"

type Metric string

const (
	MetricHeartRate        Metric = "heart_rate"
	MetricSystolicBP       Metric = "systolic_bp"
	MetricDiastolicBP      Metric = "diastolic_bp"
	MetricGlucose          Metric = "glucose"
	MetricOxygenSaturation Metric = "oxygen_saturation"
	MetricRespiratoryRate  Metric = "respiratory_rate"
	MetricTemperature      Metric = "temperature"
)

// band is a closed normal interval; zero bounds are treated as unbounded
// when the matching open flag is set.
type band struct {
	Low, High float64
	NoLow     bool
	NoHigh    bool
}

func (b band) contains(v float64) bool {
	if !b.NoLow && v < b.Low {
		return false
	}
	if !b.NoHigh && v > b.High {
		return false
	}
	return true
}

// Threshold holds the bands a value has to leave to reach each tier.
type Threshold struct {
	Normal   band // leaving it scores 0.4
	Warning  band // leaving it scores 0.8
	Critical band // leaving it scores 1.0
}

var thresholdTable = map[Metric]Threshold{
	MetricHeartRate: {
		Normal:   band{Low: 50, High: 120},
		Warning:  band{Low: 40, High: 150},
		Critical: band{Low: 30, High: 180},
	},
	MetricSystolicBP: {
		Normal:   band{Low: 90, High: 140},
		Warning:  band{Low: 80, High: 160},
		Critical: band{Low: 70, High: 180},
	},
	MetricDiastolicBP: {
		Normal:   band{Low: 60, High: 90},
		Warning:  band{Low: 50, High: 100},
		Critical: band{Low: 40, High: 120},
	},
	MetricGlucose: {
		Normal:   band{Low: 70, High: 180},
		Warning:  band{Low: 54, High: 300},
		Critical: band{Low: 40, High: 400},
	},
	MetricOxygenSaturation: {
		Normal:   band{Low: 95, NoHigh: true},
		Warning:  band{Low: 90, NoHigh: true},
		Critical: band{Low: 85, NoHigh: true},
	},
	MetricRespiratoryRate: {
		Normal:   band{Low: 12, High: 20},
		Warning:  band{Low: 10, High: 25},
		Critical: band{Low: 8, High: 30},
	},
	MetricTemperature: {
		Normal:   band{Low: 36.0, High: 38.0},
		Warning:  band{Low: 35.5, High: 39.0},
		Critical: band{Low: 35.0, High: 40.0},
	},
}

// TierFor maps a reading to its severity tier: 0, 0.4, 0.8 or 1.0.
func TierFor(m Metric, v float64) float64 {
	t, ok := thresholdTable[m]
	if !ok {
		return 0
	}
	switch {
	case !t.Critical.contains(v):
		return 1.0
	case !t.Warning.contains(v):
		return 0.8
	case !t.Normal.contains(v):
		return 0.4
	default:
		return 0
	}
}

// Readings flattens the numeric vitals covered by the threshold table.
// Absent metrics are omitted.
func Readings(h models.HealthData) map[Metric]float64 {
	out := make(map[Metric]float64, len(thresholdTable))
	add := func(m Metric, v *float64) {
		if v != nil {
			out[m] = *v
		}
	}
	add(MetricHeartRate, h.Cardiovascular.HeartRate)
	add(MetricSystolicBP, h.Cardiovascular.SystolicBP)
	add(MetricDiastolicBP, h.Cardiovascular.DiastolicBP)
	add(MetricGlucose, h.Metabolic.Glucose)
	add(MetricOxygenSaturation, h.Respiratory.OxygenSaturation)
	add(MetricRespiratoryRate, h.Respiratory.RespiratoryRate)
	add(MetricTemperature, h.Thermal.Temperature)
	return out
}

// AbnormalCount is the number of vitals outside their normal band.
func AbnormalCount(h models.HealthData) int {
	n := 0
	for m, v := range Readings(h) {
		if TierFor(m, v) > 0 {
			n++
		}
	}
	return n
}

// IsElderlyProxy matches when at least two of: resting heart rate below 65,
// systolic above 140, fewer than 3000 daily steps.
func IsElderlyProxy(h models.HealthData) bool {
	matches := 0
	if hr := h.Cardiovascular.HeartRate; hr != nil && *hr < 65 {
		matches++
	}
	if sys := h.Cardiovascular.SystolicBP; sys != nil && *sys > 140 {
		matches++
	}
	if steps := h.Activity.DailySteps; steps != nil && *steps < 3000 {
		matches++
	}
	return matches >= 2
}
