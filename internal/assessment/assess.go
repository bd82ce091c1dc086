package assessment

import (
	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type Assessment struct {
	Health         models.HealthData
	SeverityScore  float64
	Classification models.Classification
	Urgency        models.UrgencyLevel
	AbnormalVitals int
}

// classificationFloor is the lowest urgency a classified alert may carry.
var classificationFloor = map[models.Classification]models.UrgencyLevel{
	models.ClassificationCardiacArrest:   models.UrgencyCritical,
	models.ClassificationSevereHypoxemia: models.UrgencyCritical,
	models.ClassificationStroke:          models.UrgencyCritical,
}

// Assess scores and classifies the snapshot in parallel and derives the
// urgency level. requested is the urgency carried by the trigger, if any;
// the result is never lower than it.
func Assess(raw map[string]any, alertType models.AlertType, requested models.UrgencyLevel) Assessment {
	h := models.ParseHealthData(raw)

	var (
		score          float64
		classification models.Classification
		g              errgroup.Group
	)
	g.Go(func() error {
		score = Score(h, alertType)
		return nil
	})
	g.Go(func() error {
		classification = Classify(h, alertType)
		return nil
	})
	_ = g.Wait()

	urgency := UrgencyFromScore(score)
	if floor := FloorFor(classification); floor > urgency {
		urgency = floor
	}
	if requested > urgency {
		urgency = requested
	}

	return Assessment{
		Health:         h,
		SeverityScore:  score,
		Classification: classification,
		Urgency:        urgency,
		AbnormalVitals: AbnormalCount(h),
	}
}

func UrgencyFromScore(score float64) models.UrgencyLevel {
	switch {
	case score >= 0.7:
		return models.UrgencyCritical
	case score >= 0.5:
		return models.UrgencyHigh
	case score >= 0.3:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// FloorFor returns the minimum urgency for a classification. Any
// classified condition is at least HIGH.
func FloorFor(c models.Classification) models.UrgencyLevel {
	if c == models.ClassificationNone {
		return models.UrgencyLow
	}
	if floor, ok := classificationFloor[c]; ok {
		return floor
	}
	return models.UrgencyHigh
}
