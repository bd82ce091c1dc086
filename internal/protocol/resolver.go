package protocol

import (
	"time"

	"github.com/mr1hm/go-emergency-alerts/internal/assessment"
	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

const minResponseBudgetSeconds = 30

var baseProtocols = map[models.UrgencyLevel]models.ResponseProtocol{
	models.UrgencyCritical: {
		ResponseTimeBudgetSeconds: 60,
		AutoCallEMS:               true,
		NotifyEmergencyContacts:   true,
		AlertProviders:            true,
		RequireConsultation:       true,
		IncreaseMonitoring:        true,
		SendSMS:                   true,
		SendEmail:                 true,
		SendPush:                  true,
		SendVoice:                 true,
		EscalationLevels:          3,
		FollowUpIntervalsMinutes:  []int{5, 15, 30},
	},
	models.UrgencyHigh: {
		ResponseTimeBudgetSeconds: 300,
		NotifyEmergencyContacts:   true,
		AlertProviders:            true,
		RequireConsultation:       true,
		IncreaseMonitoring:        true,
		SendSMS:                   true,
		SendEmail:                 true,
		SendPush:                  true,
		EscalationLevels:          2,
		FollowUpIntervalsMinutes:  []int{15, 30, 60},
	},
	models.UrgencyMedium: {
		ResponseTimeBudgetSeconds: 900,
		NotifyEmergencyContacts:   true,
		IncreaseMonitoring:        true,
		SendSMS:                   true,
		SendPush:                  true,
		EscalationLevels:          1,
		FollowUpIntervalsMinutes:  []int{30, 60, 120},
	},
	models.UrgencyLow: {
		ResponseTimeBudgetSeconds: 3600,
		NotifyEmergencyContacts:   true,
		SendPush:                  true,
		EscalationLevels:          1,
		FollowUpIntervalsMinutes:  []int{60, 240},
	},
}

// classificationPolicy overrides a base protocol. Flags can only switch
// behaviour on, and the budget can only shrink.
type classificationPolicy struct {
	MedicalCode         string
	BudgetSeconds       int
	AutoCallEMS         bool
	AlertProviders      bool
	RequireConsultation bool
}

var classificationPolicies = map[models.Classification]classificationPolicy{
	models.ClassificationCardiacArrest:       {MedicalCode: "I46.9", BudgetSeconds: 60, AutoCallEMS: true, AlertProviders: true, RequireConsultation: true},
	models.ClassificationCardiacArrhythmia:   {MedicalCode: "I49.9", BudgetSeconds: 300, AlertProviders: true, RequireConsultation: true},
	models.ClassificationHypertensiveCrisis:  {MedicalCode: "I16.9", BudgetSeconds: 300, AlertProviders: true, RequireConsultation: true},
	models.ClassificationHypotension:         {MedicalCode: "I95.9", BudgetSeconds: 300, AlertProviders: true},
	models.ClassificationHypoglycemia:        {MedicalCode: "E16.2", BudgetSeconds: 120, AlertProviders: true},
	models.ClassificationHyperglycemia:       {MedicalCode: "R73.9", BudgetSeconds: 600, AlertProviders: true},
	models.ClassificationSevereHypoxemia:     {MedicalCode: "R09.02", BudgetSeconds: 60, AutoCallEMS: true, AlertProviders: true},
	models.ClassificationRespiratoryDistress: {MedicalCode: "R06.03", BudgetSeconds: 120, AlertProviders: true, RequireConsultation: true},
	models.ClassificationHyperthermia:        {MedicalCode: "R50.9", BudgetSeconds: 300, AlertProviders: true},
	models.ClassificationStroke:              {MedicalCode: "I63.9", BudgetSeconds: 60, AutoCallEMS: true, AlertProviders: true, RequireConsultation: true},
}

type Resolver struct {
	now        func() time.Time
	loc        *time.Location
	nightStart int
	nightEnd   int
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithNightWindow sets the night hours [start, end); the window may wrap
// past midnight.
func WithNightWindow(start, end int) Option {
	return func(r *Resolver) {
		r.nightStart = start
		r.nightEnd = end
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		now:        time.Now,
		loc:        time.UTC,
		nightStart: 22,
		nightEnd:   6,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds the response protocol for one alert: the urgency tier,
// then the classification override, then every contextual modifier.
func (r *Resolver) Resolve(urgency models.UrgencyLevel, classification models.Classification, h models.HealthData) models.ResponseProtocol {
	p := base(urgency)

	if policy, ok := classificationPolicies[classification]; ok {
		p.Classification = classification
		p.MedicalCode = policy.MedicalCode
		if policy.BudgetSeconds < p.ResponseTimeBudgetSeconds {
			p.ResponseTimeBudgetSeconds = policy.BudgetSeconds
		}
		p.AutoCallEMS = p.AutoCallEMS || policy.AutoCallEMS
		p.AlertProviders = p.AlertProviders || policy.AlertProviders
		p.RequireConsultation = p.RequireConsultation || policy.RequireConsultation
	}

	// Each modifier reads only fields set before this point, so the three
	// are independent of each other and all of them always run.
	multipleAbnormal := assessment.AbnormalCount(h) >= 3
	night := r.isNight()
	elderly := assessment.IsElderlyProxy(h)
	emsForced := p.AutoCallEMS

	if multipleAbnormal {
		p.EscalationLevels++
		p.ResponseTimeBudgetSeconds = halveBudget(p.ResponseTimeBudgetSeconds)
		p.RequireConsultation = true
	}
	if night {
		p.EscalationLevels++
		if !emsForced {
			p.AlertProviders = true
		}
	}
	if elderly {
		p.EscalationLevels++
		for i, m := range p.FollowUpIntervalsMinutes {
			p.FollowUpIntervalsMinutes[i] = max(m/2, 1)
		}
	}

	return p
}

func (r *Resolver) isNight() bool {
	hour := r.now().In(r.loc).Hour()
	if r.nightStart == r.nightEnd {
		return false
	}
	if r.nightStart < r.nightEnd {
		return hour >= r.nightStart && hour < r.nightEnd
	}
	return hour >= r.nightStart || hour < r.nightEnd
}

// base copies the tier protocol so callers never share the follow-up slice.
func base(urgency models.UrgencyLevel) models.ResponseProtocol {
	p, ok := baseProtocols[urgency]
	if !ok {
		urgency = models.UrgencyLow
		p = baseProtocols[urgency]
	}
	p.UrgencyLevel = urgency
	p.FollowUpIntervalsMinutes = append([]int(nil), p.FollowUpIntervalsMinutes...)
	return p
}

func halveBudget(seconds int) int {
	return max(seconds/2, minResponseBudgetSeconds)
}

// VoiceAllowed reports whether voice calls may be placed for an alert.
// Voice is reserved for CRITICAL alerts.
func VoiceAllowed(p models.ResponseProtocol) bool {
	return p.UrgencyLevel == models.UrgencyCritical && p.SendVoice
}
