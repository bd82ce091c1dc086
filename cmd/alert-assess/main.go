// Command alert-assess scores a trigger payload offline and prints the
// protocol and escalation plan the engine would use. Nothing is stored or
// sent.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mr1hm/go-emergency-alerts/internal/assessment"
	"github.com/mr1hm/go-emergency-alerts/internal/config"
	"github.com/mr1hm/go-emergency-alerts/internal/logging"
	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/protocol"
)

type report struct {
	SeverityScore  float64                 `json:"severity_score"`
	Classification models.Classification   `json:"classification,omitempty"`
	UrgencyLevel   models.UrgencyLevel     `json:"urgency_level"`
	AbnormalVitals int                     `json:"abnormal_vitals"`
	Protocol       models.ResponseProtocol `json:"protocol"`
	EscalationPlan []models.EscalationStep `json:"escalation_plan"`
}

func main() {
	_ = godotenv.Load()

	file := flag.String("f", "-", "trigger payload JSON file, - for stdin")
	at := flag.String("at", "", "evaluate as of this RFC3339 time (default now)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(logging.Options{Level: cfg.Logging.Level})

	payload, err := readPayload(*file)
	if err != nil {
		logging.Fatalf("Failed to read payload: %v", err)
	}
	if err := payload.Validate(); err != nil {
		logging.Fatalf("Invalid payload: %v", err)
	}

	now := time.Now()
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			logging.Fatalf("Invalid -at time: %v", err)
		}
	}

	loc, _ := time.LoadLocation(cfg.Protocol.Timezone)
	resolver := protocol.NewResolver(
		protocol.WithClock(func() time.Time { return now }),
		protocol.WithLocation(loc),
		protocol.WithNightWindow(cfg.Protocol.NightStart, cfg.Protocol.NightEnd),
	)

	result := assessment.Assess(payload.HealthData, payload.AlertType, payload.UrgencyLevel)
	p := resolver.Resolve(result.Urgency, result.Classification, result.Health)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{
		SeverityScore:  result.SeverityScore,
		Classification: result.Classification,
		UrgencyLevel:   result.Urgency,
		AbnormalVitals: result.AbnormalVitals,
		Protocol:       p,
		EscalationPlan: protocol.Plan(p),
	}); err != nil {
		logging.Fatalf("Failed to write report: %v", err)
	}
}

func readPayload(path string) (models.TriggerPayload, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.TriggerPayload{}, err
		}
		defer f.Close()
		r = f
	}

	var payload models.TriggerPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return payload, fmt.Errorf("decode trigger: %w", err)
	}
	return payload, nil
}
