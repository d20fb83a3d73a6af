// Package client holds the service's boundary collaborators.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes approval workflow events to NATS
// JetStream for consumption by the notifications service.
//
// Subject convention: notifications.procurement.<event_type>
// Event types: requirement_submitted, approval_required,
// requirement_approved, requirement_rejected, requirement_recalled,
// stage_overdue.
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt approval
// operations.
type NotificationPublisher struct {
	js  nats.JetStreamContext
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	CompanyID    string         `json:"company_id"`
	ActorID      string         `json:"actor_id"`
	Recipients   []string       `json:"recipients,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IsActionable bool           `json:"is_actionable,omitempty"`
	Severity     string         `json:"severity,omitempty"`
	Category     string         `json:"category,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher connects to NATS and returns a publisher. An
// empty URL returns a disabled publisher that drops all events.
func NewNotificationPublisher(url string, log zerolog.Logger) (*NotificationPublisher, error) {
	if url == "" {
		log.Info().Msg("NATS_URL not set; notification publishing disabled")
		return &NotificationPublisher{log: log}, nil
	}

	nc, err := nats.Connect(url,
		nats.Name("be-procurement-approvals"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open JetStream context: %w", err)
	}
	return &NotificationPublisher{js: js, log: log}, nil
}

// PublishApprovalEvent publishes a procurement approval event.
// Subject: notifications.procurement.<eventType>
func (p *NotificationPublisher) PublishApprovalEvent(
	ctx context.Context,
	eventType, requirementID, companyID, actorID string,
	recipients []string,
	payload map[string]any,
) {
	if p.js == nil {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		CompanyID:    companyID,
		ActorID:      actorID,
		Recipients:   recipients,
		ResourceType: "requirement",
		ResourceID:   requirementID,
		IsActionable: eventType == "approval_required" || eventType == "stage_overdue",
		Severity:     "info",
		Category:     "procurement_approval",
		Payload:      payload,
	}
	if eventType == "stage_overdue" {
		event.Severity = "warning"
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.procurement.%s", eventType)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("requirement_id", requirementID).
			Msg("notification: publish failed")
	}
}
