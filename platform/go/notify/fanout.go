package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// VisitorEvent carries everything the channels need to announce a visitor
// lifecycle change. Field values are logged verbatim on failure so a
// delivery can be replayed by hand.
type VisitorEvent struct {
	SocietyID     string
	FlatID        string
	FlatNo        string
	VisitorID     string
	VisitorType   string
	VisitorPhone  string
	Status        string
	ResidentName  string
	ResidentPhone string
}

// FanoutConfig tunes the optional direct-message channel.
type FanoutConfig struct {
	// ApprovalTemplate names the pre-approved WhatsApp template used for
	// new-visitor announcements. Empty disables the template path in favor
	// of free text.
	ApprovalTemplate string
	// TemplateLang is the template language code (default "en").
	TemplateLang string
}

// Fanout dispatches lifecycle events across the configured channels. Every
// channel is attempted independently; one failure never blocks another, and
// nothing propagates to the triggering caller.
type Fanout struct {
	publisher Publisher
	messenger Messenger
	cfg       FanoutConfig
	logger    *zap.Logger
}

// NewFanout constructs a Fanout. The publisher is required; the messenger
// may be nil when the direct-message channel is not configured.
func NewFanout(publisher Publisher, messenger Messenger, cfg FanoutConfig, logger *zap.Logger) *Fanout {
	if publisher == nil {
		panic("notification publisher is required")
	}
	if cfg.TemplateLang == "" {
		cfg.TemplateLang = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{publisher: publisher, messenger: messenger, cfg: cfg, logger: logger}
}

// Topics derives the routing keys for a unit: the canonical topic plus the
// legacy id-based topic when it differs.
func (f *Fanout) Topics(event VisitorEvent) []string {
	canonical := Topic(event.SocietyID, event.FlatNo)
	topics := []string{canonical}
	if event.FlatID != "" {
		if legacy := LegacyTopic(event.SocietyID, event.FlatID); legacy != canonical {
			topics = append(topics, legacy)
		}
	}
	return topics
}

// VisitorCreated announces a new pending entry to the unit's resident
// topics and, when configured, via direct message. Returns whether at least
// one channel succeeded.
func (f *Fanout) VisitorCreated(ctx context.Context, event VisitorEvent) bool {
	title := "Visitor at the gate"
	body := fmt.Sprintf("%s visitor for flat %s is waiting for approval", event.VisitorType, event.FlatNo)

	delivered := f.publish(ctx, event, title, body)

	if f.messenger != nil && event.ResidentPhone != "" {
		var err error
		if f.cfg.ApprovalTemplate != "" {
			err = f.messenger.SendTemplate(ctx, event.ResidentPhone, f.cfg.ApprovalTemplate, f.cfg.TemplateLang,
				event.FlatNo, event.VisitorType, event.VisitorPhone, event.VisitorID)
		} else {
			err = f.messenger.SendText(ctx, event.ResidentPhone,
				fmt.Sprintf("Visitor (%s, %s) at the gate for flat %s. Open the app to approve or reject.",
					event.VisitorType, event.VisitorPhone, event.FlatNo))
		}
		if err != nil {
			f.logFailure("direct message", event, err)
		} else {
			delivered = true
		}
	}

	if !delivered {
		f.logger.Warn("visitor created event reached no channel",
			zap.String("visitor_id", event.VisitorID),
			zap.String("tenant", event.SocietyID))
	}
	return delivered
}

// VisitorDecided announces a status transition to the unit's topics.
// Returns whether at least one channel succeeded.
func (f *Fanout) VisitorDecided(ctx context.Context, event VisitorEvent) bool {
	title := fmt.Sprintf("Visitor %s", event.Status)
	body := fmt.Sprintf("Entry for flat %s is now %s", event.FlatNo, event.Status)
	return f.publish(ctx, event, title, body)
}

func (f *Fanout) publish(ctx context.Context, event VisitorEvent, title, body string) bool {
	data := map[string]string{
		"visitor_id":   event.VisitorID,
		"flat_no":      event.FlatNo,
		"visitor_type": event.VisitorType,
		"status":       event.Status,
	}

	delivered := false
	for _, topic := range f.Topics(event) {
		if err := f.publisher.SendToTopic(ctx, topic, title, body, data, DefaultSound); err != nil {
			f.logFailure("topic "+topic, event, err)
			continue
		}
		delivered = true
	}
	return delivered
}

func (f *Fanout) logFailure(channel string, event VisitorEvent, err error) {
	f.logger.Error("notification delivery failed",
		zap.String("channel", channel),
		zap.String("visitor_id", event.VisitorID),
		zap.String("tenant", event.SocietyID),
		zap.String("flat_no", event.FlatNo),
		zap.String("visitor_type", event.VisitorType),
		zap.String("status", event.Status),
		zap.Error(err),
	)
}
