// Package notify fans out visitor lifecycle events to the external
// notification channels. Delivery is strictly best-effort: a channel failure
// is logged with enough context to replay and never reaches the caller that
// triggered the event.
package notify

import "context"

// DefaultSound is the notification sound identifier the mobile apps ship.
const DefaultSound = "notification_sound"

// Publisher delivers a push notification to one topic.
type Publisher interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string, sound string) error
}

// Messenger delivers a direct message to a phone identifier, either free
// text or a pre-approved named template with ordered parameters.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
	SendTemplate(ctx context.Context, phone, template, lang string, params ...string) error
}
