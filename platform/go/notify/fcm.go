package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// androidChannelID matches the notification channel registered by the
// mobile apps; messages on other channels stay silent on Android 8+.
const androidChannelID = "sentinel_channel"

// FCMPublisher sends topic notifications through Firebase Cloud Messaging.
type FCMPublisher struct {
	client *messaging.Client
}

// NewFCMPublisher initializes the Firebase app and its messaging client. An
// empty credentials file falls back to application default credentials.
func NewFCMPublisher(ctx context.Context, credentialsFile string) (*FCMPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}

	return &FCMPublisher{client: client}, nil
}

func (p *FCMPublisher) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string, sound string) error {
	if sound == "" {
		sound = DefaultSound
	}
	badge := 1

	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     sound,
				ChannelID: androidChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: sound + ".caf",
					Badge: &badge,
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
				},
			},
		},
	}

	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send to %s: %w", topic, err)
	}
	return nil
}
