package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WhatsAppConfig carries the Cloud API credentials for business-initiated
// messages.
type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	// APIVersion defaults to "v21.0".
	APIVersion string
	// Timeout bounds every outbound call. Defaults to 20s.
	Timeout time.Duration
}

// WhatsAppMessenger implements Messenger against the Meta Graph API.
type WhatsAppMessenger struct {
	http    *resty.Client
	baseURL string
}

// NewWhatsAppMessenger constructs a messenger. Token and phone number id are
// required; everything else has defaults.
func NewWhatsAppMessenger(cfg WhatsAppConfig) (*WhatsAppMessenger, error) {
	if cfg.Token == "" || cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp token and phone number id are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v21.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Token).
		SetHeader("Content-Type", "application/json")

	return &WhatsAppMessenger{
		http:    client,
		baseURL: fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", cfg.APIVersion, cfg.PhoneNumberID),
	}, nil
}

// SendText delivers a free-text message. The phone identifier is E.164
// without the leading plus (e.g. "919876543210").
func (m *WhatsAppMessenger) SendText(ctx context.Context, phone, text string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return m.post(ctx, phone, payload)
}

// SendTemplate delivers a pre-approved template with ordered body
// parameters. Business-initiated sends outside the 24h window must use this
// path.
func (m *WhatsAppMessenger) SendTemplate(ctx context.Context, phone, template, lang string, params ...string) error {
	parameters := make([]map[string]string, 0, len(params))
	for _, p := range params {
		parameters = append(parameters, map[string]string{"type": "text", "text": p})
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "template",
		"template": map[string]interface{}{
			"name":     template,
			"language": map[string]string{"code": lang},
			"components": []map[string]interface{}{
				{"type": "body", "parameters": parameters},
			},
		},
	}
	return m.post(ctx, phone, payload)
}

func (m *WhatsAppMessenger) post(ctx context.Context, phone string, payload interface{}) error {
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(m.baseURL)
	if err != nil {
		return fmt.Errorf("whatsapp send to %s: %w", phone, err)
	}
	if resp.IsError() {
		return fmt.Errorf("whatsapp send to %s: status %d: %s", phone, resp.StatusCode(), resp.String())
	}
	return nil
}
