package whatsapp_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/familypark/playzone/go/clients"
)

// WhatsAppClient sends pre-approved template messages through the WhatsApp
// Cloud API. It is fire-and-forget: no delivery receipts are consumed.
type WhatsAppClient struct {
	*clients.BaseClient
	phoneNumberID string
}

func NewWhatsAppClient(accessToken, phoneNumberID string) *WhatsAppClient {
	client := &WhatsAppClient{
		BaseClient:    clients.NewBaseClient(BaseURL),
		phoneNumberID: phoneNumberID,
	}

	client.SetHeader("Authorization", "Bearer "+accessToken)
	client.SetHeader("Content-Type", "application/json")

	return client
}

type templateMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         template `json:"template"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTemplate posts one template message to the given destination phone.
// variables fill the template body placeholders in order.
func (c *WhatsAppClient) SendTemplate(ctx context.Context, templateName, to string, variables ...string) error {
	params := make([]parameter, len(variables))
	for i, v := range variables {
		params[i] = parameter{Type: "text", Text: v}
	}

	msg := templateMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: template{
			Name:     templateName,
			Language: language{Code: TemplateLanguage},
			Components: []component{
				{Type: "body", Parameters: params},
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal template message: %w", err)
	}

	endpoint := fmt.Sprintf(MessagesEndpoint, c.phoneNumberID)
	if _, err := c.Post(ctx, endpoint, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to send template %q: %w", templateName, err)
	}

	return nil
}
