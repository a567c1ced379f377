package whatsapp_client

import (
	"context"
	"strconv"
)

// SendStartTurn notifies the guardian that a play turn has begun.
func (c *WhatsAppClient) SendStartTurn(ctx context.Context, phone, childName, zoneName string, minutes int) error {
	return c.SendTemplate(ctx, TemplateStartTurn, phone, childName, zoneName, strconv.Itoa(minutes))
}

// SendWarning notifies the guardian that three minutes remain.
func (c *WhatsAppClient) SendWarning(ctx context.Context, phone, childName, zoneName string) error {
	return c.SendTemplate(ctx, TemplateWarning, phone, childName, zoneName)
}

// SendEndTurn notifies the guardian that the turn is over.
func (c *WhatsAppClient) SendEndTurn(ctx context.Context, phone, childName, zoneName string) error {
	return c.SendTemplate(ctx, TemplateEndTurn, phone, childName, zoneName)
}
