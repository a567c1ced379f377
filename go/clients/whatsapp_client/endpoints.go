package whatsapp_client

const (
	// Base URL
	BaseURL = "https://graph.facebook.com/v20.0"

	// Endpoint pattern: /<phone-number-id>/messages
	MessagesEndpoint = "/%s/messages"

	// Template language
	TemplateLanguage = "es_ES"

	// Template names
	TemplateStartTurn = "inicio_turno_fpt"
	TemplateWarning   = "aviso_restante_fpt"
	TemplateEndTurn   = "turno_finalizado_fpt"
)
