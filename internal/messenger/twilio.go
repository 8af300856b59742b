package messenger

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/pkg/config"
)

// Sender delivers an outbound WhatsApp message.
type Sender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

type configStore interface {
	Get(ctx context.Context, key, fallback string) (string, error)
}

// ResolveCredentials applies system_config overrides on top of the
// environment-provided Twilio settings.
func ResolveCredentials(ctx context.Context, store configStore, cfg config.TwilioConfig) (config.TwilioConfig, error) {
	var err error
	if cfg.AccountSID, err = store.Get(ctx, models.ConfigTwilioAccountSID, cfg.AccountSID); err != nil {
		return cfg, fmt.Errorf("resolve twilio credentials: %w", err)
	}
	if cfg.AuthToken, err = store.Get(ctx, models.ConfigTwilioAuthToken, cfg.AuthToken); err != nil {
		return cfg, fmt.Errorf("resolve twilio credentials: %w", err)
	}
	if cfg.WhatsAppNumber, err = store.Get(ctx, models.ConfigTwilioWhatsAppNumber, cfg.WhatsAppNumber); err != nil {
		return cfg, fmt.Errorf("resolve twilio credentials: %w", err)
	}
	return cfg, nil
}

// TwilioMessenger sends WhatsApp messages through the Twilio REST API and
// validates inbound webhook signatures.
type TwilioMessenger struct {
	client    *twilio.RestClient
	validator twilioClient.RequestValidator
	from      string
	validate  bool
	logger    *zap.Logger
}

// NewTwilioMessenger constructs a TwilioMessenger. With no WhatsApp number
// configured it logs outbound messages instead of sending them, which keeps
// local development working without credentials.
func NewTwilioMessenger(cfg config.TwilioConfig, logger *zap.Logger) *TwilioMessenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioMessenger{
		client:    client,
		validator: twilioClient.NewRequestValidator(cfg.AuthToken),
		from:      cfg.WhatsAppNumber,
		validate:  cfg.ValidateWebhook,
		logger:    logger,
	}
}

// SendWhatsApp implements Sender.
func (m *TwilioMessenger) SendWhatsApp(ctx context.Context, to, body string) error {
	if m.from == "" {
		m.logger.Sugar().Infow("mock whatsapp send", "to", to, "body", body)
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(whatsAppAddress(m.from))
	params.SetTo(whatsAppAddress(to))
	params.SetBody(body)

	if _, err := m.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	m.logger.Sugar().Debugw("whatsapp message sent", "to", to)
	return nil
}

// ValidRequest checks the Twilio webhook signature. Validation can be
// switched off for local development.
func (m *TwilioMessenger) ValidRequest(url string, form map[string]string, signature string) bool {
	if !m.validate {
		return true
	}
	return m.validator.Validate(url, form, signature)
}

// whatsAppAddress ensures a single whatsapp: prefix on the address.
func whatsAppAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
