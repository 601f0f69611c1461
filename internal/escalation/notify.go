// Package escalation provides the Twilio SMS notifier for opened cases.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// Opts holds configuration options for the SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	OnCallTo   string
}

// Option defines a configuration option for the SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithOnCallNumber sets the on-call support phone number to alert.
func WithOnCallNumber(to string) Option {
	return func(o *Opts) { o.OnCallTo = to }
}

// SMSNotifier alerts the on-call support number by SMS when a case opens.
type SMSNotifier struct {
	client *twilio.RestClient
	from   string
	onCall string
}

// NewSMSNotifier creates an SMS notifier. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and
// SUPPORT_ONCALL_NUMBER environment variables.
func NewSMSNotifier(opts ...Option) (*SMSNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.OnCallTo == "" {
		cfg.OnCallTo = os.Getenv("SUPPORT_ONCALL_NUMBER")
	}
	slog.Debug("escalation.NewSMSNotifier: config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "",
		"OnCall_set", cfg.OnCallTo != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" || cfg.OnCallTo == "" {
		return nil, fmt.Errorf("from and on-call numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSNotifier{client: client, from: cfg.FromNumber, onCall: cfg.OnCallTo}, nil
}

// NotifyCaseOpened sends a short SMS with the case id and reason.
func (n *SMSNotifier) NotifyCaseOpened(ctx context.Context, c models.SupportCase) error {
	body := fmt.Sprintf("Support case %s opened for user %s: %s", c.ID, c.UserID, c.Reason)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.onCall)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		slog.Error("escalation.NotifyCaseOpened: SMS send failed", "caseID", c.ID, "error", err)
		return fmt.Errorf("failed to notify on-call for case %s: %w", c.ID, err)
	}
	slog.Debug("escalation.NotifyCaseOpened: SMS sent", "caseID", c.ID)
	return nil
}
