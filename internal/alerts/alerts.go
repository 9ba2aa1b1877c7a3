package alerts

import (
	"context"
	"fmt"
	"html"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Notifier delivers operator alerts when a confirmed chain write and the
// backend fall out of sync.
type Notifier interface {
	NotifyDivergence(ctx context.Context, d Divergence) error
}

// Divergence describes a decision whose chain transaction confirmed but whose
// backend update did not.
type Divergence struct {
	EntryID  uuid.UUID
	FarmerID string
	TokenID  uint64
	Action   string
	TxHash   string
	Detail   string
}

// EmailNotifier sends divergence alerts through Resend.
type EmailNotifier struct {
	client    *resend.Client
	logger    *zap.Logger
	fromEmail string
	toEmail   string
}

// NewEmailNotifier returns a notifier addressed to the operator inbox.
func NewEmailNotifier(apiKey, fromEmail, toEmail string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		client:    resend.NewClient(apiKey),
		logger:    logger,
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

func (n *EmailNotifier) NotifyDivergence(ctx context.Context, d Divergence) error {
	subject := fmt.Sprintf("[ownafarm] reconcile required: %s of invoice #%d", d.Action, d.TokenID)
	body := fmt.Sprintf(
		`<p>A confirmed chain transaction could not be mirrored to the backend.</p>
<ul>
<li>Journal entry: %s</li>
<li>Farmer: %s</li>
<li>Token: %d</li>
<li>Action: %s</li>
<li>Tx hash: %s</li>
<li>Failure: %s</li>
</ul>
<p>The reconciler will retry the backend update. If it keeps failing the
record must be repaired by hand.</p>`,
		d.EntryID, html.EscapeString(d.FarmerID), d.TokenID,
		html.EscapeString(d.Action), html.EscapeString(d.TxHash), html.EscapeString(d.Detail))

	params := &resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      []string{n.toEmail},
		Subject: subject,
		Html:    body,
		Headers: map[string]string{
			"X-Entity-Ref-ID": d.EntryID.String(),
		},
		Tags: []resend.Tag{
			{Name: "category", Value: "reconcile"},
		},
	}

	sent, err := n.client.Emails.Send(params)
	if err != nil {
		n.logger.Error("failed to send divergence alert",
			zap.Error(err),
			zap.String("entry_id", d.EntryID.String()),
			zap.Uint64("token_id", d.TokenID))
		return fmt.Errorf("failed to send divergence alert: %w", err)
	}

	n.logger.Info("divergence alert sent",
		zap.String("email_id", sent.Id),
		zap.String("entry_id", d.EntryID.String()))
	return nil
}

// NopNotifier drops alerts. Used when no alert email is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyDivergence(context.Context, Divergence) error { return nil }

var (
	_ Notifier = (*EmailNotifier)(nil)
	_ Notifier = NopNotifier{}
)
