// Package notify delivers operator alerts over one or more channels
// (Telegram, Discord). Alerts carry an event type so operators can subscribe
// to only the events they care about, e.g. settlements but not fee changes.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Well-known event types emitted by the marketplace.
const (
	EventListingSettled = "listing_settled"
	EventAuctionSettled = "auction_settled"
	EventFeeChanged     = "fee_changed"
	EventError          = "error"
)

// Sender delivers a single formatted alert over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel, e.g. "telegram".
	Name() string
}

// Notifier fans an alert out to every configured Sender. An event filter
// restricts which event types are forwarded; an empty filter forwards
// everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to the given senders. Only events listed
// in events pass the filter; an empty slice disables filtering.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers an alert for the given event type, subject to the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.send(ctx, title, message)
}

// NotifySettlement formats and delivers an alert for a completed sale. The
// event type distinguishes direct purchases from auction settlements.
func (n *Notifier) NotifySettlement(ctx context.Context, event string, rec domain.TransactionRecord) error {
	title := "Listing settled"
	if event == EventAuctionSettled {
		title = "Auction settled"
	}
	message := fmt.Sprintf(
		"asset %s (%s) sold by %s to %s for %s, fee %s",
		rec.AssetID, rec.Category, rec.Seller, rec.Buyer,
		formatCents(rec.Price), formatCents(rec.Fee),
	)
	return n.Notify(ctx, event, title, message)
}

// NotifyError delivers an operational error alert, subject to the filter.
func (n *Notifier) NotifyError(ctx context.Context, op string, err error) error {
	return n.Notify(ctx, EventError, "Marketplace error", fmt.Sprintf("%s: %v", op, err))
}

// send fans the alert out to every sender. One channel failing does not stop
// delivery to the others; failures are collected into a single error.
func (n *Notifier) send(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var failed []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			failed = append(failed, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(failed) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// formatCents renders an int64 cent amount as a dollar string, e.g. 123450
// becomes "$1234.50".
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
