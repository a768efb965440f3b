package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"storefront/internal/inventory"

	"github.com/9ssi7/exponent"
	"go.uber.org/zap"
)

// AlertRoles receive low-stock alerts.
var AlertRoles = []string{"owner", "admin"}

type RecipientLookup interface {
	PrincipalsWithRoles(ctx context.Context, tenantID int64, roles []string) ([]int64, error)
}

type TokenLookup interface {
	GetTokensByPrincipalIDs(ctx context.Context, principalIDs []int64) (map[int64][]string, error)
}

func byTenant(events []inventory.LowStockEvent) ([]int64, map[int64][]inventory.LowStockEvent) {
	grouped := make(map[int64][]inventory.LowStockEvent)
	for _, ev := range events {
		grouped[ev.TenantID] = append(grouped[ev.TenantID], ev)
	}
	ids := make([]int64, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, grouped
}

func alertText(ev inventory.LowStockEvent) (string, string) {
	if ev.Status == inventory.StatusOutOfStock {
		return "Out of stock", fmt.Sprintf("Product %d is out of stock", ev.ProductID)
	}
	return "Low stock", fmt.Sprintf("Product %d is down to %d (threshold %d)", ev.ProductID, ev.OnHand, ev.Threshold)
}

// ExpoNotifier pushes low-stock alerts to tenant administrators' devices.
type ExpoNotifier struct {
	push       PushSender
	recipients RecipientLookup
	tokens     TokenLookup
}

func NewExpoNotifier(push PushSender, recipients RecipientLookup, tokens TokenLookup) *ExpoNotifier {
	return &ExpoNotifier{push: push, recipients: recipients, tokens: tokens}
}

func (n *ExpoNotifier) NotifyLowStock(ctx context.Context, events []inventory.LowStockEvent) error {
	tenants, grouped := byTenant(events)

	var errs []error
	for _, tenantID := range tenants {
		admins, err := n.recipients.PrincipalsWithRoles(ctx, tenantID, AlertRoles)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tokensMap, err := n.tokens.GetTokensByPrincipalIDs(ctx, admins)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		var msgs []*exponent.Message
		for _, pid := range admins {
			for _, t := range tokensMap[pid] {
				for _, ev := range grouped[tenantID] {
					// wrap the string token in exponent.Token
					token := exponent.Token(t)
					title, body := alertText(ev)
					msgs = append(msgs, &exponent.Message{
						To:    []*exponent.Token{&token},
						Title: title,
						Body:  body,
						Data: map[string]string{
							"type":      "low_stock",
							"tenantId":  strconv.FormatInt(ev.TenantID, 10),
							"productId": strconv.FormatInt(ev.ProductID, 10),
							"status":    string(ev.Status),
							"screen":    "inventory-screen",
						},
					})
				}
			}
		}
		if len(msgs) == 0 {
			continue
		}
		if _, err := n.push.Publish(ctx, msgs); err != nil {
			errs = append(errs, fmt.Errorf("tenant %d: %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}

// MailNotifier emails a digest of low-stock events to a fixed list.
type MailNotifier struct {
	mail MailSender
	to   []string
}

// LowStockTemplate matches the template shipped with internal/mailer.
const LowStockTemplate = "low_stock.tmpl"

func NewMailNotifier(mail MailSender, to []string) *MailNotifier {
	return &MailNotifier{mail: mail, to: to}
}

func (n *MailNotifier) NotifyLowStock(ctx context.Context, events []inventory.LowStockEvent) error {
	if len(n.to) == 0 || len(events) == 0 {
		return nil
	}
	tenants, grouped := byTenant(events)
	var errs []error
	for _, tenantID := range tenants {
		data := struct {
			TenantID int64
			Events   []inventory.LowStockEvent
		}{tenantID, grouped[tenantID]}
		if err := n.mail.Send(ctx, LowStockTemplate, n.to, data); err != nil {
			errs = append(errs, fmt.Errorf("tenant %d: %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the log. It is the fallback when no push or
// mail channel is configured.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyLowStock(_ context.Context, events []inventory.LowStockEvent) error {
	for _, ev := range events {
		n.logger.Warnw("low stock", "tenant_id", ev.TenantID, "product_id", ev.ProductID,
			"on_hand", ev.OnHand, "threshold", ev.Threshold, "status", ev.Status)
	}
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []inventory.Notifier

func (f Fanout) NotifyLowStock(ctx context.Context, events []inventory.LowStockEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyLowStock(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
