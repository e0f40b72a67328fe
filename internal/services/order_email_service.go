package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

const (
	SnippetPaymentInstructions = "email_payment_instructions"
	SnippetFooter              = "email_footer"

	emailKindPlaced   = "placed"
	emailKindPaid     = "paid"
	emailKindCanceled = "canceled"
)

// MessageLocalizer renders catalog strings, amounts and dates for a locale.
type MessageLocalizer interface {
	Resolve(preferred string, fallback string) string
	Text(locale string, key string, args ...any) string
	Money(locale string, amount Money) string
	Date(locale string, t time.Time) string
}

// SnippetScopes decides which scope owns the email snippets.
type SnippetScopes struct {
	PaymentInstructions domain.SnippetScopeType
	Footer              domain.SnippetScopeType
}

// OrderEmailServiceDeps bundles collaborators required to construct the email service.
type OrderEmailServiceDeps struct {
	Orders    repositories.OrderRepository
	Shops     repositories.ShopRepository
	Brands    repositories.BrandRepository
	Users     UserDirectory
	Snippets  SnippetLookup
	Localizer MessageLocalizer
	Mailer    Mailer
	Scopes    SnippetScopes
	Timezone  *time.Location
	Clock     func() time.Time
	Logger    ServiceLogger
}

type orderEmailService struct {
	orders    repositories.OrderRepository
	shops     repositories.ShopRepository
	brands    repositories.BrandRepository
	users     UserDirectory
	snippets  SnippetLookup
	localizer MessageLocalizer
	mailer    Mailer
	scopes    SnippetScopes
	location  *time.Location
	clock     func() time.Time
	logger    ServiceLogger
}

var _ OrderEmailService = (*orderEmailService)(nil)

// NewOrderEmailService wires the assembler for order notification emails.
func NewOrderEmailService(deps OrderEmailServiceDeps) (OrderEmailService, error) {
	if deps.Orders == nil || deps.Shops == nil || deps.Brands == nil {
		return nil, errors.New("order email service: order, shop and brand repositories are required")
	}
	if deps.Users == nil {
		return nil, errors.New("order email service: user directory is required")
	}
	if deps.Snippets == nil {
		return nil, errors.New("order email service: snippet lookup is required")
	}
	if deps.Localizer == nil {
		return nil, errors.New("order email service: localizer is required")
	}
	scopes := deps.Scopes
	if scopes.PaymentInstructions == "" {
		scopes.PaymentInstructions = domain.SnippetScopeShop
	}
	if scopes.Footer == "" {
		scopes.Footer = domain.SnippetScopeBrand
	}
	location := deps.Timezone
	if location == nil {
		location = time.UTC
	}
	return &orderEmailService{
		orders:    deps.Orders,
		shops:     deps.Shops,
		brands:    deps.Brands,
		users:     deps.Users,
		snippets:  deps.Snippets,
		localizer: deps.Localizer,
		mailer:    deps.Mailer,
		scopes:    scopes,
		location:  location,
		clock:     defaultClock(deps.Clock),
		logger:    defaultLogger(deps.Logger),
	}, nil
}

// emailContext is everything an assembled message depends on.
type emailContext struct {
	order     Order
	shop      Shop
	brand     Brand
	recipient User
	locale    string
}

func (s *orderEmailService) AssemblePlacedEmail(ctx context.Context, order Order) (EmailMessage, error) {
	ec, err := s.load(ctx, order)
	if err != nil {
		return EmailMessage{}, err
	}
	return s.assemble(ctx, emailKindPlaced, ec)
}

func (s *orderEmailService) AssemblePaidEmail(ctx context.Context, order Order) (EmailMessage, error) {
	ec, err := s.load(ctx, order)
	if err != nil {
		return EmailMessage{}, err
	}
	return s.assemble(ctx, emailKindPaid, ec)
}

func (s *orderEmailService) AssembleCanceledEmail(ctx context.Context, order Order) (EmailMessage, error) {
	ec, err := s.load(ctx, order)
	if err != nil {
		return EmailMessage{}, err
	}
	return s.assemble(ctx, emailKindCanceled, ec)
}

func (s *orderEmailService) SendPlacedEmail(ctx context.Context, orderID string) error {
	return s.send(ctx, orderID, s.AssemblePlacedEmail)
}

func (s *orderEmailService) SendPaidEmail(ctx context.Context, orderID string) error {
	return s.send(ctx, orderID, s.AssemblePaidEmail)
}

func (s *orderEmailService) SendCanceledEmail(ctx context.Context, orderID string) error {
	return s.send(ctx, orderID, s.AssembleCanceledEmail)
}

func (s *orderEmailService) send(ctx context.Context, orderID string, assemble func(context.Context, Order) (EmailMessage, error)) error {
	if s.mailer == nil {
		return errors.New("order email service: mailer is not configured")
	}
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return repositoryErrorMapping{notFound: ErrUnknownOrder, scope: "order email"}.mapError(err)
	}
	message, err := assemble(ctx, order)
	if err != nil {
		return err
	}
	return s.mailer.Enqueue(ctx, message)
}

// ExampleMessages renders all three emails for a synthetic order of the
// shop. Nothing is persisted or sent.
func (s *orderEmailService) ExampleMessages(ctx context.Context, shopID string, locale string) (map[string]EmailMessage, error) {
	shop, err := s.shops.FindByID(ctx, strings.TrimSpace(shopID))
	if err != nil {
		return nil, repositoryErrorMapping{notFound: ErrUnknownShop, scope: "order email"}.mapError(err)
	}
	brand, err := s.brands.FindByID(ctx, shop.BrandID)
	if err != nil {
		return nil, repositoryErrorMapping{notFound: ErrUnknownBrand, scope: "order email"}.mapError(err)
	}

	order := exampleOrder(shop, s.clock())
	ec := emailContext{
		order: order,
		shop:  shop,
		brand: brand,
		recipient: User{
			ID:           order.Orderer.UserID,
			ScreenName:   "Example",
			EmailAddress: "example@example.com",
		},
		locale: s.localizer.Resolve(locale, brand.DefaultLocale),
	}

	messages := make(map[string]EmailMessage, 3)
	for _, kind := range []string{emailKindPlaced, emailKindPaid, emailKindCanceled} {
		message, err := s.assemble(ctx, kind, ec)
		if err != nil {
			return nil, err
		}
		messages[kind] = message
	}
	return messages, nil
}

func exampleOrder(shop Shop, now time.Time) Order {
	price := domain.MustMoney("24.95", shop.Currency)
	reason := "Not paid in time."
	return Order{
		ID:          "example-order",
		ShopID:      shop.ID,
		OrderNumber: "EXAMPLE-00001",
		CreatedAt:   now,
		Orderer:     Orderer{UserID: "example-user", FirstName: "Example", LastName: "Orderer"},
		LineItems: []LineItem{{
			ID:            "example-line",
			OrderNumber:   "EXAMPLE-00001",
			ArticleNumber: "EXAMPLE-A-00001",
			Description:   "Example article",
			UnitPrice:     price,
			Quantity:      2,
			LineAmount:    price.Mul(2),
		}},
		TotalAmount:        price.Mul(2),
		PaymentState:       domain.PaymentStateOpen,
		CancellationReason: &reason,
	}
}

func (s *orderEmailService) load(ctx context.Context, order Order) (emailContext, error) {
	shop, err := s.shops.FindByID(ctx, order.ShopID)
	if err != nil {
		return emailContext{}, repositoryErrorMapping{notFound: ErrUnknownShop, scope: "order email"}.mapError(err)
	}
	brand, err := s.brands.FindByID(ctx, shop.BrandID)
	if err != nil {
		return emailContext{}, repositoryErrorMapping{notFound: ErrUnknownBrand, scope: "order email"}.mapError(err)
	}
	user, err := s.users.GetUser(ctx, order.Orderer.UserID)
	if err != nil {
		return emailContext{}, err
	}
	if user.Deleted || strings.TrimSpace(user.EmailAddress) == "" {
		return emailContext{}, fmt.Errorf("%w: user %s has no deliverable email address", ErrUnknownUser, user.ID)
	}
	return emailContext{
		order:     order,
		shop:      shop,
		brand:     brand,
		recipient: user,
		locale:    s.localizer.Resolve(user.Locale, brand.DefaultLocale),
	}, nil
}

func (s *orderEmailService) assemble(ctx context.Context, kind string, ec emailContext) (EmailMessage, error) {
	l := s.localizer
	order := ec.order
	orderDate := l.Date(ec.locale, order.CreatedAt.In(s.location))

	var subject string
	var main []string
	switch kind {
	case emailKindPlaced:
		instructions, err := s.paymentInstructions(ctx, ec)
		if err != nil {
			return EmailMessage{}, err
		}
		subject = l.Text(ec.locale, "placed_subject", order.OrderNumber)
		main = append(main,
			l.Text(ec.locale, "placed_intro", order.OrderNumber, orderDate),
			l.Text(ec.locale, "placed_items_header"),
		)
		for _, item := range order.LineItemsByDescription() {
			main = append(main, strings.Join([]string{
				"  " + l.Text(ec.locale, "item_description", item.Description),
				"  " + l.Text(ec.locale, "item_quantity", item.Quantity),
				"  " + l.Text(ec.locale, "item_unit_price", l.Money(ec.locale, item.UnitPrice)),
				"  " + l.Text(ec.locale, "item_line_amount", l.Money(ec.locale, item.LineAmount)),
			}, "\n"))
		}
		main = append(main, "  "+l.Text(ec.locale, "total_amount", l.Money(ec.locale, order.TotalAmount)), instructions)
	case emailKindPaid:
		subject = l.Text(ec.locale, "paid_subject", order.OrderNumber)
		main = append(main,
			l.Text(ec.locale, "paid_intro", order.OrderNumber, orderDate),
			l.Text(ec.locale, "paid_confirmation"),
		)
	case emailKindCanceled:
		reason := ""
		if order.CancellationReason != nil {
			reason = *order.CancellationReason
		}
		subject = l.Text(ec.locale, "canceled_subject", order.OrderNumber)
		main = append(main,
			l.Text(ec.locale, "canceled_intro", order.OrderNumber, orderDate),
			reason,
		)
	default:
		return EmailMessage{}, fmt.Errorf("order email: unknown kind %q", kind)
	}

	footer, err := s.lookupSnippet(ctx, s.scopes.Footer, ec, SnippetFooter)
	if err != nil {
		return EmailMessage{}, err
	}

	paragraphs := make([]string, 0, len(main)+2)
	paragraphs = append(paragraphs, l.Text(ec.locale, "greeting", ec.recipient.ScreenName))
	paragraphs = append(paragraphs, main...)
	paragraphs = append(paragraphs, strings.TrimSpace(footer))

	return EmailMessage{
		Sender:     ec.brand.EmailSender,
		Recipients: []string{ec.recipient.EmailAddress},
		Subject:    subject,
		Body:       strings.Join(paragraphs, "\n\n") + "\n",
	}, nil
}

type paymentInstructionsData struct {
	OrderNumber string
	TotalAmount string
}

func (s *orderEmailService) paymentInstructions(ctx context.Context, ec emailContext) (string, error) {
	body, err := s.lookupSnippet(ctx, s.scopes.PaymentInstructions, ec, SnippetPaymentInstructions)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(SnippetPaymentInstructions).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("order email: parse %s snippet: %w", SnippetPaymentInstructions, err)
	}
	var out strings.Builder
	data := paymentInstructionsData{
		OrderNumber: ec.order.OrderNumber,
		TotalAmount: s.localizer.Money(ec.locale, ec.order.TotalAmount),
	}
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("order email: render %s snippet: %w", SnippetPaymentInstructions, err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (s *orderEmailService) lookupSnippet(ctx context.Context, scope domain.SnippetScopeType, ec emailContext, name string) (string, error) {
	scopeID := ec.shop.ID
	if scope == domain.SnippetScopeBrand {
		scopeID = ec.brand.ID
	}
	body, err := s.snippets.Lookup(ctx, SnippetKey{ScopeType: scope, ScopeID: scopeID, Name: name, Locale: ec.locale})
	if err != nil {
		if errors.Is(err, ErrSnippetNotFound) {
			s.logger(ctx, "order.email.snippet.missing", map[string]any{
				"scope":  string(scope) + ":" + scopeID,
				"name":   name,
				"locale": ec.locale,
			})
		}
		return "", err
	}
	return body, nil
}

// OrderEmailNotifier sends order emails when order events arrive.
type OrderEmailNotifier struct {
	emails OrderEmailService
	logger ServiceLogger
}

// NewOrderEmailNotifier returns a subscriber for the order event bus.
func NewOrderEmailNotifier(emails OrderEmailService, logger ServiceLogger) (*OrderEmailNotifier, error) {
	if emails == nil {
		return nil, errors.New("order email notifier: email service is required")
	}
	return &OrderEmailNotifier{emails: emails, logger: defaultLogger(logger)}, nil
}

// HandleEvent sends the email matching the event. Failures are logged and
// returned but never touch the order.
func (n *OrderEmailNotifier) HandleEvent(ctx context.Context, event ShopOrderEvent) error {
	orderID := event.Base().OrderID
	var err error
	switch event.(type) {
	case ShopOrderPlaced:
		err = n.emails.SendPlacedEmail(ctx, orderID)
	case ShopOrderPaid:
		err = n.emails.SendPaidEmail(ctx, orderID)
	case ShopOrderCanceled:
		err = n.emails.SendCanceledEmail(ctx, orderID)
	default:
		return nil
	}
	if err != nil {
		n.logger(ctx, "order.email.failed", map[string]any{
			"event":   event.EventName(),
			"orderId": orderID,
			"error":   err.Error(),
		})
	}
	return err
}
