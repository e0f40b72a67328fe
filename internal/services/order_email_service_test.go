package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/i18n"
)

func TestOrderEmailServicePlacedBody(t *testing.T) {
	e := newEngine(t)
	article := e.createArticle(t, "", "24.95", 5)
	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 3})

	message, err := e.emails.AssemblePlacedEmail(context.Background(), order)
	if err != nil {
		t.Fatalf("AssemblePlacedEmail: %v", err)
	}

	want := "Hello Alice,\n\n" +
		"thank you for your order LP-2024-B00001 on Mar 9, 2024 through our website.\n\n" +
		"You have ordered the following items:\n\n" +
		"  Description: Article LP-2024-A00001\n" +
		"  Quantity: 3\n" +
		"  Unit price: €24.95\n" +
		"  Line amount: €74.85\n\n" +
		"  Total amount: €74.85\n\n" +
		"Please transfer €74.85 quoting LP-2024-B00001.\n\n" +
		"Your LAN Party team\n"
	if message.Body != want {
		t.Fatalf("unexpected body:\n%s\nwant:\n%s", message.Body, want)
	}
	if message.Subject != "Your order (LP-2024-B00001) has been received." {
		t.Fatalf("unexpected subject %q", message.Subject)
	}
	if message.Sender.Address != "noreply@lanparty.example" || message.Recipients[0] != "alice@example.com" {
		t.Fatalf("unexpected addressing %+v", message)
	}
}

func TestOrderEmailServiceSortsItemsByDescription(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	zeta := e.createArticle(t, "", "1.00", 5)
	if _, err := e.catalog.UpdateArticle(ctx, UpdateArticleCommand{ArticleID: zeta.ID, Description: valuePtr("Zeta")}); err != nil {
		t.Fatalf("UpdateArticle: %v", err)
	}
	zeta.Description = "Zeta"
	alpha := e.createArticle(t, "", "1.00", 5)
	alpha.Description = "Alpha"
	if _, err := e.catalog.UpdateArticle(ctx, UpdateArticleCommand{ArticleID: alpha.ID, Description: valuePtr("Alpha")}); err != nil {
		t.Fatalf("UpdateArticle: %v", err)
	}

	order := e.mustPlace(t, domain.CartItem{Article: zeta, Quantity: 1}, domain.CartItem{Article: alpha, Quantity: 1})
	message, err := e.emails.AssemblePlacedEmail(ctx, order)
	if err != nil {
		t.Fatalf("AssemblePlacedEmail: %v", err)
	}
	a := strings.Index(message.Body, "Description: Alpha")
	z := strings.Index(message.Body, "Description: Zeta")
	if a < 0 || z < 0 || a > z {
		t.Fatalf("items not sorted by description:\n%s", message.Body)
	}
}

func TestOrderEmailServiceGermanLocale(t *testing.T) {
	e := newEngine(t)
	e.users.Put(User{ID: testOrdererID, ScreenName: "Alice", EmailAddress: "alice@example.com", Locale: "de"})
	article := e.createArticle(t, "", "24.95", 5)
	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 3})

	message, err := e.emails.AssemblePlacedEmail(context.Background(), order)
	if err != nil {
		t.Fatalf("AssemblePlacedEmail: %v", err)
	}
	for _, fragment := range []string{
		"Hallo Alice,",
		"am 09.03.2024",
		"Stückpreis: 24,95 €",
		"Gesamtbetrag: 74,85 €",
		"Bitte überweise 74,85 € mit dem Verwendungszweck LP-2024-B00001.",
		"Dein LAN-Party-Team\n",
	} {
		if !strings.Contains(message.Body, fragment) {
			t.Fatalf("body lacks %q:\n%s", fragment, message.Body)
		}
	}
	if message.Subject != "Deine Bestellung (LP-2024-B00001) ist eingegangen." {
		t.Fatalf("unexpected subject %q", message.Subject)
	}
}

func TestOrderEmailServiceFallsBackToBrandLocale(t *testing.T) {
	e := newEngine(t)
	e.users.Put(User{ID: testOrdererID, ScreenName: "Alice", EmailAddress: "alice@example.com", Locale: "fr"})
	article := e.createArticle(t, "", "10.00", 5)
	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 1})

	message, err := e.emails.AssemblePaidEmail(context.Background(), order)
	if err != nil {
		t.Fatalf("AssemblePaidEmail: %v", err)
	}
	if !strings.HasPrefix(message.Body, "Hallo Alice,") {
		t.Fatalf("expected brand default locale de, got:\n%s", message.Body)
	}
}

func TestOrderEmailServiceMissingSnippet(t *testing.T) {
	e := newEngine(t)
	localizer, err := i18n.Load("en")
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	emails, err := NewOrderEmailService(OrderEmailServiceDeps{
		Orders:    e.registry.Orders(),
		Shops:     e.registry.Shops(),
		Brands:    e.registry.Brands(),
		Users:     e.users,
		Snippets:  e.snippets,
		Localizer: localizer,
		Scopes:    SnippetScopes{Footer: domain.SnippetScopeShop},
	})
	if err != nil {
		t.Fatalf("NewOrderEmailService: %v", err)
	}
	article := e.createArticle(t, "", "10.00", 5)
	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 1})

	if _, err := emails.AssemblePaidEmail(context.Background(), order); !errors.Is(err, ErrSnippetNotFound) {
		t.Fatalf("expected ErrSnippetNotFound, got %v", err)
	}
	if err := emails.SendPaidEmail(context.Background(), order.ID); err == nil {
		t.Fatalf("expected error without mailer")
	}
}

func TestOrderEmailServiceRejectsBrokenInstructions(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	if _, err := e.snippets.SaveSnippet(ctx, domain.Snippet{
		SnippetKey: SnippetKey{ScopeType: domain.SnippetScopeShop, ScopeID: testShopID, Name: SnippetPaymentInstructions, Locale: "en"},
		Body:       "Pay {{.Reference}}",
	}); err != nil {
		t.Fatalf("SaveSnippet: %v", err)
	}
	article := e.createArticle(t, "", "10.00", 5)
	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 1})

	if _, err := e.emails.AssemblePlacedEmail(ctx, order); err == nil {
		t.Fatalf("expected render error for unknown field")
	}
}

func TestOrderEmailServiceSkipsDeletedUsers(t *testing.T) {
	e := newEngine(t)
	article := e.createArticle(t, "", "10.00", 5)
	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 1})
	e.users.Put(User{ID: testOrdererID, ScreenName: "Alice", Deleted: true})

	if _, err := e.emails.AssembleCanceledEmail(context.Background(), order); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if err := e.emails.SendPlacedEmail(context.Background(), "missing"); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestOrderEmailServiceExampleMessages(t *testing.T) {
	e := newEngine(t)
	messages, err := e.emails.ExampleMessages(context.Background(), testShopID, "en")
	if err != nil {
		t.Fatalf("ExampleMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for _, kind := range []string{"placed", "paid", "canceled"} {
		message, ok := messages[kind]
		if !ok || !strings.Contains(message.Subject, "EXAMPLE-00001") {
			t.Fatalf("missing or wrong %s example: %+v", kind, message)
		}
	}
	if !strings.Contains(messages["canceled"].Body, "Not paid in time.") {
		t.Fatalf("canceled example lacks reason")
	}
	if len(e.queue.messages(t)) != 0 {
		t.Fatalf("examples must not be sent")
	}
	if _, err := e.emails.ExampleMessages(context.Background(), "missing", "en"); !errors.Is(err, ErrUnknownShop) {
		t.Fatalf("expected ErrUnknownShop, got %v", err)
	}
}

func TestOrderEmailNotifierIgnoresSendFailures(t *testing.T) {
	e := newEngine(t)
	e.queue.err = errors.New("queue down")
	article := e.createArticle(t, "", "10.00", 5)

	order := e.mustPlace(t, domain.CartItem{Article: article, Quantity: 1})
	if order.PaymentState != domain.PaymentStateOpen {
		t.Fatalf("placement must succeed without email")
	}
}
