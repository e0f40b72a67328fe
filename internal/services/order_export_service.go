package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/byceps/byceps-sub001/internal/platform/storage"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

const (
	exportGenerator        = "BYCEPS"
	exportGeneratorVersion = "1.0"
	exportContentType      = "application/xml; charset=iso-8859-1"
	exportTimeLayout       = "2006-01-02T15:04:05-07:00"
)

// ExportStore persists rendered exports.
type ExportStore interface {
	Upload(ctx context.Context, object string, contentType string, data []byte) error
}

// OrderExportServiceDeps bundles collaborators required to construct the export service.
type OrderExportServiceDeps struct {
	Orders   repositories.OrderRepository
	Users    UserDirectory
	Store    ExportStore
	Timezone *time.Location
	Logger   ServiceLogger
}

type orderExportService struct {
	orders   repositories.OrderRepository
	users    UserDirectory
	store    ExportStore
	location *time.Location
	logger   ServiceLogger
}

var _ OrderExportService = (*orderExportService)(nil)

// NewOrderExportService wires the accounting export renderer.
func NewOrderExportService(deps OrderExportServiceDeps) (OrderExportService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order export service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order export service: user directory is required")
	}
	location := deps.Timezone
	if location == nil {
		location = time.UTC
	}
	return &orderExportService{
		orders:   deps.Orders,
		users:    deps.Users,
		store:    deps.Store,
		location: location,
		logger:   defaultLogger(deps.Logger),
	}, nil
}

func (s *orderExportService) ExportOrder(ctx context.Context, orderID string) ([]byte, error) {
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, repositoryErrorMapping{notFound: ErrUnknownOrder, scope: "order export"}.mapError(err)
	}
	return s.render(ctx, order)
}

func (s *orderExportService) UploadExport(ctx context.Context, orderID string) (string, error) {
	if s.store == nil {
		return "", errors.New("order export service: export store is not configured")
	}
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return "", repositoryErrorMapping{notFound: ErrUnknownOrder, scope: "order export"}.mapError(err)
	}
	data, err := s.render(ctx, order)
	if err != nil {
		return "", err
	}
	object, err := storage.BuildObjectPath(storage.PurposeOrderExport, storage.PathParams{
		ShopID:      order.ShopID,
		OrderNumber: order.OrderNumber,
		CreatedAt:   order.CreatedAt.In(s.location),
	})
	if err != nil {
		return "", err
	}
	if err := s.store.Upload(ctx, object, exportContentType, data); err != nil {
		return "", fmt.Errorf("order export: upload %s: %w", object, err)
	}
	s.logger(ctx, "order.export.uploaded", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"object":      object,
		"bytes":       len(data),
	})
	return object, nil
}

func (s *orderExportService) render(ctx context.Context, order Order) ([]byte, error) {
	email := ""
	user, err := s.users.GetUser(ctx, order.Orderer.UserID)
	switch {
	case err == nil:
		if !user.Deleted {
			email = user.EmailAddress
		}
	case errors.Is(err, ErrUnknownUser):
	default:
		return nil, err
	}

	paymentMethod := ""
	if order.PaymentMethod != nil {
		paymentMethod = *order.PaymentMethod
	}

	w := &exportWriter{}
	w.raw(`<?xml version="1.0" encoding="iso-8859-1" standalone="yes"?>` + "\n")
	w.open(0, "WEBSHOPEXPORT")
	w.open(1, "HEADER")
	w.element(2, "GENERATOR", exportGenerator)
	w.element(2, "GENERATOR_VERSION", exportGeneratorVersion)
	w.close(1, "HEADER")
	w.open(1, "ORDER")

	w.open(2, "ORDER_HEADER")
	w.element(3, "ORDER_ID", order.OrderNumber)
	w.element(3, "ORDER_DATE", order.CreatedAt.In(s.location).Format(exportTimeLayout))
	w.element(3, "ORDER_CURRENCY", order.TotalAmount.Currency)
	w.element(3, "ORDER_PAYMENT_METHOD", paymentMethod)
	w.element(3, "ORDER_TOTAL", order.TotalAmount.Fixed())
	w.close(2, "ORDER_HEADER")

	orderer := order.Orderer
	w.open(2, "ORDER_CUSTOMER")
	w.element(3, "CUSTOMER_ID", orderer.UserID)
	w.element(3, "COMPANY", orderer.Company)
	w.element(3, "FIRST_NAME", orderer.FirstName)
	w.element(3, "LAST_NAME", orderer.LastName)
	w.element(3, "STREET", orderer.Street)
	w.element(3, "ZIP_CODE", orderer.ZipCode)
	w.element(3, "CITY", orderer.City)
	w.element(3, "COUNTRY", orderer.Country)
	w.element(3, "EMAIL", email)
	w.close(2, "ORDER_CUSTOMER")

	w.open(2, "ORDER_ITEMS")
	for _, item := range order.LineItems {
		w.open(3, "ITEM")
		w.element(4, "ITEM_NUMBER", item.ArticleNumber)
		w.element(4, "ITEM_DESCRIPTION", item.Description)
		w.element(4, "ITEM_QUANTITY", fmt.Sprintf("%d", item.Quantity))
		w.element(4, "ITEM_UNIT_PRICE", item.UnitPrice.Fixed())
		w.element(4, "ITEM_TAX_RATE", item.TaxRate.StringFixed(2))
		w.element(4, "ITEM_LINE_AMOUNT", item.LineAmount.Fixed())
		w.close(3, "ITEM")
	}
	w.close(2, "ORDER_ITEMS")

	w.close(1, "ORDER")
	w.close(0, "WEBSHOPEXPORT")

	return encodeLatin1(w.buf.String()), nil
}

type exportWriter struct {
	buf bytes.Buffer
}

func (w *exportWriter) raw(s string) {
	w.buf.WriteString(s)
}

func (w *exportWriter) indent(depth int) {
	w.buf.WriteString(strings.Repeat("  ", depth))
}

func (w *exportWriter) open(depth int, name string) {
	w.indent(depth)
	w.buf.WriteString("<" + name + ">\n")
}

func (w *exportWriter) close(depth int, name string) {
	w.indent(depth)
	w.buf.WriteString("</" + name + ">\n")
}

func (w *exportWriter) element(depth int, name string, value string) {
	w.indent(depth)
	if value == "" {
		w.buf.WriteString("<" + name + "/>\n")
		return
	}
	w.buf.WriteString("<" + name + ">")
	_ = xml.EscapeText(&w.buf, []byte(value))
	w.buf.WriteString("</" + name + ">\n")
}

// encodeLatin1 maps every rune outside ISO-8859-1 to '?'.
func encodeLatin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
