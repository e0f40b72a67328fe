package firestore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	pfirestore "github.com/byceps/byceps-sub001/internal/platform/firestore"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// Orders embed their line items. The log lives in a subcollection of the
// order with a per-order counter supplying entry sequence numbers.
type orderRepository struct{ r *Registry }

func (o *orderRepository) logEntries(orderID string) (*pfirestore.BaseRepository[logEntryDocument], error) {
	if orderID == "" || strings.Contains(orderID, "/") {
		return nil, repositories.NewNotFoundError("orders.log", "order %q", orderID)
	}
	path := ordersCollection + "/" + orderID + "/" + logEntriesSubcollection
	return pfirestore.NewBaseRepository[logEntryDocument](o.r.provider, path), nil
}

func (o *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return o.r.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := o.r.orders.Exists(ctx, order.ID)
		if err != nil {
			return err
		}
		if exists {
			return repositories.NewConflictError("orders.insert", "order %q exists", order.ID)
		}
		taken, err := o.r.orderNums.Exists(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		if taken {
			return repositories.NewConflictError("orders.insert", "order number %q taken", order.OrderNumber)
		}
		if err := o.r.orderNums.Create(ctx, order.OrderNumber, indexDocument{TargetID: order.ID}); err != nil {
			return err
		}
		return o.r.orders.Create(ctx, order.ID, newOrderDocument(order))
	})
}

func (o *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return o.r.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := o.r.orders.Get(ctx, order.ID); err != nil {
			return notFoundAs(err, "orders.update", "order %q", order.ID)
		}
		return o.r.orders.Set(ctx, order.ID, newOrderDocument(order))
	})
}

// Delete removes the order with its log and number index.
func (o *orderRepository) Delete(ctx context.Context, orderID string) error {
	return o.r.RunInTx(ctx, func(ctx context.Context) error {
		current, err := o.r.orders.Get(ctx, orderID)
		if err != nil {
			return notFoundAs(err, "orders.delete", "order %q", orderID)
		}
		log, err := o.logEntries(orderID)
		if err != nil {
			return err
		}
		entries, err := log.Query(ctx, nil)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := log.Delete(ctx, entry.ID); err != nil {
				return err
			}
		}
		if err := o.r.logCounters.Delete(ctx, orderID); err != nil {
			return err
		}
		if err := o.r.orderNums.Delete(ctx, current.OrderNumber); err != nil {
			return err
		}
		return o.r.orders.Delete(ctx, orderID)
	})
}

func (o *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := o.r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, notFoundAs(err, "orders.find", "order %q", orderID)
	}
	return doc.toDomain()
}

func (o *orderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	index, err := o.r.orderNums.Get(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, notFoundAs(err, "orders.find_by_number", "order %q", orderNumber)
	}
	return o.FindByID(ctx, index.TargetID)
}

func (o *orderRepository) query(ctx context.Context, build pfirestore.QueryBuilder, keep func(domain.Order) bool) ([]domain.Order, error) {
	docs, err := o.r.orders.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := doc.Data.toDomain()
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(order) {
			orders = append(orders, order)
		}
	}
	// newest first
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].OrderNumber > orders[j].OrderNumber
	})
	return orders, nil
}

func ordererQuery(userID string, shopID string) pfirestore.QueryBuilder {
	return func(q firestore.Query) firestore.Query {
		q = q.Where(fieldOrdererID, "==", userID)
		if shopID != "" {
			q = q.Where(fieldShopID, "==", shopID)
		}
		return q
	}
}

func (o *orderRepository) ListByOrderer(ctx context.Context, userID string, shopID string) ([]domain.Order, error) {
	return o.query(ctx, ordererQuery(userID, shopID), nil)
}

func (o *orderRepository) ListByShop(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
	orders, err := o.query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where(fieldShopID, "==", filter.ShopID)
		if filter.PaymentState != nil {
			q = q.Where(fieldPaymentState, "==", filter.PaymentState.String())
		}
		return q
	}, func(order domain.Order) bool {
		if !filter.ProcessingState.Matches(order) {
			return false
		}
		return term == "" || strings.Contains(strings.ToLower(order.OrderNumber), term)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.Paginate(orders, filter.Pagination), nil
}

// CountByPaymentState runs one count aggregation per state.
func (o *orderRepository) CountByPaymentState(ctx context.Context, shopID string) (map[domain.PaymentState]int, error) {
	states := domain.PaymentStates()
	counts := make(map[domain.PaymentState]int, len(states))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, state := range states {
		g.Go(func() error {
			n, err := o.r.orders.Count(gctx, func(q firestore.Query) firestore.Query {
				return q.Where(fieldShopID, "==", shopID).Where(fieldPaymentState, "==", state.String())
			})
			if err != nil {
				return err
			}
			mu.Lock()
			counts[state] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (o *orderRepository) HasOrderer(ctx context.Context, userID string, shopID string) (bool, error) {
	build := ordererQuery(userID, shopID)
	docs, err := o.r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return build(q).Limit(1)
	})
	return len(docs) > 0, err
}

func (o *orderRepository) AppendLogEntries(ctx context.Context, entries ...domain.OrderLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return o.r.RunInTx(ctx, func(ctx context.Context) error {
		counters := map[string]counterDocument{}
		for _, entry := range entries {
			if _, ok := counters[entry.OrderID]; ok {
				continue
			}
			exists, err := o.r.orders.Exists(ctx, entry.OrderID)
			if err != nil {
				return err
			}
			if !exists {
				return repositories.NewNotFoundError("orders.log.append", "order %q", entry.OrderID)
			}
			counter, err := o.r.logCounters.Get(ctx, entry.OrderID)
			if err != nil && !isNotFound(err) {
				return err
			}
			counters[entry.OrderID] = counter
		}
		for _, entry := range entries {
			counter := counters[entry.OrderID]
			counter.Value++
			counters[entry.OrderID] = counter

			log, err := o.logEntries(entry.OrderID)
			if err != nil {
				return err
			}
			doc := logEntryDocument{
				ID:         entry.ID,
				OrderID:    entry.OrderID,
				OccurredAt: entry.OccurredAt,
				Sequence:   counter.Value,
				EventType:  string(entry.EventType),
				Data:       entry.Data,
			}
			if err := log.Create(ctx, entry.ID, doc); err != nil {
				return err
			}
		}
		for orderID, counter := range counters {
			if err := o.r.logCounters.Set(ctx, orderID, counter); err != nil {
				return err
			}
		}
		return nil
	})
}

func (o *orderRepository) ListLogEntries(ctx context.Context, orderID string) ([]domain.OrderLogEntry, error) {
	log, err := o.logEntries(orderID)
	if err != nil {
		return nil, err
	}
	docs, err := log.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	entries := decodeAll(docs, logEntryDocument.toDomain)
	domain.SortLogEntries(entries)
	return entries, nil
}
