package memory

import (
	"context"
	"maps"
	"sort"
	"strings"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type orderRepository struct{ store *Store }

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.LineItem, len(o.LineItems))
	for i, item := range o.LineItems {
		item.ProcessingResult = maps.Clone(item.ProcessingResult)
		items[i] = item
	}
	o.LineItems = items
	return o
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return repositories.NewConflictError("orders.insert", "order %q exists", order.ID)
		}
		for _, existing := range st.orders {
			if existing.OrderNumber == order.OrderNumber {
				return repositories.NewConflictError("orders.insert", "order number %q taken", order.OrderNumber)
			}
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.orders[order.ID]; !ok {
			return repositories.NewNotFoundError("orders.update", "order %q", order.ID)
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.orders[orderID]; !ok {
			return repositories.NewNotFoundError("orders.delete", "order %q", orderID)
		}
		delete(st.orders, orderID)
		delete(st.logEntries, orderID)
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.orders[orderID]
		if !ok {
			return repositories.NewNotFoundError("orders.find", "order %q", orderID)
		}
		order = cloneOrder(found)
		return nil
	})
	return order, err
}

func (r *orderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var order domain.Order
	err := r.store.with(ctx, func(st *state) error {
		for _, found := range st.orders {
			if found.OrderNumber == orderNumber {
				order = cloneOrder(found)
				return nil
			}
		}
		return repositories.NewNotFoundError("orders.find_by_number", "order %q", orderNumber)
	})
	return order, err
}

func (r *orderRepository) collect(ctx context.Context, keep func(domain.Order) bool) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.store.with(ctx, func(st *state) error {
		for _, order := range st.orders {
			if keep(order) {
				orders = append(orders, cloneOrder(order))
			}
		}
		return nil
	})
	// newest first
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].OrderNumber > orders[j].OrderNumber
	})
	return orders, err
}

func (r *orderRepository) ListByOrderer(ctx context.Context, userID string, shopID string) ([]domain.Order, error) {
	return r.collect(ctx, func(o domain.Order) bool {
		return o.Orderer.UserID == userID && (shopID == "" || o.ShopID == shopID)
	})
}

func (r *orderRepository) ListByShop(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
	orders, err := r.collect(ctx, func(o domain.Order) bool {
		if o.ShopID != filter.ShopID {
			return false
		}
		if filter.PaymentState != nil && o.PaymentState != *filter.PaymentState {
			return false
		}
		if !filter.ProcessingState.Matches(o) {
			return false
		}
		return term == "" || strings.Contains(strings.ToLower(o.OrderNumber), term)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.Paginate(orders, filter.Pagination), nil
}

func (r *orderRepository) CountByPaymentState(ctx context.Context, shopID string) (map[domain.PaymentState]int, error) {
	counts := make(map[domain.PaymentState]int, 4)
	for _, state := range domain.PaymentStates() {
		counts[state] = 0
	}
	err := r.store.with(ctx, func(st *state) error {
		for _, order := range st.orders {
			if order.ShopID == shopID {
				counts[order.PaymentState]++
			}
		}
		return nil
	})
	return counts, err
}

func (r *orderRepository) HasOrderer(ctx context.Context, userID string, shopID string) (bool, error) {
	orders, err := r.ListByOrderer(ctx, userID, shopID)
	return len(orders) > 0, err
}

func (r *orderRepository) AppendLogEntries(ctx context.Context, entries ...domain.OrderLogEntry) error {
	return r.store.with(ctx, func(st *state) error {
		for _, entry := range entries {
			if _, ok := st.orders[entry.OrderID]; !ok {
				return repositories.NewNotFoundError("orders.log.append", "order %q", entry.OrderID)
			}
			st.logSeq++
			entry.Sequence = st.logSeq
			entry.Data = maps.Clone(entry.Data)
			st.logEntries[entry.OrderID] = append(st.logEntries[entry.OrderID], entry)
		}
		return nil
	})
}

func (r *orderRepository) ListLogEntries(ctx context.Context, orderID string) ([]domain.OrderLogEntry, error) {
	var entries []domain.OrderLogEntry
	err := r.store.with(ctx, func(st *state) error {
		for _, entry := range st.logEntries[orderID] {
			entry.Data = maps.Clone(entry.Data)
			entries = append(entries, entry)
		}
		return nil
	})
	domain.SortLogEntries(entries)
	return entries, err
}
