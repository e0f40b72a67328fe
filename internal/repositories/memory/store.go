// Package memory provides an in-process repository backend. A transaction
// holds the store lock for its whole duration and restores a snapshot when
// the callback fails.
package memory

import (
	"context"
	"maps"
	"sync"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type txKey struct{}

type state struct {
	shops       map[string]domain.Shop
	brands      map[string]domain.Brand
	storefronts map[string]domain.Storefront
	sequences   map[string]domain.NumberSequence
	articles    map[string]domain.Article
	attachments map[string]domain.ArticleAttachment
	orders      map[string]domain.Order
	logEntries  map[string][]domain.OrderLogEntry
	actions     map[string]domain.StoredOrderAction
	tickets     map[string]domain.Ticket
	bundles     map[string]domain.TicketBundle
	awardings   map[string]domain.BadgeAwarding
	snippets    map[domain.SnippetKey]domain.Snippet
	logSeq      int64
}

func newState() *state {
	return &state{
		shops:       map[string]domain.Shop{},
		brands:      map[string]domain.Brand{},
		storefronts: map[string]domain.Storefront{},
		sequences:   map[string]domain.NumberSequence{},
		articles:    map[string]domain.Article{},
		attachments: map[string]domain.ArticleAttachment{},
		orders:      map[string]domain.Order{},
		logEntries:  map[string][]domain.OrderLogEntry{},
		actions:     map[string]domain.StoredOrderAction{},
		tickets:     map[string]domain.Ticket{},
		bundles:     map[string]domain.TicketBundle{},
		awardings:   map[string]domain.BadgeAwarding{},
		snippets:    map[domain.SnippetKey]domain.Snippet{},
	}
}

// snapshot copies the maps. Stored values are replaced, never mutated, so
// the values themselves can be shared.
func (s *state) snapshot() *state {
	logs := make(map[string][]domain.OrderLogEntry, len(s.logEntries))
	for id, entries := range s.logEntries {
		logs[id] = append([]domain.OrderLogEntry(nil), entries...)
	}
	return &state{
		shops:       maps.Clone(s.shops),
		brands:      maps.Clone(s.brands),
		storefronts: maps.Clone(s.storefronts),
		sequences:   maps.Clone(s.sequences),
		articles:    maps.Clone(s.articles),
		attachments: maps.Clone(s.attachments),
		orders:      maps.Clone(s.orders),
		logEntries:  logs,
		actions:     maps.Clone(s.actions),
		tickets:     maps.Clone(s.tickets),
		bundles:     maps.Clone(s.bundles),
		awardings:   maps.Clone(s.awardings),
		snippets:    maps.Clone(s.snippets),
		logSeq:      s.logSeq,
	}
}

// Store is the shared state behind every memory repository.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// RunInTx runs fn while holding the store lock. Nested calls join the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = saved
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// with runs fn against the state, taking the lock unless ctx already holds it.
func (s *Store) with(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

// Registry bundles the memory repositories.
type Registry struct {
	store *Store
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry returns a registry over a fresh store.
func NewRegistry() *Registry {
	return &Registry{store: NewStore()}
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.RunInTx(ctx, fn)
}

func (r *Registry) Shops() repositories.ShopRepository               { return &shopRepository{r.store} }
func (r *Registry) Brands() repositories.BrandRepository             { return &brandRepository{r.store} }
func (r *Registry) Storefronts() repositories.StorefrontRepository   { return &storefrontRepository{r.store} }
func (r *Registry) Sequences() repositories.SequenceRepository       { return &sequenceRepository{r.store} }
func (r *Registry) Articles() repositories.ArticleRepository         { return &articleRepository{r.store} }
func (r *Registry) Orders() repositories.OrderRepository             { return &orderRepository{r.store} }
func (r *Registry) OrderActions() repositories.OrderActionRepository { return &orderActionRepository{r.store} }
func (r *Registry) Tickets() repositories.TicketRepository           { return &ticketRepository{r.store} }
func (r *Registry) Badges() repositories.BadgeRepository             { return &badgeRepository{r.store} }
func (r *Registry) Snippets() repositories.SnippetRepository         { return &snippetRepository{r.store} }

func (r *Registry) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}})
	return repo
}
