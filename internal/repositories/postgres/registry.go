package postgres

import (
	"context"

	"github.com/byceps/byceps-sub001/internal/repositories"
)

// Registry bundles the Postgres repositories over one pool.
type Registry struct {
	*DB
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wraps an open database.
func NewRegistry(db *DB) *Registry {
	return &Registry{DB: db}
}

func (r *Registry) Close(context.Context) error {
	r.DB.Close()
	return nil
}

func (r *Registry) Shops() repositories.ShopRepository               { return &shopRepository{r.DB} }
func (r *Registry) Brands() repositories.BrandRepository             { return &brandRepository{r.DB} }
func (r *Registry) Storefronts() repositories.StorefrontRepository   { return &storefrontRepository{r.DB} }
func (r *Registry) Sequences() repositories.SequenceRepository       { return &sequenceRepository{r.DB} }
func (r *Registry) Articles() repositories.ArticleRepository         { return &articleRepository{r.DB} }
func (r *Registry) Orders() repositories.OrderRepository             { return &orderRepository{r.DB} }
func (r *Registry) OrderActions() repositories.OrderActionRepository { return &orderActionRepository{r.DB} }
func (r *Registry) Tickets() repositories.TicketRepository           { return &ticketRepository{r.DB} }
func (r *Registry) Badges() repositories.BadgeRepository             { return &badgeRepository{r.DB} }
func (r *Registry) Snippets() repositories.SnippetRepository         { return &snippetRepository{r.DB} }

func (r *Registry) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "postgres",
		Check: r.DB.Ping,
	}})
	return repo
}
