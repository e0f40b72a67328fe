// Package firestore stores the shop in Cloud Firestore. Every repository
// call made with a context from RunInTx joins one Firestore transaction;
// see pfirestore.Scope for the read and write rules that apply inside it.
package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/byceps/byceps-sub001/internal/platform/firestore"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// Registry bundles the Firestore repositories over one provider.
type Registry struct {
	provider *pfirestore.Provider

	brands      *pfirestore.BaseRepository[brandDocument]
	shops       *pfirestore.BaseRepository[shopDocument]
	storefronts *pfirestore.BaseRepository[storefrontDocument]
	sequences   *pfirestore.BaseRepository[sequenceDocument]
	prefixes    *pfirestore.BaseRepository[indexDocument]
	articles    *pfirestore.BaseRepository[articleDocument]
	articleNums *pfirestore.BaseRepository[indexDocument]
	attachments *pfirestore.BaseRepository[attachmentDocument]
	orders      *pfirestore.BaseRepository[orderDocument]
	orderNums   *pfirestore.BaseRepository[indexDocument]
	logCounters *pfirestore.BaseRepository[counterDocument]
	actions     *pfirestore.BaseRepository[orderActionDocument]
	tickets     *pfirestore.BaseRepository[ticketDocument]
	bundles     *pfirestore.BaseRepository[bundleDocument]
	awardings   *pfirestore.BaseRepository[awardingDocument]
	snippets    *pfirestore.BaseRepository[snippetDocument]
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry binds the repositories to provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	return &Registry{
		provider:    provider,
		brands:      pfirestore.NewBaseRepository[brandDocument](provider, brandsCollection),
		shops:       pfirestore.NewBaseRepository[shopDocument](provider, shopsCollection),
		storefronts: pfirestore.NewBaseRepository[storefrontDocument](provider, storefrontsCollection),
		sequences:   pfirestore.NewBaseRepository[sequenceDocument](provider, sequencesCollection),
		prefixes:    pfirestore.NewBaseRepository[indexDocument](provider, sequencePrefixesCollection),
		articles:    pfirestore.NewBaseRepository[articleDocument](provider, articlesCollection),
		articleNums: pfirestore.NewBaseRepository[indexDocument](provider, articleNumbersCollection),
		attachments: pfirestore.NewBaseRepository[attachmentDocument](provider, attachmentsCollection),
		orders:      pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
		orderNums:   pfirestore.NewBaseRepository[indexDocument](provider, orderNumbersCollection),
		logCounters: pfirestore.NewBaseRepository[counterDocument](provider, orderLogCountersCollection),
		actions:     pfirestore.NewBaseRepository[orderActionDocument](provider, orderActionsCollection),
		tickets:     pfirestore.NewBaseRepository[ticketDocument](provider, ticketsCollection),
		bundles:     pfirestore.NewBaseRepository[bundleDocument](provider, bundlesCollection),
		awardings:   pfirestore.NewBaseRepository[awardingDocument](provider, awardingsCollection),
		snippets:    pfirestore.NewBaseRepository[snippetDocument](provider, snippetsCollection),
	}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// RunInTx runs fn in a Firestore transaction. Nested calls join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInScope(ctx, fn)
}

func (r *Registry) Shops() repositories.ShopRepository               { return &shopRepository{r} }
func (r *Registry) Brands() repositories.BrandRepository             { return &brandRepository{r} }
func (r *Registry) Storefronts() repositories.StorefrontRepository   { return &storefrontRepository{r} }
func (r *Registry) Sequences() repositories.SequenceRepository       { return &sequenceRepository{r} }
func (r *Registry) Articles() repositories.ArticleRepository         { return &articleRepository{r} }
func (r *Registry) Orders() repositories.OrderRepository             { return &orderRepository{r} }
func (r *Registry) OrderActions() repositories.OrderActionRepository { return &orderActionRepository{r} }
func (r *Registry) Tickets() repositories.TicketRepository           { return &ticketRepository{r} }
func (r *Registry) Badges() repositories.BadgeRepository             { return &badgeRepository{r} }
func (r *Registry) Snippets() repositories.SnippetRepository         { return &snippetRepository{r} }

func (r *Registry) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "firestore",
		Check: r.provider.Ping,
	}})
	return repo
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// notFoundAs replaces a backend not-found with a domain-worded one.
func notFoundAs(err error, op string, format string, args ...any) error {
	if isNotFound(err) {
		return repositories.NewNotFoundError(op, format, args...)
	}
	return err
}

func decodeAll[D any, T any](docs []pfirestore.Document[D], convert func(D) T) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		out = append(out, convert(doc.Data))
	}
	return out
}
