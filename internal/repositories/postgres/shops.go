package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type shopRepository struct{ db *DB }

const shopColumns = `id, brand_id, title, currency, archived`

func scanShop(row pgx.Row) (domain.Shop, error) {
	var shop domain.Shop
	err := row.Scan(&shop.ID, &shop.BrandID, &shop.Title, &shop.Currency, &shop.Archived)
	return shop, err
}

func (r *shopRepository) Insert(ctx context.Context, shop domain.Shop) error {
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO shops (`+shopColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		shop.ID, shop.BrandID, shop.Title, shop.Currency, shop.Archived)
	return wrapError("shops.insert", err)
}

func (r *shopRepository) Update(ctx context.Context, shop domain.Shop) error {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE shops SET brand_id = $2, title = $3, currency = $4, archived = $5 WHERE id = $1`,
		shop.ID, shop.BrandID, shop.Title, shop.Currency, shop.Archived)
	if err != nil {
		return wrapError("shops.update", err)
	}
	return notFound("shops.update", tag.RowsAffected(), "shop %q", shop.ID)
}

func (r *shopRepository) FindByID(ctx context.Context, shopID string) (domain.Shop, error) {
	shop, err := scanShop(r.db.q(ctx).QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, shopID))
	return shop, wrapError("shops.find", err)
}

func (r *shopRepository) List(ctx context.Context) ([]domain.Shop, error) {
	rows, err := r.db.q(ctx).Query(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY id`)
	if err != nil {
		return nil, wrapError("shops.list", err)
	}
	shops, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Shop, error) { return scanShop(row) })
	return shops, wrapError("shops.list", err)
}

type brandRepository struct{ db *DB }

func (r *brandRepository) Upsert(ctx context.Context, brand domain.Brand) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO brands (id, title, default_locale, email_sender_name, email_sender_address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			default_locale = EXCLUDED.default_locale,
			email_sender_name = EXCLUDED.email_sender_name,
			email_sender_address = EXCLUDED.email_sender_address`,
		brand.ID, brand.Title, brand.DefaultLocale, brand.EmailSender.Name, brand.EmailSender.Address)
	return wrapError("brands.upsert", err)
}

func (r *brandRepository) FindByID(ctx context.Context, brandID string) (domain.Brand, error) {
	var brand domain.Brand
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT id, title, default_locale, email_sender_name, email_sender_address
		FROM brands WHERE id = $1`, brandID).
		Scan(&brand.ID, &brand.Title, &brand.DefaultLocale, &brand.EmailSender.Name, &brand.EmailSender.Address)
	return brand, wrapError("brands.find", err)
}

type storefrontRepository struct{ db *DB }

const storefrontColumns = `id, shop_id, order_number_sequence_id, closed`

func scanStorefront(row pgx.Row) (domain.Storefront, error) {
	var sf domain.Storefront
	err := row.Scan(&sf.ID, &sf.ShopID, &sf.OrderNumberSequenceID, &sf.Closed)
	return sf, err
}

func (r *storefrontRepository) Insert(ctx context.Context, storefront domain.Storefront) error {
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO storefronts (`+storefrontColumns+`) VALUES ($1, $2, $3, $4)`,
		storefront.ID, storefront.ShopID, storefront.OrderNumberSequenceID, storefront.Closed)
	return wrapError("storefronts.insert", err)
}

func (r *storefrontRepository) Update(ctx context.Context, storefront domain.Storefront) error {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE storefronts SET shop_id = $2, order_number_sequence_id = $3, closed = $4 WHERE id = $1`,
		storefront.ID, storefront.ShopID, storefront.OrderNumberSequenceID, storefront.Closed)
	if err != nil {
		return wrapError("storefronts.update", err)
	}
	return notFound("storefronts.update", tag.RowsAffected(), "storefront %q", storefront.ID)
}

func (r *storefrontRepository) FindByID(ctx context.Context, storefrontID string) (domain.Storefront, error) {
	sf, err := scanStorefront(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+storefrontColumns+` FROM storefronts WHERE id = $1`, storefrontID))
	return sf, wrapError("storefronts.find", err)
}

func (r *storefrontRepository) ListByShop(ctx context.Context, shopID string) ([]domain.Storefront, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+storefrontColumns+` FROM storefronts WHERE shop_id = $1 ORDER BY id`, shopID)
	if err != nil {
		return nil, wrapError("storefronts.list", err)
	}
	storefronts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Storefront, error) { return scanStorefront(row) })
	return storefronts, wrapError("storefronts.list", err)
}

type sequenceRepository struct{ db *DB }

const sequenceColumns = `id, shop_id, kind, prefix, value`

func scanSequence(row pgx.Row) (domain.NumberSequence, error) {
	var seq domain.NumberSequence
	var kind string
	if err := row.Scan(&seq.ID, &seq.ShopID, &kind, &seq.Prefix, &seq.Value); err != nil {
		return domain.NumberSequence{}, err
	}
	seq.Kind = domain.SequenceKind(kind)
	return seq, nil
}

func sequenceError(op, sequenceID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.NewSequenceError(op, repositories.SequenceErrorNotFound, "sequence "+sequenceID, err)
	}
	return wrapError(op, err)
}

func (r *sequenceRepository) Insert(ctx context.Context, sequence domain.NumberSequence) error {
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO number_sequences (`+sequenceColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		sequence.ID, sequence.ShopID, string(sequence.Kind), sequence.Prefix, sequence.Value)
	if isUniqueViolation(err, "number_sequences_prefix_key") {
		return repositories.NewSequenceError("sequences.insert", repositories.SequenceErrorDuplicatePrefix,
			"prefix "+sequence.Prefix+" already used", err)
	}
	return wrapError("sequences.insert", err)
}

func (r *sequenceRepository) FindByID(ctx context.Context, sequenceID string) (domain.NumberSequence, error) {
	seq, err := scanSequence(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+sequenceColumns+` FROM number_sequences WHERE id = $1`, sequenceID))
	if err != nil {
		return domain.NumberSequence{}, sequenceError("sequences.find", sequenceID, err)
	}
	return seq, nil
}

func (r *sequenceRepository) ListByShop(ctx context.Context, shopID string) ([]domain.NumberSequence, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+sequenceColumns+` FROM number_sequences WHERE shop_id = $1 ORDER BY kind, prefix`, shopID)
	if err != nil {
		return nil, wrapError("sequences.list", err)
	}
	seqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.NumberSequence, error) { return scanSequence(row) })
	return seqs, wrapError("sequences.list", err)
}

// Next increments in a single statement; the row lock serialises
// concurrent callers.
func (r *sequenceRepository) Next(ctx context.Context, sequenceID string) (domain.NumberSequence, error) {
	seq, err := scanSequence(r.db.q(ctx).QueryRow(ctx,
		`UPDATE number_sequences SET value = value + 1 WHERE id = $1 RETURNING `+sequenceColumns, sequenceID))
	if err != nil {
		return domain.NumberSequence{}, sequenceError("sequences.next", sequenceID, err)
	}
	return seq, nil
}
