package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RUPHAsoft/healthcare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `code, name, item_group, description, disabled, stock_uom,
	is_sales_item, is_service_item, is_stock_item, is_purchase_item, in_manufacturing,
	created_at, updated_at`

func (r *itemRepoPG) scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.Code, &it.Name, &it.Group, &it.Description, &it.Disabled, &it.StockUOM,
		&it.IsSalesItem, &it.IsServiceItem, &it.IsStockItem, &it.IsPurchaseItem, &it.InManufacturing,
		&it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &it, err
}

func (r *itemRepoPG) Create(ctx context.Context, it *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO item (code, name, item_group, description, disabled, stock_uom,
			is_sales_item, is_service_item, is_stock_item, is_purchase_item, in_manufacturing)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		it.Code, it.Name, it.Group, it.Description, it.Disabled, it.StockUOM,
		it.IsSalesItem, it.IsServiceItem, it.IsStockItem, it.IsPurchaseItem, it.InManufacturing)
	return err
}

func (r *itemRepoPG) GetByCode(ctx context.Context, code string) (*Item, error) {
	return r.scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM item WHERE code = $1`, code))
}

func (r *itemRepoPG) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM item WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *itemRepoPG) Update(ctx context.Context, it *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE item SET name=$2, item_group=$3, description=$4, disabled=$5, updated_at=NOW()
		WHERE code = $1`,
		it.Code, it.Name, it.Group, it.Description, it.Disabled)
	return err
}

func (r *itemRepoPG) SetDisabled(ctx context.Context, code string, disabled bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE item SET disabled=$2, updated_at=NOW() WHERE code = $1`, code, disabled)
	return err
}

func (r *itemRepoPG) Rename(ctx context.Context, oldCode, newCode string) error {
	if oldCode == newCode {
		return nil
	}
	// item_price.item_code follows via ON UPDATE CASCADE.
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE item SET code=$2, updated_at=NOW() WHERE code = $1`, oldCode, newCode)
	return err
}

func (r *itemRepoPG) List(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM item`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemCols+` FROM item ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := r.scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, nil
}

// =========== Price Repository ===========

type priceRepoPG struct{ pool *pgxpool.Pool }

func NewPriceRepoPG(pool *pgxpool.Pool) PriceRepository { return &priceRepoPG{pool: pool} }

func (r *priceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const priceCols = `id, item_code, price_list, rate, valid_from, created_at`

func (r *priceRepoPG) scanPrice(row pgx.Row) (*ItemPrice, error) {
	var p ItemPrice
	err := row.Scan(&p.ID, &p.ItemCode, &p.PriceList, &p.Rate, &p.ValidFrom, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *priceRepoPG) Create(ctx context.Context, p *ItemPrice) error {
	p.ID = uuid.New()
	if p.ValidFrom.IsZero() {
		p.ValidFrom = time.Now()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO item_price (id, item_code, price_list, rate, valid_from)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.ItemCode, p.PriceList, p.Rate, p.ValidFrom)
	return err
}

func (r *priceRepoPG) LatestForItem(ctx context.Context, itemCode string) (*ItemPrice, error) {
	return r.scanPrice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+priceCols+` FROM item_price WHERE item_code = $1 ORDER BY valid_from DESC LIMIT 1`, itemCode))
}

func (r *priceRepoPG) UpsertTodaysRate(ctx context.Context, itemCode, priceList string, rate float64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE item_price SET rate=$3
		WHERE item_code = $1 AND price_list = $2 AND valid_from::date = CURRENT_DATE`,
		itemCode, priceList, rate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.Create(ctx, &ItemPrice{ItemCode: itemCode, PriceList: priceList, Rate: rate})
}

func (r *priceRepoPG) ListForItem(ctx context.Context, itemCode string) ([]*ItemPrice, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+priceCols+` FROM item_price WHERE item_code = $1 ORDER BY valid_from DESC`, itemCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var prices []*ItemPrice
	for rows.Next() {
		p, err := r.scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// =========== UOM Repository ===========

type uomRepoPG struct{ pool *pgxpool.Pool }

func NewUOMRepoPG(pool *pgxpool.Pool) UOMRepository { return &uomRepoPG{pool: pool} }

func (r *uomRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *uomRepoPG) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM uom WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// =========== Settings Repository ===========

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewSettingsRepoPG(pool *pgxpool.Pool) SettingsRepository { return &settingsRepoPG{pool: pool} }

func (r *settingsRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *settingsRepoPG) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT default_stock_uom, selling_price_list FROM catalog_settings LIMIT 1`).
		Scan(&s.DefaultStockUOM, &s.SellingPriceList)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}
