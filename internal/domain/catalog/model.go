package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Item maps to the item table. The item code is the record identity;
// renames move the code itself, which is why the rename cascade in the
// template package exists.
type Item struct {
	Code            string    `db:"code" json:"code"`
	Name            string    `db:"name" json:"name"`
	Group           string    `db:"item_group" json:"item_group"`
	Description     *string   `db:"description" json:"description,omitempty"`
	Disabled        bool      `db:"disabled" json:"disabled"`
	StockUOM        string    `db:"stock_uom" json:"stock_uom"`
	IsSalesItem     bool      `db:"is_sales_item" json:"is_sales_item"`
	IsServiceItem   bool      `db:"is_service_item" json:"is_service_item"`
	IsStockItem     bool      `db:"is_stock_item" json:"is_stock_item"`
	IsPurchaseItem  bool      `db:"is_purchase_item" json:"is_purchase_item"`
	InManufacturing bool      `db:"in_manufacturing" json:"in_manufacturing"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ItemPrice maps to the item_price table, one row per price list entry.
type ItemPrice struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ItemCode  string    `db:"item_code" json:"item_code"`
	PriceList string    `db:"price_list" json:"price_list"`
	Rate      float64   `db:"rate" json:"rate"`
	ValidFrom time.Time `db:"valid_from" json:"valid_from"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Settings is the single-row catalog configuration record.
type Settings struct {
	DefaultStockUOM  string `db:"default_stock_uom" json:"default_stock_uom"`
	SellingPriceList string `db:"selling_price_list" json:"selling_price_list"`
}

// StandardUOM is the unit adopted for auto-created service items when
// a UOM record by this name exists.
const StandardUOM = "Unit"
