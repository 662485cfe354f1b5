// Package schema defines the fixed five-table warehouse layout. Column names
// and types are consumed downstream and must not drift.
package schema

import "fmt"

type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
	TypeDate    ColumnType = "DATE"
)

type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	NotNull    bool
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t Table) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

const (
	Customers = "customers"
	Products  = "products"
	Stores    = "stores"
	Campaigns = "campaigns"
	Sales     = "sales"
)

// Tables is in load order: every table appears after the tables it references.
var Tables = []Table{
	{
		Name: Customers,
		Columns: []Column{
			{Name: "customer_id", Type: TypeInteger, PrimaryKey: true},
			{Name: "name", Type: TypeText},
			{Name: "region", Type: TypeText},
			{Name: "join_date", Type: TypeText},
			{Name: "loyalty_points", Type: TypeInteger},
			{Name: "customer_segment", Type: TypeText},
		},
	},
	{
		Name: Products,
		Columns: []Column{
			{Name: "product_id", Type: TypeInteger, PrimaryKey: true},
			{Name: "product_name", Type: TypeText},
			{Name: "category", Type: TypeText},
			{Name: "unit_price", Type: TypeInteger},
			{Name: "stock_quantity", Type: TypeInteger},
			{Name: "supplier", Type: TypeText},
		},
	},
	{
		Name: Stores,
		Columns: []Column{
			{Name: "store_id", Type: TypeInteger, PrimaryKey: true},
			{Name: "store_name", Type: TypeText, NotNull: true},
			{Name: "location", Type: TypeText},
			{Name: "state", Type: TypeText},
			{Name: "country", Type: TypeText},
			{Name: "store_type", Type: TypeText},
		},
	},
	{
		Name: Campaigns,
		Columns: []Column{
			{Name: "campaign_id", Type: TypeInteger, PrimaryKey: true},
			{Name: "campaign_name", Type: TypeText, NotNull: true},
			{Name: "start_date", Type: TypeDate},
			{Name: "end_date", Type: TypeDate},
			{Name: "channel", Type: TypeText},
			{Name: "budget_usd", Type: TypeReal},
		},
	},
	{
		Name: Sales,
		Columns: []Column{
			{Name: "sale_id", Type: TypeInteger, PrimaryKey: true},
			{Name: "customer_id", Type: TypeInteger},
			{Name: "product_id", Type: TypeInteger},
			{Name: "store_id", Type: TypeInteger},
			{Name: "campaign_id", Type: TypeInteger},
			{Name: "sale_amount", Type: TypeReal},
			{Name: "sale_date", Type: TypeText},
			{Name: "bonus_points", Type: TypeInteger},
			{Name: "payment_type", Type: TypeText},
		},
		ForeignKeys: []ForeignKey{
			{Column: "customer_id", RefTable: Customers, RefColumn: "customer_id"},
			{Column: "product_id", RefTable: Products, RefColumn: "product_id"},
		},
	},
}

// Lookup returns the named table.
func Lookup(name string) (Table, error) {
	for _, t := range Tables {
		if t.Name == name {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("unknown table %q", name)
}

// LoadOrder returns the position of the named table in Tables, or -1.
func LoadOrder(name string) int {
	for i, t := range Tables {
		if t.Name == name {
			return i
		}
	}
	return -1
}
