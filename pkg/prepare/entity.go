package prepare

import (
	"fmt"

	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/schema"
	"github.com/smartsales/smartsales/pkg/scrub"
)

// Rule is a row validity check on one column. A row whose column is absent
// sees a null value.
type Rule struct {
	Name   string
	Column string
	Valid  func(dataset.Value) bool
}

func positive(column string) Rule {
	return Rule{Name: column + " > 0", Column: column, Valid: func(v dataset.Value) bool {
		n, ok := v.Number()
		return ok && n > 0
	}}
}

func nonNegative(column string) Rule {
	return Rule{Name: column + " >= 0", Column: column, Valid: func(v dataset.Value) bool {
		n, ok := v.Number()
		return ok && n >= 0
	}}
}

func present(column string) Rule {
	return Rule{Name: column + " is set", Column: column, Valid: func(v dataset.Value) bool {
		return !v.IsNull()
	}}
}

// Entity describes how one raw extract becomes a warehouse table. Column names
// are canonical warehouse names; Aliases lists the raw names accepted for them.
type Entity struct {
	Table    schema.Table
	Key      string
	Aliases  map[string][]string
	Casing   scrub.Casing
	Fill     map[string]dataset.Value
	Currency []string
	Ints     []string
	Floats   []string
	Dates    map[string]string
	Rules    []Rule
}

func (e Entity) Name() string { return e.Table.Name }

func mustTable(name string) schema.Table {
	t, err := schema.Lookup(name)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	Customers = Entity{
		Table:   mustTable(schema.Customers),
		Key:     "customer_id",
		Aliases: map[string][]string{"name": {"customer_name"}},
		Casing:  scrub.CaseTitle,
		Fill:    map[string]dataset.Value{"loyalty_points": dataset.Int(0)},
		Ints:    []string{"customer_id", "loyalty_points"},
	}

	Products = Entity{
		Table:    mustTable(schema.Products),
		Key:      "product_id",
		Aliases:  map[string][]string{"product_name": {"productname"}},
		Casing:   scrub.CaseLower,
		Fill:     map[string]dataset.Value{"product_name": dataset.Text("Unknown Product")},
		Currency: []string{"unit_price"},
		Ints:     []string{"product_id", "stock_quantity"},
		Rules:    []Rule{positive("stock_quantity"), nonNegative("unit_price")},
	}

	Stores = Entity{
		Table:  mustTable(schema.Stores),
		Key:    "store_id",
		Casing: scrub.CaseTitle,
		Fill:   map[string]dataset.Value{"store_name": dataset.Text("Unknown Store")},
		Ints:   []string{"store_id"},
	}

	Campaigns = Entity{
		Table:    mustTable(schema.Campaigns),
		Key:      "campaign_id",
		Casing:   scrub.CaseLower,
		Fill:     map[string]dataset.Value{"campaign_name": dataset.Text("Unknown Campaign")},
		Currency: []string{"budget_usd"},
		Ints:     []string{"campaign_id"},
		Dates:    map[string]string{"start_date": dataset.DateLayout, "end_date": dataset.DateLayout},
	}

	Sales = Entity{
		Table:    mustTable(schema.Sales),
		Key:      "sale_id",
		Aliases:  map[string][]string{"sale_id": {"transaction_id"}},
		Casing:   scrub.CaseLower,
		Fill:     map[string]dataset.Value{"bonus_points": dataset.Int(0)},
		Currency: []string{"sale_amount"},
		Ints:     []string{"sale_id", "customer_id", "product_id", "store_id", "campaign_id", "bonus_points"},
		Dates:    map[string]string{"sale_date": dataset.DateLayout},
		Rules:    []Rule{positive("campaign_id"), present("sale_date"), present("customer_id"), present("product_id")},
	}
)

// Entities lists every entity in warehouse load order.
func Entities() []Entity {
	return []Entity{Customers, Products, Stores, Campaigns, Sales}
}

func ForName(name string) (Entity, error) {
	for _, e := range Entities() {
		if e.Name() == name {
			return e, nil
		}
	}
	return Entity{}, fmt.Errorf("unknown entity %q", name)
}
