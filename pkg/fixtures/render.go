// Package fixtures renders synthetic raw extracts for tests.
package fixtures

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.csv.tmpl
var templateFS embed.FS

// seq generates a sequence of integers from start to end (inclusive)
func seq(start, end int) []int {
	if start > end {
		return []int{}
	}
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

var templateFuncs = template.FuncMap{
	"seq": seq,
	"add": func(a, b int) int { return a + b },
	"mul": func(a, b int) int { return a * b },
	"mod": func(a, b int) int { return a % b },
	// money renders whole dollars the way the source systems export them.
	"money": func(dollars int) string { return fmt.Sprintf("$%d.00", dollars) },
}

var templates = template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.csv.tmpl"))

// Extracts sizes a synthetic data set. Customer c buys SalesFor(c) items, the
// k-th costing 10*c + k dollars. The average sale grows with the customer id
// while the total depends on how many items the customer bought.
type Extracts struct {
	Customers int
	Products  int
	MaxSales  int
}

// SalesFor cycles customer c through 1..MaxSales purchases.
func (e Extracts) SalesFor(c int) int {
	return 1 + (c-1)%e.MaxSales
}

// Render returns the raw CSV body for every entity, keyed by entity name.
func (e Extracts) Render() (map[string]string, error) {
	out := make(map[string]string, 3)
	for _, entity := range []string{"customers", "products", "sales"} {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, entity+".csv.tmpl", e); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", entity, err)
		}
		out[entity] = buf.String()
	}
	return out, nil
}

// CustomerSpend is the sale_amount total the rendered sales give customer c.
func (e Extracts) CustomerSpend(c int) int {
	k := e.SalesFor(c)
	return k*10*c + k*(k+1)/2
}
