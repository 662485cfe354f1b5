package warehouse

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/schema"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendDuckDB   Backend = "duckdb"
	BackendPostgres Backend = "postgres"
)

type foreignKeyMode int

const (
	// fkOmit leaves references undeclared on engines that check them eagerly
	// inside a transaction.
	fkOmit foreignKeyMode = iota
	fkDeclare
	fkDeferred
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Backend      Backend
	driver       string
	numbered     bool
	foreignKeys  foreignKeyMode
	singleWriter bool
	textDates    bool
}

func DialectFor(b Backend) (Dialect, error) {
	switch b {
	case BackendSQLite:
		return Dialect{Backend: b, driver: "sqlite", foreignKeys: fkDeclare, singleWriter: true, textDates: true}, nil
	case BackendDuckDB:
		return Dialect{Backend: b, driver: "duckdb", foreignKeys: fkOmit, singleWriter: true}, nil
	case BackendPostgres:
		return Dialect{Backend: b, driver: "pgx", numbered: true, foreignKeys: fkDeferred}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported warehouse backend %q", b)
	}
}

func (d Dialect) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) CreateTable(t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, c := range t.Columns {
		def := d.Quote(c.Name) + " " + d.columnType(c.Type)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if d.foreignKeys != fkOmit {
		for _, fk := range t.ForeignKeys {
			def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", d.Quote(fk.Column), d.Quote(fk.RefTable), d.Quote(fk.RefColumn))
			if d.foreignKeys == fkDeferred {
				def += " DEFERRABLE INITIALLY DEFERRED"
			}
			defs = append(defs, def)
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Quote(t.Name), strings.Join(defs, ",\n\t"))
}

// columnType spells ct for the backend. REAL is single precision outside
// SQLite, so amounts are widened to double precision there.
func (d Dialect) columnType(ct schema.ColumnType) string {
	if ct != schema.TypeReal {
		return string(ct)
	}
	switch d.Backend {
	case BackendDuckDB:
		return "DOUBLE"
	case BackendPostgres:
		return "DOUBLE PRECISION"
	}
	return string(ct)
}

func (d Dialect) Insert(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// Arg converts v into a driver argument suited to a column of type ct.
// Floats bound for an INTEGER column are rounded half away from zero and
// fail with ErrOutOfRange when the result does not fit in an int64.
func (d Dialect) Arg(ct schema.ColumnType, v dataset.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch ct {
	case schema.TypeInteger:
		if f, ok := v.Float64(); ok {
			n, ok := roundHalfAway(f)
			if !ok {
				return nil, fmt.Errorf("%w: %v", ErrOutOfRange, f)
			}
			return n, nil
		}
	case schema.TypeReal:
		if n, ok := v.Number(); ok {
			return n, nil
		}
	case schema.TypeText:
		return v.String(), nil
	case schema.TypeDate:
		if t, ok := v.Time(); ok {
			if d.textDates {
				return t.Format(dataset.DateLayout), nil
			}
			return t, nil
		}
	}
	return v.Any(), nil
}

func roundHalfAway(f float64) (int64, bool) {
	r := math.Round(f)
	if math.IsNaN(r) || r < -(1<<63) || r >= 1<<63 {
		return 0, false
	}
	return int64(r), true
}

// fromDriver converts a scanned driver value into a dataset value.
func fromDriver(v any) dataset.Value {
	switch x := v.(type) {
	case nil:
		return dataset.Null()
	case int64:
		return dataset.Int(x)
	case int32:
		return dataset.Int(int64(x))
	case int16:
		return dataset.Int(int64(x))
	case int8:
		return dataset.Int(int64(x))
	case int:
		return dataset.Int(int64(x))
	case uint32:
		return dataset.Int(int64(x))
	case uint64:
		return dataset.Int(int64(x))
	case float64:
		return dataset.Float(x)
	case float32:
		return dataset.Float(float64(x))
	case bool:
		if x {
			return dataset.Int(1)
		}
		return dataset.Int(0)
	case string:
		return dataset.Text(x)
	case []byte:
		return dataset.Text(string(x))
	case time.Time:
		return dataset.Date(x)
	default:
		return dataset.Text(fmt.Sprint(x))
	}
}
