package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/schema"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testDB opens a file-backed database of the given backend in a temp dir.
func testDB(t *testing.T, backend Backend) *SQLDB {
	t.Helper()
	db, err := Open(context.Background(), testLogger(), Config{
		Backend: backend,
		DSN:     filepath.Join(t.TempDir(), "warehouse.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLoader(t *testing.T, db DB) *Loader {
	t.Helper()
	l, err := NewLoader(LoaderConfig{Logger: testLogger(), DB: db, Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)
	return l
}

func customers(rows ...[]dataset.Value) *dataset.Dataset {
	return dataset.MustNew([]string{"customer_id", "name", "region", "join_date", "loyalty_points", "customer_segment"}, rows...)
}

func customer(id int64, name string) []dataset.Value {
	return []dataset.Value{dataset.Int(id), dataset.Text(name), dataset.Text("east"), dataset.Text("2021-01-01"), dataset.Int(0), dataset.Null()}
}

func products(rows ...[]dataset.Value) *dataset.Dataset {
	return dataset.MustNew([]string{"product_id", "product_name", "category", "unit_price", "stock_quantity", "supplier"}, rows...)
}

func product(id int64, name string) []dataset.Value {
	return []dataset.Value{dataset.Int(id), dataset.Text(name), dataset.Text("tools"), dataset.Float(4), dataset.Int(3), dataset.Text("acme")}
}

func sales(rows ...[]dataset.Value) *dataset.Dataset {
	return dataset.MustNew([]string{"sale_id", "customer_id", "product_id", "store_id", "campaign_id", "sale_amount", "sale_date", "bonus_points", "payment_type"}, rows...)
}

func sale(id, customerID, productID int64, amount float64) []dataset.Value {
	return []dataset.Value{
		dataset.Int(id), dataset.Int(customerID), dataset.Int(productID), dataset.Int(1), dataset.Int(1),
		dataset.Float(amount), dataset.Text("2024-01-05"), dataset.Int(0), dataset.Text("card"),
	}
}

func tableIDs(t *testing.T, db DB, table string) []int64 {
	t.Helper()
	tbl, err := schema.Lookup(table)
	require.NoError(t, err)
	ds, err := NewReader(testLogger(), db).Table(context.Background(), table, tbl.PrimaryKey())
	require.NoError(t, err)
	var out []int64
	for i := 0; i < ds.Len(); i++ {
		n, ok := ds.Value(i, tbl.PrimaryKey()).Int64()
		require.True(t, ok)
		out = append(out, n)
	}
	return out
}

// failingDB fails every operation.
type failingDB struct{}

func (f *failingDB) Dialect() Dialect {
	d, _ := DialectFor(BackendSQLite)
	return d
}

func (f *failingDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errors.New("database error")
}

func (f *failingDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("database error")
}

func (f *failingDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return nil, errors.New("failed to begin transaction")
}

func (f *failingDB) Close() error {
	return nil
}
