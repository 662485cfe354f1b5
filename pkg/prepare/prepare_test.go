package prepare_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/prepare"
	"github.com/smartsales/smartsales/pkg/schema"
	"github.com/smartsales/smartsales/pkg/scrub"
	"github.com/stretchr/testify/require"
)

const rawSales = `TransactionID,SaleDate,CustomerID,ProductID,StoreID,CampaignID,SaleAmount,BonusPoints,PaymentType
1,2024-01-02,1,1,1,-1,$10.00,,Card
2,2024-01-03,1,1,1,0,$11.00,3,Card
3,2024-01-04,2,1,1,,$9.00,3,Card
4,2024-01-05,2,2,1,5,$12.50,, Cash
4,2024-01-05,2,2,1,5,$99.00,1,Cash
`

func readCSV(t *testing.T, s string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ReadCSV(strings.NewReader(s))
	require.NoError(t, err)
	return ds
}

func TestPrepare_Sales(t *testing.T) {
	t.Parallel()

	t.Run("removes rows with invalid campaign ids", func(t *testing.T) {
		t.Parallel()

		out, report, err := prepare.New(nil, prepare.Sales).Prepare(context.Background(), readCSV(t, rawSales))
		require.NoError(t, err)

		require.Equal(t, 1, out.Len())
		require.Equal(t, 1, report.Removed(prepare.StepDeduplicate))
		require.Equal(t, 3, report.Removed(prepare.StepValidate))
		require.Equal(t, 3, report.Violations["campaign_id > 0"])
		require.Equal(t, 4, report.TotalRemoved())
		require.Equal(t, 5, report.Input())
		require.Equal(t, 1, report.Output())

		sales, err := schema.Lookup(schema.Sales)
		require.NoError(t, err)
		require.Equal(t, sales.ColumnNames(), out.Columns())

		rec := out.Record(0)
		require.Equal(t, dataset.Int(4), rec.Get("sale_id"))
		require.Equal(t, dataset.Int(5), rec.Get("campaign_id"))
		require.Equal(t, dataset.Float(12.5), rec.Get("sale_amount"))
		require.Equal(t, dataset.Int(0), rec.Get("bonus_points"))
		require.Equal(t, dataset.Text("cash"), rec.Get("payment_type"))
		require.True(t, dataset.Date(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)).Equal(rec.Get("sale_date")))
	})

	t.Run("unparseable sale dates are counted and removed", func(t *testing.T) {
		t.Parallel()

		raw := readCSV(t, "sale_id,sale_date,customer_id,product_id,campaign_id\n1,not a date,1,1,3\n2,2024-02-01,1,1,3\n")
		out, report, err := prepare.New(nil, prepare.Sales).Prepare(context.Background(), raw)
		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		require.Equal(t, 1, report.ParseFailures["sale_date"])
		require.Equal(t, 1, report.Violations["sale_date is set"])

		issues := report.Issues()
		require.Len(t, issues, 2)
		require.True(t, errors.Is(issues[0], scrub.ErrParseFailure))
		require.True(t, errors.Is(issues[1], prepare.ErrInvalidRow))
	})

	t.Run("sales without a customer or product are removed", func(t *testing.T) {
		t.Parallel()

		raw := readCSV(t, "sale_id,sale_date,customer_id,product_id,campaign_id\n"+
			"1,2024-02-01,,1,3\n"+
			"2,2024-02-01,1,,3\n"+
			"3,2024-02-01,x,1,3\n"+
			"4,2024-02-01,1,1,3\n")
		out, report, err := prepare.New(nil, prepare.Sales).Prepare(context.Background(), raw)
		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		require.Equal(t, dataset.Int(4), out.Record(0).Get("sale_id"))
		require.Equal(t, 2, report.Violations["customer_id is set"])
		require.Equal(t, 1, report.Violations["product_id is set"])
		require.Equal(t, 1, report.ParseFailures["customer_id"])
	})

	t.Run("missing natural key is fatal", func(t *testing.T) {
		t.Parallel()

		_, _, err := prepare.New(nil, prepare.Sales).Prepare(context.Background(), readCSV(t, "campaign_id\n1\n"))
		require.ErrorIs(t, err, scrub.ErrMissingColumn)
	})

	t.Run("colliding column names are fatal", func(t *testing.T) {
		t.Parallel()

		_, _, err := prepare.New(nil, prepare.Sales).Prepare(context.Background(), readCSV(t, "Sale ID,sale_id\n1,1\n"))
		require.ErrorIs(t, err, scrub.ErrSchemaConflict)
	})

	t.Run("cancelled context stops before any step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := prepare.New(nil, prepare.Sales).Prepare(ctx, readCSV(t, rawSales))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestPrepare_Products(t *testing.T) {
	t.Parallel()

	raw := readCSV(t, `product_id,productname,category,unit_price,stock_quantity,supplier
1,Widget,Tools,$5,10,Acme
1,Widget Copy,Tools,$5,10,Acme
2,,Tools,$7,0,Acme
3,Gadget,Toys,,4,Acme
4,,Toys,$3,2,Acme
`)
	out, report, err := prepare.New(nil, prepare.Products).Prepare(context.Background(), raw)
	require.NoError(t, err)

	require.Equal(t, 1, report.Removed(prepare.StepDeduplicate))
	require.Equal(t, 2, report.Removed(prepare.StepValidate))
	require.Equal(t, 1, report.Violations["stock_quantity > 0"])
	require.Equal(t, 1, report.Violations["unit_price >= 0"])
	require.Equal(t, 2, out.Len())
	require.Equal(t, dataset.Text("widget"), out.Value(0, "product_name"))
	require.Equal(t, dataset.Text("Unknown Product"), out.Value(1, "product_name"))
	require.Equal(t, dataset.Float(3), out.Value(1, "unit_price"))
}

func TestPrepare_Customers(t *testing.T) {
	t.Parallel()

	raw := readCSV(t, "CustomerID,Name,Region,JoinDate,LoyaltyPoints,CustomerSegment,Extra\n1, ann smith ,East,2021-01-01,,gold,x\n2,,West,2022-01-01,5,silver,y\n")
	out, report, err := prepare.New(nil, prepare.Customers).Prepare(context.Background(), raw)
	require.NoError(t, err)

	require.Zero(t, report.TotalRemoved())
	require.Equal(t, []string{"extra"}, report.Dropped)
	require.Equal(t, 2, out.Len())
	require.Equal(t, dataset.Text("Ann Smith"), out.Value(0, "name"))
	require.Equal(t, dataset.Int(0), out.Value(0, "loyalty_points"))
	require.True(t, out.Value(1, "name").IsNull())
}

func TestPrepare_Independence(t *testing.T) {
	t.Parallel()

	customers := readCSV(t, "customer_id,name\n1,a\n2,b\n")
	sales := readCSV(t, rawSales)

	first, _, err := prepare.New(nil, prepare.Customers).Prepare(context.Background(), customers)
	require.NoError(t, err)
	_, _, err = prepare.New(nil, prepare.Sales).Prepare(context.Background(), sales)
	require.NoError(t, err)
	again, _, err := prepare.New(nil, prepare.Customers).Prepare(context.Background(), customers)
	require.NoError(t, err)

	require.True(t, dataset.Equal(first, again))
	require.Equal(t, 2, again.Len())
	require.Equal(t, 5, sales.Len())
}

func TestPrepare_ForName(t *testing.T) {
	t.Parallel()

	for _, tbl := range schema.Tables {
		e, err := prepare.ForName(tbl.Name)
		require.NoError(t, err)
		require.Equal(t, tbl.Name, e.Name())
	}
	_, err := prepare.ForName("orders")
	require.Error(t, err)
}
