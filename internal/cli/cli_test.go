package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartsales/smartsales/config"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	files := map[string]string{
		"customers_data.csv": "CustomerID,Name,Region,JoinDate,LoyaltyPoints,CustomerSegment\n1,alice smith,East,2021-01-01,10,gold\n2,bob jones,West,2021-02-01,,silver\n",
		"products_data.csv":  "ProductID,ProductName,Category,UnitPrice,StockQuantity,Supplier\n1,Widget,Tools,$4.50,3,Acme\n",
		"sales_data.csv":     "TransactionID,SaleDate,CustomerID,ProductID,StoreID,CampaignID,SaleAmount,BonusPoints,PaymentType\n1,2024-01-02,1,1,1,1,$10.00,,Card\n2,2024-01-03,2,1,1,1,$4.00,1,Cash\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestCLI_Run(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRaw(t, filepath.Join(root, "raw"))
	out := filepath.Join(root, "out")

	var stdout bytes.Buffer
	cmd := NewRootCmd(BuildInfo{Version: "test"})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{
		"--raw-dir", filepath.Join(root, "raw"),
		"--prepared-dir", filepath.Join(root, "prepared"),
		"--output-dir", out,
		"--warehouse-dsn", filepath.Join(root, "dw", "smart_sales.db"),
		"--env-file", filepath.Join(root, "missing.env"),
		"run",
	})
	require.NoError(t, cmd.Execute())

	text := stdout.String()
	require.Contains(t, text, "Entity")
	require.Contains(t, text, "customers")
	require.Contains(t, text, config.DefaultCubeName)

	cube, err := dataset.ReadCSVFile(filepath.Join(out, config.DefaultCubeName+".csv"))
	require.NoError(t, err)
	require.Equal(t, 2, cube.Len())
	require.Equal(t, dataset.Text("Alice Smith"), cube.Value(0, "name"))
}

func TestCLI_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing sources fail the prepare command", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		var stdout bytes.Buffer
		cmd := NewRootCmd(BuildInfo{})
		cmd.SetOut(&stdout)
		cmd.SetErr(&stdout)
		cmd.SetArgs([]string{
			"--raw-dir", filepath.Join(root, "raw"),
			"--warehouse-dsn", filepath.Join(root, "dw.db"),
			"--env-file", filepath.Join(root, "missing.env"),
			"prepare",
		})
		err := cmd.Execute()
		require.ErrorContains(t, err, "missing source file")
	})

	t.Run("invalid backend is rejected before opening anything", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		var stdout bytes.Buffer
		cmd := NewRootCmd(BuildInfo{})
		cmd.SetOut(&stdout)
		cmd.SetErr(&stdout)
		cmd.SetArgs([]string{
			"--warehouse-backend", "oracle",
			"--env-file", filepath.Join(root, "missing.env"),
			"load",
		})
		require.ErrorIs(t, cmd.Execute(), config.ErrInvalidSettings)
	})
}

func TestCLI_PrintPreview(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew([]string{"customer_id", "sale_ids"},
		[]dataset.Value{dataset.Int(1), dataset.List(dataset.Int(1), dataset.Int(2))},
		[]dataset.Value{dataset.Int(2), dataset.List(dataset.Int(3))},
	)
	var buf bytes.Buffer
	printPreview(&buf, ds, 1)
	require.Contains(t, buf.String(), "[1, 2]")
	require.NotContains(t, buf.String(), "[3]")
}
