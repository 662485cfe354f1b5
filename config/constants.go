package config

const (
	// Directory defaults, relative to the working directory.
	DefaultRawDir      = "data/raw"
	DefaultPreparedDir = "data/prepared"
	DefaultOutputDir   = "data/olap_cubing_outputs"

	// Warehouse defaults.
	DefaultWarehouseBackend = "sqlite"
	DefaultWarehouseDSN     = "data/dw/smart_sales.db"
	DefaultDuckDBDSN        = "data/dw/smart_sales.duckdb"

	// PreparedSuffix is appended to the entity name for prepared files.
	PreparedSuffix = "_data_prepared.csv"

	// Default cube: average transaction size per customer.
	DefaultCubeName   = "multidimensional_olap_cube"
	DefaultCubeTopN   = 20
	DefaultOthersName = "Others"
)

// DefaultSources maps entities to raw extract file names.
func DefaultSources() map[string]string {
	return map[string]string{
		"customers": "customers_data.csv",
		"products":  "products_data.csv",
		"sales":     "sales_data.csv",
	}
}
