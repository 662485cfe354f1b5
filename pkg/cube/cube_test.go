package cube_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/smartsales/smartsales/pkg/cube"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/stretchr/testify/require"
)

var (
	null = dataset.Null()
	i64  = dataset.Int
	f64  = dataset.Float
	txt  = dataset.Text
)

var valueComparer = cmp.Comparer(func(a, b dataset.Value) bool { return a.Equal(b) })

func cells(ds *dataset.Dataset) [][]dataset.Value {
	out := make([][]dataset.Value, ds.Len())
	for i := range out {
		out[i] = ds.Row(i)
	}
	return out
}

func salesRows() *dataset.Dataset {
	return dataset.MustNew([]string{"customer_id", "sale_amount", "sale_id"},
		[]dataset.Value{i64(1), i64(10), txt("a")},
		[]dataset.Value{i64(1), i64(20), txt("b")},
		[]dataset.Value{i64(2), i64(5), txt("c")},
	)
}

func avgSpec() cube.Spec {
	return cube.Spec{
		Dimensions: []string{"customer_id"},
		Metrics: []cube.Metric{
			{Column: "sale_amount", Aggregations: []cube.Aggregation{cube.Sum}},
			{Column: "sale_id", Aggregations: []cube.Aggregation{cube.Count}},
		},
		IDColumn: "sale_id",
		Derived: []cube.Derived{
			{Name: "avg_transaction_size", Op: cube.Div, Left: "sale_amount_sum", Right: "sale_id_count"},
		},
	}
}

func TestCube_Build(t *testing.T) {
	t.Parallel()

	t.Run("names columns and keeps contributing ids", func(t *testing.T) {
		t.Parallel()

		out, err := cube.Build(salesRows(), avgSpec())
		require.NoError(t, err)
		require.Equal(t, []string{"customer_id", "sale_amount_sum", "sale_id_count", "sale_ids", "avg_transaction_size"}, out.Columns())

		want := [][]dataset.Value{
			{i64(1), i64(30), i64(2), dataset.List(txt("a"), txt("b")), f64(15)},
			{i64(2), i64(5), i64(1), dataset.List(txt("c")), f64(5)},
		}
		require.Empty(t, cmp.Diff(want, cells(out), valueComparer))
	})

	t.Run("integer overflow widens to float", func(t *testing.T) {
		t.Parallel()

		ds := dataset.MustNew([]string{"region", "qty", "id"},
			[]dataset.Value{txt("east"), i64(math.MaxInt64), i64(1)},
			[]dataset.Value{txt("east"), i64(1), i64(2)},
			[]dataset.Value{txt("west"), i64(3), i64(3)},
		)
		out, err := cube.Build(ds, cube.Spec{
			Dimensions: []string{"region"},
			Metrics: []cube.Metric{
				{Column: "qty", Aggregations: []cube.Aggregation{cube.Sum, cube.Max}},
				{Column: "id", Aggregations: []cube.Aggregation{cube.Count}},
			},
			IDColumn: "id",
			Derived: []cube.Derived{
				{Name: "scaled", Op: cube.Mul, Left: "qty_max", Right: "id_count"},
				{Name: "spread", Op: cube.Sub, Left: "qty_max", Right: "id_count"},
			},
		})
		require.NoError(t, err)

		east, west := out.Record(0), out.Record(1)
		require.Equal(t, f64(float64(math.MaxInt64)+1), east.Get("qty_sum"))
		require.Equal(t, f64(float64(math.MaxInt64)*2), east.Get("scaled"))
		require.Equal(t, i64(math.MaxInt64-2), east.Get("spread"))
		require.Equal(t, i64(3), west.Get("qty_sum"))
		require.Equal(t, i64(3), west.Get("scaled"))
	})

	t.Run("is deterministic across runs", func(t *testing.T) {
		t.Parallel()

		a, err := cube.Build(salesRows(), avgSpec())
		require.NoError(t, err)
		b, err := cube.Build(salesRows(), avgSpec())
		require.NoError(t, err)
		require.True(t, dataset.Equal(a, b))
	})

	t.Run("null dimension values form their own group", func(t *testing.T) {
		t.Parallel()

		ds := dataset.MustNew([]string{"region", "amount", "id"},
			[]dataset.Value{null, f64(1.5), i64(1)},
			[]dataset.Value{txt("east"), f64(2), i64(2)},
			[]dataset.Value{null, f64(3), i64(3)},
		)
		out, err := cube.Build(ds, cube.Spec{
			Dimensions: []string{"region"},
			Metrics:    []cube.Metric{{Column: "amount", Aggregations: []cube.Aggregation{cube.Sum, cube.Max}}},
			IDColumn:   "id",
		})
		require.NoError(t, err)
		want := [][]dataset.Value{
			{null, f64(4.5), f64(3), dataset.List(i64(1), i64(3))},
			{txt("east"), f64(2), f64(2), dataset.List(i64(2))},
		}
		require.Empty(t, cmp.Diff(want, cells(out), valueComparer))
	})

	t.Run("groups on every dimension", func(t *testing.T) {
		t.Parallel()

		ds := dataset.MustNew([]string{"store", "product", "qty", "id"},
			[]dataset.Value{i64(1), i64(7), i64(2), i64(10)},
			[]dataset.Value{i64(1), i64(8), null, i64(11)},
			[]dataset.Value{i64(1), i64(7), i64(4), i64(12)},
		)
		out, err := cube.Build(ds, cube.Spec{
			Dimensions:  []string{"store", "product"},
			Metrics:     []cube.Metric{{Column: "qty", Aggregations: []cube.Aggregation{cube.Mean, cube.Count, cube.Min}}},
			IDColumn:    "id",
			TraceColumn: "rows",
		})
		require.NoError(t, err)
		require.Equal(t, []string{"store", "product", "qty_mean", "qty_count", "qty_min", "rows"}, out.Columns())
		want := [][]dataset.Value{
			{i64(1), i64(7), f64(3), i64(2), i64(2), dataset.List(i64(10), i64(12))},
			{i64(1), i64(8), null, i64(0), null, dataset.List(i64(11))},
		}
		require.Empty(t, cmp.Diff(want, cells(out), valueComparer))
	})

	t.Run("division by zero fails by default", func(t *testing.T) {
		t.Parallel()

		ds := dataset.MustNew([]string{"customer_id", "sale_amount", "sale_id", "refund"},
			[]dataset.Value{i64(1), i64(10), txt("a"), null},
		)
		spec := cube.Spec{
			Dimensions: []string{"customer_id"},
			Metrics: []cube.Metric{
				{Column: "sale_amount", Aggregations: []cube.Aggregation{cube.Sum}},
				{Column: "refund", Aggregations: []cube.Aggregation{cube.Count}},
			},
			IDColumn: "sale_id",
			Derived:  []cube.Derived{{Name: "ratio", Op: cube.Div, Left: "sale_amount_sum", Right: "refund_count"}},
		}
		_, err := cube.Build(ds, spec)
		require.ErrorIs(t, err, cube.ErrDivisionByZero)

		spec.Derived[0].OnZero = cube.ZeroNull
		out, err := cube.Build(ds, spec)
		require.NoError(t, err)
		require.True(t, out.Value(0, "ratio").IsNull())
	})

	t.Run("missing source column is an error", func(t *testing.T) {
		t.Parallel()

		spec := avgSpec()
		spec.Dimensions = []string{"store_id"}
		_, err := cube.Build(salesRows(), spec)
		require.ErrorIs(t, err, cube.ErrMissingColumn)
	})

	t.Run("sum over text is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := cube.Build(salesRows(), cube.Spec{
			Dimensions: []string{"customer_id"},
			Metrics:    []cube.Metric{{Column: "sale_id", Aggregations: []cube.Aggregation{cube.Sum}}},
			IDColumn:   "sale_id",
		})
		require.ErrorIs(t, err, cube.ErrNonNumeric)
	})
}

func TestCube_Spec(t *testing.T) {
	t.Parallel()

	t.Run("column names are pure functions of column and function", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "sale_amount_sum", cube.ColumnName("sale_amount", "sum"))
		require.Equal(t, "sale_amount", cube.ColumnName("sale_amount", ""))
		require.Equal(t, "sale_amount", cube.ColumnName("sale_amount_", ""))
	})

	collisions := map[string]cube.Spec{
		"dimension and aggregate": {
			Dimensions: []string{"sale_amount_sum"},
			Metrics:    []cube.Metric{{Column: "sale_amount", Aggregations: []cube.Aggregation{cube.Sum}}},
			IDColumn:   "sale_id",
		},
		"repeated aggregation": {
			Dimensions: []string{"customer_id"},
			Metrics: []cube.Metric{
				{Column: "sale_amount", Aggregations: []cube.Aggregation{cube.Sum}},
				{Column: "sale_amount", Aggregations: []cube.Aggregation{cube.Sum}},
			},
			IDColumn: "sale_id",
		},
		"trace column and dimension": {
			Dimensions: []string{"sale_ids"},
			IDColumn:   "sale_id",
		},
		"derived and aggregate": {
			Dimensions: []string{"customer_id"},
			Metrics:    []cube.Metric{{Column: "x", Aggregations: []cube.Aggregation{cube.Sum, cube.Count}}},
			IDColumn:   "id",
			Derived:    []cube.Derived{{Name: "x_sum", Op: cube.Div, Left: "x_sum", Right: "x_count"}},
		},
	}
	for name, spec := range collisions {
		t.Run(name+" collide at construction", func(t *testing.T) {
			t.Parallel()

			err := spec.Validate()
			require.ErrorIs(t, err, cube.ErrColumnCollision)
		})
	}

	t.Run("derived metrics must reference existing columns", func(t *testing.T) {
		t.Parallel()

		spec := avgSpec()
		spec.Derived[0].Right = "sale_id_sum"
		require.ErrorIs(t, spec.Validate(), cube.ErrInvalidSpec)
	})

	t.Run("parses aggregation names", func(t *testing.T) {
		t.Parallel()

		a, err := cube.ParseAggregation(" AVG ")
		require.NoError(t, err)
		require.Equal(t, cube.Mean, a)
		a, err = cube.ParseAggregation("nunique")
		require.NoError(t, err)
		require.Equal(t, cube.NUnique, a)
		_, err = cube.ParseAggregation("median")
		require.ErrorIs(t, err, cube.ErrUnknownAggregation)
	})
}

func TestCube_Verify(t *testing.T) {
	t.Parallel()

	t.Run("built cubes reconstruct their aggregates", func(t *testing.T) {
		t.Parallel()

		src := salesRows()
		out, err := cube.Build(src, avgSpec())
		require.NoError(t, err)
		require.NoError(t, cube.Verify(src, out, avgSpec()))
	})

	t.Run("tampered aggregates are detected", func(t *testing.T) {
		t.Parallel()

		src := salesRows()
		out, err := cube.Build(src, avgSpec())
		require.NoError(t, err)
		bad, err := out.MapColumn("sale_amount_sum", func(v dataset.Value) dataset.Value { return i64(99) })
		require.NoError(t, err)
		require.ErrorIs(t, cube.Verify(src, bad, avgSpec()), cube.ErrTraceMismatch)
	})

	t.Run("ids from another group are detected", func(t *testing.T) {
		t.Parallel()

		src := salesRows()
		out, err := cube.Build(src, avgSpec())
		require.NoError(t, err)
		ids, err := out.Column("sale_ids")
		require.NoError(t, err)
		ids[0], ids[1] = ids[1], ids[0]
		swapped, err := out.WithColumn("sale_ids", ids)
		require.NoError(t, err)
		require.ErrorIs(t, cube.Verify(src, swapped, avgSpec()), cube.ErrTraceMismatch)
	})
}

func TestCube_Rollup(t *testing.T) {
	t.Parallel()

	src := dataset.MustNew([]string{"customer_id", "sale_amount", "sale_id"},
		[]dataset.Value{i64(1), i64(10), i64(1)},
		[]dataset.Value{i64(2), i64(90), i64(2)},
		[]dataset.Value{i64(3), i64(4), i64(3)},
		[]dataset.Value{i64(3), i64(2), i64(4)},
	)
	c, err := cube.Build(src, avgSpec())
	require.NoError(t, err)
	names := dataset.MustNew([]string{"customer_id", "name"},
		[]dataset.Value{i64(1), txt("Ann")},
		[]dataset.Value{i64(2), txt("Bob")},
		[]dataset.Value{i64(3), txt("Cat")},
	)
	c, err = dataset.LeftJoin(c, names, "customer_id", "name")
	require.NoError(t, err)

	t.Run("folds the tail into an others row", func(t *testing.T) {
		t.Parallel()

		out, err := cube.Rollup(c, cube.TopN{
			By:          "avg_transaction_size",
			N:           1,
			LabelColumn: "name",
			Sum:         []string{"sale_amount_sum", "sale_id_count"},
			Derived:     avgSpec().Derived,
		})
		require.NoError(t, err)
		require.Equal(t, 2, out.Len())
		require.Equal(t, txt("Bob"), out.Value(0, "name"))

		require.Equal(t, txt("Others"), out.Value(1, "name"))
		require.Equal(t, i64(16), out.Value(1, "sale_amount_sum"))
		require.Equal(t, i64(3), out.Value(1, "sale_id_count"))
		require.True(t, f64(16.0/3.0).Equal(out.Value(1, "avg_transaction_size")))
		require.True(t, out.Value(1, "sale_ids").IsNull())
		require.True(t, out.Value(1, "customer_id").IsNull())
	})

	t.Run("no fold when everything fits", func(t *testing.T) {
		t.Parallel()

		out, err := cube.Rollup(c, cube.TopN{By: "avg_transaction_size", N: 10})
		require.NoError(t, err)
		require.Equal(t, c.Len(), out.Len())
		require.Equal(t, i64(2), out.Value(0, "customer_id"))
		require.Equal(t, i64(1), out.Value(1, "customer_id"))
	})

	t.Run("rejects non-positive n", func(t *testing.T) {
		t.Parallel()

		_, err := cube.Rollup(c, cube.TopN{By: "avg_transaction_size"})
		require.Error(t, err)
	})
}
