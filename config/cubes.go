package config

import (
	"fmt"

	"github.com/smartsales/smartsales/pkg/cube"
	"github.com/smartsales/smartsales/pkg/schema"
	"gopkg.in/yaml.v3"
)

// MetricConfig aggregates one column with the listed functions.
type MetricConfig struct {
	Column    string
	Functions []string
}

// MetricList decodes a YAML mapping of column to function (or list of
// functions) while keeping the mapping's order, which fixes the output column
// order.
type MetricList []MetricConfig

func (m *MetricList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: metrics must be a mapping of column to functions", node.Line)
	}
	out := make(MetricList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		mc := MetricConfig{Column: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			mc.Functions = []string{val.Value}
		case yaml.SequenceNode:
			if err := val.Decode(&mc.Functions); err != nil {
				return fmt.Errorf("line %d: metric %q: %w", val.Line, key.Value, err)
			}
		default:
			return fmt.Errorf("line %d: metric %q must be a function or a list of functions", val.Line, key.Value)
		}
		out = append(out, mc)
	}
	*m = out
	return nil
}

type DerivedConfig struct {
	Name   string `yaml:"name"`
	Op     string `yaml:"op"`
	Left   string `yaml:"left"`
	Right  string `yaml:"right"`
	OnZero string `yaml:"on_zero"`
}

// JoinConfig enriches a cube with columns from another warehouse table.
type JoinConfig struct {
	Table   string   `yaml:"table"`
	Key     string   `yaml:"key"`
	Columns []string `yaml:"columns"`
}

// TopNConfig writes an extra output keeping the N largest rows.
type TopNConfig struct {
	By          string   `yaml:"by"`
	N           int      `yaml:"n"`
	LabelColumn string   `yaml:"label_column"`
	Label       string   `yaml:"label"`
	Sum         []string `yaml:"sum"`
	Output      string   `yaml:"output"`
}

type CubeConfig struct {
	Name        string          `yaml:"name"`
	Source      string          `yaml:"source"`
	Dimensions  []string        `yaml:"dimensions"`
	Metrics     MetricList      `yaml:"metrics"`
	IDColumn    string          `yaml:"id_column"`
	TraceColumn string          `yaml:"trace_column"`
	Derived     []DerivedConfig `yaml:"derived"`
	Join        *JoinConfig     `yaml:"join"`
	TopN        *TopNConfig     `yaml:"top_n"`
	Output      string          `yaml:"output"`
}

// DefaultCube summarizes sales per customer with the average transaction size,
// named after the customer, plus a rollup of the customers with the largest
// average transaction.
func DefaultCube() CubeConfig {
	return CubeConfig{
		Name:       DefaultCubeName,
		Source:     schema.Sales,
		Dimensions: []string{"customer_id"},
		Metrics: MetricList{
			{Column: "sale_amount", Functions: []string{"sum"}},
			{Column: "sale_id", Functions: []string{"count"}},
		},
		IDColumn: "sale_id",
		Derived: []DerivedConfig{
			{Name: "avg_transaction_size", Op: "div", Left: "sale_amount_sum", Right: "sale_id_count"},
		},
		Join: &JoinConfig{Table: schema.Customers, Key: "customer_id", Columns: []string{"name"}},
		TopN: &TopNConfig{
			By:          "avg_transaction_size",
			N:           DefaultCubeTopN,
			LabelColumn: "name",
			Sum:         []string{"sale_amount_sum", "sale_id_count"},
			Output:      "top_customers.csv",
		},
		Output: DefaultCubeName + ".csv",
	}
}

func (c *CubeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("cube: name is required")
	}
	if c.Source == "" {
		c.Source = schema.Sales
	}
	if _, err := schema.Lookup(c.Source); err != nil {
		return fmt.Errorf("cube %q: %w", c.Name, err)
	}
	if c.Output == "" {
		c.Output = c.Name + ".csv"
	}
	spec, err := c.Spec()
	if err != nil {
		return fmt.Errorf("cube %q: %w", c.Name, err)
	}
	known := make(map[string]bool)
	for _, col := range spec.Columns() {
		known[col] = true
	}
	if c.Join != nil {
		if _, err := schema.Lookup(c.Join.Table); err != nil {
			return fmt.Errorf("cube %q: join: %w", c.Name, err)
		}
		if c.Join.Key == "" || len(c.Join.Columns) == 0 {
			return fmt.Errorf("cube %q: join needs a key and at least one column", c.Name)
		}
		for _, col := range c.Join.Columns {
			known[col] = true
		}
	}
	if c.TopN != nil {
		if c.TopN.Label == "" {
			c.TopN.Label = DefaultOthersName
		}
		if c.TopN.Output == "" {
			c.TopN.Output = c.Name + "_top.csv"
		}
		top, err := c.Rollup()
		if err != nil {
			return fmt.Errorf("cube %q: %w", c.Name, err)
		}
		if err := top.Validate(); err != nil {
			return fmt.Errorf("cube %q: %w", c.Name, err)
		}
		for _, col := range append([]string{top.By, top.LabelColumn}, top.Sum...) {
			if col != "" && !known[col] {
				return fmt.Errorf("cube %q: top_n: %w: %q", c.Name, cube.ErrMissingColumn, col)
			}
		}
	}
	return nil
}

// Spec converts the configuration into a validated cube.Spec.
func (c *CubeConfig) Spec() (cube.Spec, error) {
	spec := cube.Spec{
		Dimensions:  append([]string(nil), c.Dimensions...),
		IDColumn:    c.IDColumn,
		TraceColumn: c.TraceColumn,
	}
	for _, m := range c.Metrics {
		metric := cube.Metric{Column: m.Column}
		for _, fn := range m.Functions {
			a, err := cube.ParseAggregation(fn)
			if err != nil {
				return cube.Spec{}, err
			}
			metric.Aggregations = append(metric.Aggregations, a)
		}
		spec.Metrics = append(spec.Metrics, metric)
	}
	for _, d := range c.Derived {
		op, err := cube.ParseOp(d.Op)
		if err != nil {
			return cube.Spec{}, err
		}
		onZero, err := cube.ParseZeroPolicy(d.OnZero)
		if err != nil {
			return cube.Spec{}, err
		}
		spec.Derived = append(spec.Derived, cube.Derived{
			Name: d.Name, Op: op, Left: d.Left, Right: d.Right, OnZero: onZero,
		})
	}
	if err := spec.Validate(); err != nil {
		return cube.Spec{}, err
	}
	return spec, nil
}

// Rollup returns the top-N settings, recomputing the cube's derived metrics
// on the folded row.
func (c *CubeConfig) Rollup() (cube.TopN, error) {
	if c.TopN == nil {
		return cube.TopN{}, fmt.Errorf("cube %q has no top_n section", c.Name)
	}
	spec, err := c.Spec()
	if err != nil {
		return cube.TopN{}, err
	}
	return cube.TopN{
		By:          c.TopN.By,
		N:           c.TopN.N,
		LabelColumn: c.TopN.LabelColumn,
		Label:       c.TopN.Label,
		Sum:         append([]string(nil), c.TopN.Sum...),
		Derived:     spec.Derived,
	}, nil
}
