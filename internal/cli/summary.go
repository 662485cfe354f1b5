package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/pipeline"
	"github.com/smartsales/smartsales/pkg/prepare"
	"github.com/smartsales/smartsales/pkg/warehouse"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func printPrepareSummary(w io.Writer, prepared []pipeline.Prepared) {
	header := []string{"Entity", "Input"}
	for _, step := range prepare.Steps {
		header = append(header, string(step))
	}
	header = append(header, "Output", "Parse\nFailures", "Path")

	table := newTable(w, header)
	for _, pr := range prepared {
		row := []string{pr.Entity, strconv.Itoa(pr.Report.Input())}
		for _, step := range prepare.Steps {
			row = append(row, strconv.Itoa(pr.Report.Removed(step)))
		}
		failures := 0
		for _, n := range pr.Report.ParseFailures {
			failures += n
		}
		row = append(row, strconv.Itoa(pr.Report.Output()), strconv.Itoa(failures), pr.Path)
		table.Append(row)
	}
	table.Render()
}

func printLoadSummary(w io.Writer, res *warehouse.LoadResult) {
	fmt.Fprintln(w, "Run:", res.RunID)
	fmt.Fprintln(w, "Duration:", res.Duration)

	names := make([]string, 0, len(res.Rows))
	for name := range res.Rows {
		names = append(names, name)
	}
	sort.Strings(names)

	table := newTable(w, []string{"Table", "Rows"})
	for _, name := range names {
		table.Append([]string{name, strconv.Itoa(res.Rows[name])})
	}
	table.Render()
}

func printCubeSummary(w io.Writer, cubes []pipeline.CubeResult) {
	table := newTable(w, []string{"Cube", "Rows", "Columns", "Path", "Top N Path"})
	for _, c := range cubes {
		table.Append([]string{
			c.Name,
			strconv.Itoa(c.Cube.Len()),
			strconv.Itoa(c.Cube.Width()),
			c.Path,
			c.TopPath,
		})
	}
	table.Render()
}

// printPreview renders at most limit rows of ds.
func printPreview(w io.Writer, ds *dataset.Dataset, limit int) {
	table := newTable(w, ds.Columns())
	for i := 0; i < ds.Len() && i < limit; i++ {
		row := ds.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		table.Append(cells)
	}
	table.Render()
}
