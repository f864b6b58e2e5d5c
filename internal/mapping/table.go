package mapping

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders the rules one stream per row.
func (r Rules) Table() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Target", "Enabled", "Op", "Signal", "Curve", "Input", "Output"})

	for i, rule := range r {
		for j, stream := range rule.Streams {
			index, target, enabled, op := "", "", "", ""
			if j == 0 {
				index = strconv.Itoa(i + 1)
				target = rule.Target
				enabled = strconv.FormatBool(rule.Enabled)
				op = string(rule.Operation)
			}
			tw.AppendRow(table.Row{
				index,
				target,
				enabled,
				op,
				stream.Signal,
				string(stream.Interpolation),
				formatRange(stream.InputMin, stream.InputMax),
				formatRange(stream.OutputMin, stream.OutputMax),
			})
		}
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 8, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatRange(lo, hi float64) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strconv.FormatFloat(lo, 'g', 4, 64))
	b.WriteString(", ")
	b.WriteString(strconv.FormatFloat(hi, 'g', 4, 64))
	b.WriteByte(']')
	return b.String()
}
