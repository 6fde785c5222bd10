package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Render writes the summary as markdown sections with aligned tables.
func Render(w io.Writer, sum Summary) error {
	var b strings.Builder

	b.WriteString("## Country profile\n\n")
	if c := sum.Country; c != nil {
		writeTable(&b, []string{"Field", "Value"}, [][]string{
			{"Country", dash(c.Name)},
			{"Income level", dash(c.IncomeLevel)},
			{"Region", dash(c.Region)},
			{"ISO code", dash(c.ISO)},
		})
		if c.MiddleIncome {
			b.WriteString("\nMiddle-income country: access to higher education is shaped by it.\n")
		}
	} else {
		b.WriteString("No country information found.\n")
	}

	b.WriteString("\n## Universities\n\n")
	u := sum.Universities
	if u.Total == 0 {
		b.WriteString("No university data available.\n")
	} else {
		fmt.Fprintf(&b, "Total universities: %d  \nUnique domains: %d\n\n", u.Total, u.UniqueDomains)
		rows := make([][]string, 0, len(u.Top))
		for i, r := range u.Top {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				r.Name,
				strconv.Itoa(len(r.Domains)),
				dash(strings.Join(r.Domains, ", ")),
				dash(r.WebPage),
			})
		}
		writeTable(&b, []string{"#", "University", "Domains", "Domain list", "Web page"}, rows)
	}

	b.WriteString("\n## Tertiary enrollment\n\n")
	ind := sum.Indicator
	if ind.Latest == nil {
		b.WriteString("No enrollment data available.\n")
	} else {
		fmt.Fprintf(&b, "Current rate (%d): %.2f%%", ind.Latest.Year, ind.Latest.Value)
		if ind.Delta != nil {
			fmt.Fprintf(&b, " (%+.2f%% vs previous year)", *ind.Delta)
		}
		b.WriteString("  \n")
		fmt.Fprintf(&b, "Highest: %d -> %.2f%%  \n", ind.Max.Year, ind.Max.Value)
		fmt.Fprintf(&b, "Lowest: %d -> %.2f%%\n\n", ind.Min.Year, ind.Min.Value)

		rows := make([][]string, 0, len(ind.Decades))
		for _, d := range ind.Decades {
			rows = append(rows, []string{fmt.Sprintf("%ds", d.Decade), fmt.Sprintf("%.2f", d.Average), strconv.Itoa(d.Count)})
		}
		writeTable(&b, []string{"Decade", "Average (%)", "Years"}, rows)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}

// writeTable pads every cell to its column's display width.
func writeTable(b *strings.Builder, header []string, rows [][]string) {
	esc := strings.NewReplacer("|", `\|`, "\n", " ")
	clean := make([][]string, len(rows))
	for i, row := range rows {
		clean[i] = make([]string, len(row))
		for j, c := range row {
			clean[i][j] = esc.Replace(c)
		}
	}
	rows = clean

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(cell, w))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(header)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
}
