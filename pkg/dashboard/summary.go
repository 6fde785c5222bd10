// Package dashboard computes the read-only summary shown to dashboard users
// from the processed collections.
package dashboard

import (
	"context"
	"errors"
	"sort"
	"strings"

	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/transform"
)

// Options narrows what the summary covers
type Options struct {
	TopN     int    // universities listed by domain count; <= 0 means 10
	Query    string // case-insensitive substring filter on university name
	FromYear int    // indicator series range; 0 means unbounded
	ToYear   int
}

// CountrySummary is the country profile card
type CountrySummary struct {
	Name         string `json:"name"`
	ISO          string `json:"iso"`
	IncomeLevel  string `json:"income_level"`
	Region       string `json:"region"`
	MiddleIncome bool   `json:"middle_income"`
}

// UniversityRow is one entry of the top list
type UniversityRow struct {
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
	WebPage string   `json:"web_page,omitempty"`
}

// UniversitySummary covers processed_hipolabs
type UniversitySummary struct {
	Total         int             `json:"total"`
	UniqueDomains int             `json:"unique_domains"`
	Top           []UniversityRow `json:"top"`
}

// Point is one year of the indicator series
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// DecadeAverage is the mean of a decade's observations
type DecadeAverage struct {
	Decade  int     `json:"decade"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// IndicatorSummary covers processed_worldbank
type IndicatorSummary struct {
	Series  []Point         `json:"series"` // ascending by year, within the requested range
	Latest  *Point          `json:"latest"`
	Delta   *float64        `json:"delta"` // latest minus the previous observation
	Max     *Point          `json:"max"`
	Min     *Point          `json:"min"`
	Decades []DecadeAverage `json:"decades"`
}

// Summary is everything the dashboard shows
type Summary struct {
	Country      *CountrySummary   `json:"country"`
	Universities UniversitySummary `json:"universities"`
	Indicator    IndicatorSummary  `json:"indicator"`
}

// Build reads the processed collections and computes the summary. Missing
// collections produce empty sections, not errors.
func Build(ctx context.Context, s db.Store, opt Options) (Summary, error) {
	if opt.TopN <= 0 {
		opt.TopN = 10
	}
	var sum Summary

	country, err := s.FindOne(ctx, domain.ProcCountry, nil)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return sum, err
	default:
		sum.Country = summarizeCountry(country)
	}

	unis, err := s.Find(ctx, domain.ProcUniversities, nil)
	if err != nil {
		return sum, err
	}
	sum.Universities = summarizeUniversities(unis, opt)

	obs, err := s.Find(ctx, domain.ProcIndicator, nil)
	if err != nil {
		return sum, err
	}
	sum.Indicator = summarizeIndicator(obs, opt)
	return sum, nil
}

func summarizeCountry(doc domain.Record) *CountrySummary {
	income := doc.StringOr("income_level.value", "")
	return &CountrySummary{
		Name:         doc.StringOr("name", ""),
		ISO:          transform.Upper(doc.StringOr("id", "")),
		IncomeLevel:  income,
		Region:       strings.TrimSpace(doc.StringOr("region.value", "")),
		MiddleIncome: strings.Contains(transform.Lower(income), "middle"),
	}
}

func stringList(v any) []string {
	items, ok := domain.AsSlice(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func summarizeUniversities(docs []domain.Record, opt Options) UniversitySummary {
	sum := UniversitySummary{Total: len(docs)}

	domains := make(map[string]struct{})
	rows := make([]UniversityRow, 0, len(docs))
	query := transform.Lower(strings.TrimSpace(opt.Query))
	for _, d := range docs {
		ds := stringList(d["domains"])
		for _, dom := range ds {
			domains[dom] = struct{}{}
		}
		name := d.StringOr("name", "")
		if query != "" && !strings.Contains(transform.Lower(name), query) {
			continue
		}
		row := UniversityRow{Name: name, Domains: ds}
		if pages := stringList(d["web_pages"]); len(pages) > 0 {
			row.WebPage = pages[0]
		}
		rows = append(rows, row)
	}
	sum.UniqueDomains = len(domains)

	sort.SliceStable(rows, func(i, j int) bool {
		if len(rows[i].Domains) != len(rows[j].Domains) {
			return len(rows[i].Domains) > len(rows[j].Domains)
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > opt.TopN {
		rows = rows[:opt.TopN]
	}
	sum.Top = rows
	return sum
}

func summarizeIndicator(docs []domain.Record, opt Options) IndicatorSummary {
	var sum IndicatorSummary

	var series []Point
	for _, d := range docs {
		v, err := d.Float("value")
		if err != nil {
			continue
		}
		t := transform.SafeParseDate(d["date"], "%Y")
		if t == nil {
			continue
		}
		year := t.Year()
		if opt.FromYear > 0 && year < opt.FromYear {
			continue
		}
		if opt.ToYear > 0 && year > opt.ToYear {
			continue
		}
		series = append(series, Point{Year: year, Value: v})
	}
	if len(series) == 0 {
		return sum
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Year < series[j].Year })
	sum.Series = series

	latest := series[len(series)-1]
	sum.Latest = &latest
	if len(series) > 1 {
		delta := latest.Value - series[len(series)-2].Value
		sum.Delta = &delta
	}

	maxP, minP := series[0], series[0]
	for _, p := range series[1:] {
		if p.Value > maxP.Value {
			maxP = p
		}
		if p.Value < minP.Value {
			minP = p
		}
	}
	sum.Max, sum.Min = &maxP, &minP

	for _, p := range series {
		decade := (p.Year / 10) * 10
		n := len(sum.Decades)
		if n == 0 || sum.Decades[n-1].Decade != decade {
			sum.Decades = append(sum.Decades, DecadeAverage{Decade: decade})
			n++
		}
		dec := &sum.Decades[n-1]
		dec.Average = (dec.Average*float64(dec.Count) + p.Value) / float64(dec.Count+1)
		dec.Count++
	}
	return sum
}
