// Package sources knows the URLs and response envelopes of the upstream APIs.
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"edu-etl/pkg/domain"
)

// Source labels reported by the ingest tasks.
const (
	WorldBankCountry = "WorldBankCountry"
	Hipolabs         = "Hipolabs"
	WorldBank        = "WorldBank"
)

// JSONGetter is satisfied by httpclient.HTTPClient.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string) (any, error)
}

// Page is the World Bank envelope metadata ({"page":1,"pages":2,"per_page":100,"total":64}).
type Page struct {
	Page    int
	Pages   int
	PerPage int
	Total   int
}

// CountryURL is the World Bank country profile endpoint.
func CountryURL(base, code string) string {
	return fmt.Sprintf("%s/country/%s?format=json", strings.TrimRight(base, "/"), url.PathEscape(code))
}

// UniversitiesURL is the Hipolabs search endpoint for a country name.
func UniversitiesURL(base, country string) string {
	return fmt.Sprintf("%s/search?country=%s", strings.TrimRight(base, "/"), url.QueryEscape(country))
}

// IndicatorURL is the World Bank indicator series endpoint. page <= 0 omits the page parameter.
func IndicatorURL(base, code, indicator string, perPage, page int) string {
	u := fmt.Sprintf("%s/country/%s/indicator/%s?format=json&per_page=%d",
		strings.TrimRight(base, "/"), url.PathEscape(code), url.PathEscape(indicator), perPage)
	if page > 0 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// UnwrapWorldBank splits a [metadata, [records...]] envelope.
// Anything else (error envelopes, null data, non-object items) yields no records.
func UnwrapWorldBank(payload any) (Page, []domain.Record) {
	arr, ok := domain.AsSlice(payload)
	if !ok || len(arr) < 2 {
		return Page{}, nil
	}
	var meta Page
	if m, ok := domain.AsMap(arr[0]); ok {
		meta = Page{
			Page:    intField(m, "page"),
			Pages:   intField(m, "pages"),
			PerPage: intField(m, "per_page"),
			Total:   intField(m, "total"),
		}
	}
	items, ok := domain.AsSlice(arr[1])
	if !ok {
		return meta, nil
	}
	return meta, toRecords(items)
}

// UnwrapList accepts a bare JSON list or an object carrying the list under "results".
func UnwrapList(payload any) []domain.Record {
	if items, ok := domain.AsSlice(payload); ok {
		return toRecords(items)
	}
	if m, ok := domain.AsMap(payload); ok {
		if items, ok := domain.AsSlice(m["results"]); ok {
			return toRecords(items)
		}
	}
	return nil
}

// FetchWorldBankPages walks the indicator pages starting at 1 until metadata.pages
// is reached or maxPages pages were read (0 means no cap). A malformed page ends the walk.
func FetchWorldBankPages(ctx context.Context, get JSONGetter, pageURL func(page int) string, maxPages int) ([]domain.Record, error) {
	var all []domain.Record
	for page := 1; ; page++ {
		payload, err := get.GetJSON(ctx, pageURL(page))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		meta, recs := UnwrapWorldBank(payload)
		all = append(all, recs...)

		if maxPages > 0 && page >= maxPages {
			break
		}
		if page >= meta.Pages {
			break
		}
	}
	return all, nil
}

func toRecords(items []any) []domain.Record {
	out := make([]domain.Record, 0, len(items))
	for _, it := range items {
		if m, ok := domain.AsMap(it); ok {
			out = append(out, domain.Record(m))
		}
	}
	return out
}

func intField(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	f, err := domain.ToFloat(v)
	if err != nil {
		return 0
	}
	return int(f)
}
