// Package tasks holds the pipeline task bodies. Every task receives the store
// explicitly and returns a small result struct for the run report.
package tasks

import (
	"context"
	"fmt"

	"edu-etl/pkg/config"
	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/logger"
	"edu-etl/pkg/sources"
)

// Ingester pulls the three upstream APIs into their raw collections
type Ingester struct {
	http sources.JSONGetter
	cfg  config.SourceSettings
}

// NewIngester creates an ingester using the given JSON client and source settings
func NewIngester(http sources.JSONGetter, cfg config.SourceSettings) *Ingester {
	return &Ingester{http: http, cfg: cfg}
}

// Country stores the single World Bank country profile record.
func (i *Ingester) Country(ctx context.Context, s db.Store) (domain.IngestResult, error) {
	res := domain.IngestResult{Source: sources.WorldBankCountry, Collection: domain.RawCountry}
	if err := s.Drop(ctx, res.Collection); err != nil {
		return res, err
	}

	payload, err := i.http.GetJSON(ctx, sources.CountryURL(i.cfg.WorldBankBaseURL, i.cfg.CountryCode))
	if err != nil {
		return res, fmt.Errorf("fetch country profile: %w", err)
	}
	_, recs := sources.UnwrapWorldBank(payload)
	if len(recs) == 0 {
		logIngest(res)
		return res, nil
	}

	if err := s.InsertOne(ctx, res.Collection, recs[0]); err != nil {
		return res, err
	}
	res.Records = 1
	logIngest(res)
	return res, nil
}

// Universities stores the Hipolabs search results for the configured country.
func (i *Ingester) Universities(ctx context.Context, s db.Store) (domain.IngestResult, error) {
	res := domain.IngestResult{Source: sources.Hipolabs, Collection: domain.RawUniversities}
	if err := s.Drop(ctx, res.Collection); err != nil {
		return res, err
	}

	payload, err := i.http.GetJSON(ctx, sources.UniversitiesURL(i.cfg.HipolabsBaseURL, i.cfg.CountryName))
	if err != nil {
		return res, fmt.Errorf("fetch universities: %w", err)
	}
	return i.insert(ctx, s, res, sources.UnwrapList(payload))
}

// Indicator stores every page of the configured World Bank indicator series.
func (i *Ingester) Indicator(ctx context.Context, s db.Store) (domain.IngestResult, error) {
	res := domain.IngestResult{Source: sources.WorldBank, Collection: domain.RawIndicator}
	if err := s.Drop(ctx, res.Collection); err != nil {
		return res, err
	}

	pageURL := func(page int) string {
		return sources.IndicatorURL(i.cfg.WorldBankBaseURL, i.cfg.CountryCode, i.cfg.IndicatorID, i.cfg.PerPage, page)
	}
	recs, err := sources.FetchWorldBankPages(ctx, i.http, pageURL, i.cfg.MaxPages)
	if err != nil {
		return res, fmt.Errorf("fetch indicator %s: %w", i.cfg.IndicatorID, err)
	}
	return i.insert(ctx, s, res, recs)
}

func (i *Ingester) insert(ctx context.Context, s db.Store, res domain.IngestResult, recs []domain.Record) (domain.IngestResult, error) {
	if err := s.InsertMany(ctx, res.Collection, recs); err != nil {
		return res, err
	}
	res.Records = len(recs)
	logIngest(res)
	return res, nil
}

func logIngest(res domain.IngestResult) {
	logger.Named("ingest").Info().
		Str("source", res.Source).
		Str("collection", res.Collection).
		Int("records", res.Records).
		Msg("raw collection replaced")
}
