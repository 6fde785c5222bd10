package tasks

import (
	"context"
	"errors"
	"fmt"

	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/logger"
	"edu-etl/pkg/transform"
)

const (
	// CountryMX is the only code the universities transform recognizes.
	CountryMX      = "MX"
	CountryUnknown = "UNKNOWN"

	yearFormat = "%Y"
)

// IndicatorKey identifies one observation of a series.
type IndicatorKey struct {
	Date string
	ID   string
}

// UniversityKey dedupes universities case-insensitively by name.
func UniversityKey(r domain.Record) (string, error) {
	name, err := r.String("name")
	if err != nil {
		return "", err
	}
	return transform.Lower(name), nil
}

// IndicatorObservationKey dedupes indicator records by (date, indicator.id).
func IndicatorObservationKey(r domain.Record) (IndicatorKey, error) {
	date, err := r.String("date")
	if err != nil {
		return IndicatorKey{}, err
	}
	id, err := r.String("indicator.id")
	if err != nil {
		return IndicatorKey{}, err
	}
	return IndicatorKey{Date: date, ID: id}, nil
}

// CountryCode maps a country name to its code. Only Mexico is known; anything
// else, including a missing or non-string value, is UNKNOWN.
func CountryCode(v any) string {
	s, _ := v.(string)
	if transform.Lower(s) == "mexico" {
		return CountryMX
	}
	return CountryUnknown
}

// TransformCountry rewrites the processed country profile from the raw one.
func TransformCountry(ctx context.Context, s db.Store) (domain.TransformResult, error) {
	res := domain.TransformResult{Collection: domain.ProcCountry}

	raw, err := s.FindOne(ctx, domain.RawCountry, nil)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return res, err
	}
	if err := s.Drop(ctx, res.Collection); err != nil {
		return res, err
	}
	if raw == nil {
		logTransform(res)
		return res, nil
	}

	doc := prepare(raw)
	doc["income_simple"] = transform.Lower(doc.StringOr("income_level.value", ""))
	doc["region_simple"] = transform.Lower(doc.StringOr("region.value", ""))

	if err := s.InsertOne(ctx, res.Collection, doc); err != nil {
		return res, err
	}
	res.Processed = 1
	logTransform(res)
	return res, nil
}

// TransformUniversities keeps named universities, derives name_upper and
// country_code, and dedupes by lower-cased name.
func TransformUniversities(ctx context.Context, s db.Store) (domain.TransformResult, error) {
	res := domain.TransformResult{Collection: domain.ProcUniversities}

	raw, err := s.Find(ctx, domain.RawUniversities, nil)
	if err != nil {
		return res, err
	}

	kept := make([]domain.Record, 0, len(raw))
	for _, r := range raw {
		doc := prepare(r)
		name, err := doc.String("name")
		if err != nil || name == "" {
			continue
		}
		doc["name_upper"] = transform.Upper(name)
		doc["country_code"] = CountryCode(doc["country"])
		kept = append(kept, doc)
	}

	final, err := transform.DedupeBy(kept, UniversityKey)
	if err != nil {
		return res, err
	}
	return replace(ctx, s, res, final)
}

// TransformIndicator keeps complete observations, derives value_percent and
// parsed_date, and dedupes by (date, indicator.id).
func TransformIndicator(ctx context.Context, s db.Store) (domain.TransformResult, error) {
	res := domain.TransformResult{Collection: domain.ProcIndicator}

	raw, err := s.Find(ctx, domain.RawIndicator, nil)
	if err != nil {
		return res, err
	}

	kept := make([]domain.Record, 0, len(raw))
	for i, r := range raw {
		doc := prepare(r)
		if !doc.Present("value") || !nonEmptyString(doc, "date") || !nonEmptyString(doc, "indicator.id") {
			continue
		}
		v, err := doc.Float("value")
		if err != nil {
			return res, fmt.Errorf("raw indicator record %d: %w", i, err)
		}
		doc["value_percent"] = transform.RoundTo(v, 2)
		if t := transform.SafeParseDate(doc["date"], yearFormat); t != nil {
			doc["parsed_date"] = *t
		} else {
			doc["parsed_date"] = nil
		}
		kept = append(kept, doc)
	}

	final, err := transform.DedupeBy(kept, IndicatorObservationKey)
	if err != nil {
		return res, err
	}
	return replace(ctx, s, res, final)
}

// prepare drops the store-assigned id and snake-cases the top-level keys.
func prepare(raw domain.Record) domain.Record {
	r := raw.Clone()
	delete(r, "_id")
	return transform.NormalizeKeys(r)
}

func nonEmptyString(r domain.Record, path string) bool {
	s, err := r.String(path)
	return err == nil && s != ""
}

func replace(ctx context.Context, s db.Store, res domain.TransformResult, docs []domain.Record) (domain.TransformResult, error) {
	if err := s.Drop(ctx, res.Collection); err != nil {
		return res, err
	}
	if err := s.InsertMany(ctx, res.Collection, docs); err != nil {
		return res, err
	}
	res.Processed = len(docs)
	logTransform(res)
	return res, nil
}

func logTransform(res domain.TransformResult) {
	logger.Named("transform").Info().
		Str("collection", res.Collection).
		Int("processed_records", res.Processed).
		Msg("processed collection replaced")
}
