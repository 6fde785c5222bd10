package domain

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestRecord_Lookup_NestedShapes(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
	}{
		{"json map", Record{"indicator": map[string]any{"id": "SE.TER.ENRR"}}},
		{"bson.M", Record{"indicator": bson.M{"id": "SE.TER.ENRR"}}},
		{"bson.D", Record{"indicator": bson.D{{Key: "id", Value: "SE.TER.ENRR"}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.rec.String("indicator.id")
			if err != nil {
				t.Fatalf("String failed: %v", err)
			}
			if got != "SE.TER.ENRR" {
				t.Errorf("Expected SE.TER.ENRR, got %q", got)
			}
		})
	}
}

func TestRecord_String_Errors(t *testing.T) {
	r := Record{"name": 42, "nothing": nil}

	if _, err := r.String("missing"); !errors.Is(err, ErrMissingField) {
		t.Errorf("Expected ErrMissingField, got %v", err)
	}
	if _, err := r.String("nothing"); !errors.Is(err, ErrMissingField) {
		t.Errorf("Expected ErrMissingField for null, got %v", err)
	}
	if _, err := r.String("name"); !errors.Is(err, ErrWrongType) {
		t.Errorf("Expected ErrWrongType, got %v", err)
	}
	if got := r.StringOr("name", "dflt"); got != "dflt" {
		t.Errorf("Expected default, got %q", got)
	}
}

func TestRecord_Present(t *testing.T) {
	r := Record{"empty": "", "zero": 0.0, "null": nil, "ok": "x"}
	if r.Present("empty") || r.Present("null") || r.Present("absent") {
		t.Errorf("empty, null and absent values must not be present")
	}
	if !r.Present("zero") || !r.Present("ok") {
		t.Errorf("zero and non-empty values must be present")
	}
}

func TestRecord_Float(t *testing.T) {
	r := Record{"s": "45.6789", "f": 12.5, "i": int32(3), "bad": "abc"}
	for path, want := range map[string]float64{"s": 45.6789, "f": 12.5, "i": 3} {
		got, err := r.Float(path)
		if err != nil || got != want {
			t.Errorf("Float(%q) = %v, %v; want %v", path, got, err, want)
		}
	}
	if _, err := r.Float("bad"); !errors.Is(err, ErrWrongType) {
		t.Errorf("Expected ErrWrongType, got %v", err)
	}
}

func TestRecord_Clone_IsShallow(t *testing.T) {
	nested := map[string]any{"a": 1}
	r := Record{"n": nested}
	c := r.Clone()
	c["extra"] = true
	if _, ok := r["extra"]; ok {
		t.Fatalf("Clone must not alias the top-level map")
	}
	if m, _ := AsMap(c["n"]); m["a"] != 1 {
		t.Fatalf("nested value should be shared")
	}
}
