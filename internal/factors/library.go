// Package factors holds emission factor libraries and the lookup that picks
// a factor for a canonical record.
package factors

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/greenops"
	"github.com/rshade/ghgfocus/internal/logging"
	"github.com/rshade/ghgfocus/internal/validation"
)

//go:embed default.yaml
var defaultLibrary []byte

// Entry is one emission factor and the records it applies to.
type Entry struct {
	Scope       ghg.Scope             `yaml:"scope"                 validate:"required,gte=1,lte=3"`
	Category    string                `yaml:"category"              validate:"required"`
	Subcategory string                `yaml:"subcategory,omitempty"`
	Method      ghg.CalculationMethod `yaml:"method,omitempty"      validate:"omitempty,oneof=location_based market_based"`
	ghg.Factor  `yaml:",inline"`

	activity string
	scope3   ghg.Scope3Category
}

// ActivityUnit is the unit the factor expects activity amounts in.
func (e Entry) ActivityUnit() string { return e.activity }

// Library is an ordered set of factors. Earlier entries win ties.
type Library struct {
	Name    string  `yaml:"name"`
	Version string  `yaml:"version"`
	Factors []Entry `yaml:"factors" validate:"dive"`
}

// Default returns the built-in library.
func Default() *Library {
	lib, err := ParseLibrary(context.Background(), defaultLibrary)
	if err != nil {
		panic(fmt.Sprintf("built-in factor library is invalid: %v", err))
	}
	return lib
}

// ParseLibrary decodes and validates a YAML factor library.
func ParseLibrary(ctx context.Context, data []byte) (*Library, error) {
	log := logging.FromContext(ctx)
	log.Debug().
		Str("component", "factors").
		Str("operation", "parse_library").
		Int("data_size_bytes", len(data)).
		Msg("parsing factor library")

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var lib Library
	if err := dec.Decode(&lib); err != nil {
		return nil, fmt.Errorf("parsing factor library YAML: %w", err)
	}
	if err := validation.Struct(&lib); err != nil {
		return nil, fmt.Errorf("factor library: %w", err)
	}

	var errs []error
	for i := range lib.Factors {
		if err := lib.Factors[i].prepare(); err != nil {
			errs = append(errs, fmt.Errorf("factor %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &lib, nil
}

// LoadLibrary reads a factor library from a YAML file.
func LoadLibrary(ctx context.Context, path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.FromContext(ctx).Error().
			Str("component", "factors").
			Err(err).
			Str("path", path).
			Msg("failed to read factor library")
		return nil, fmt.Errorf("reading factor library: %w", err)
	}
	return ParseLibrary(ctx, data)
}

func (e *Entry) prepare() error {
	if err := ghg.ValidateCategory(e.Scope, e.Category); err != nil {
		return err
	}
	if e.Scope == ghg.Scope3 {
		e.scope3, _ = ghg.ResolveScope3Category(e.Category)
	}
	if e.Method != "" && e.Scope != ghg.Scope2 {
		return fmt.Errorf("method %q on a scope %d factor", e.Method, e.Scope)
	}
	if e.Value.IsNegative() {
		return fmt.Errorf("negative factor %s", e.Value)
	}
	fu, err := greenops.ParseFactorUnit(e.Unit)
	if err != nil {
		return err
	}
	e.activity = fu.ActivityUnit
	return nil
}

// Lookup returns the factor for a record.
//
// Candidates must share the record's scope and category, accept its method
// when one is set on the entry and expect a unit the record's unit converts
// to. An entry naming the record's subcategory beats one without; entries
// for a different subcategory never match.
func (l *Library) Lookup(rec *ghg.Record) (ghg.Factor, bool) {
	var fallback *Entry
	for i := range l.Factors {
		e := &l.Factors[i]
		if !e.matches(rec) {
			continue
		}
		switch {
		case e.Subcategory != "" && strings.EqualFold(e.Subcategory, rec.Subcategory):
			return e.Factor, true
		case e.Subcategory == "" && fallback == nil:
			fallback = e
		}
	}
	if fallback == nil {
		return ghg.Factor{}, false
	}
	return fallback.Factor, true
}

func (e *Entry) matches(rec *ghg.Record) bool {
	if e.Scope != rec.Scope || !e.sameCategory(rec.Category) {
		return false
	}
	if e.Method != "" && e.Method != rec.CalculationMethod {
		return false
	}
	return compatible(rec.ActivityUnit, e.activity)
}

func (e *Entry) sameCategory(category string) bool {
	if e.Scope != ghg.Scope3 {
		return e.Category == category
	}
	c, err := ghg.ResolveScope3Category(category)
	return err == nil && c == e.scope3
}

// compatible reports whether an amount in unit converts into want.
func compatible(unit, want string) bool {
	if greenops.SameUnit(unit, want) {
		return true
	}
	d := greenops.DimensionOf(unit)
	return d != greenops.DimensionUnknown && d != greenops.DimensionCurrency && d == greenops.DimensionOf(want)
}
