package meridian

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru"
)

// DeviceMetric selects metrics on devices of one kind, either by a
// catalogued metric name or by a regular expression matched against point
// aliases. Exactly one of Name and AliasRegex must be set.
type DeviceMetric struct {
	DeviceKind DeviceKind `json:"device_kind" yaml:"device_kind"`
	Name       MetricName `json:"name,omitempty" yaml:"name,omitempty"`
	AliasRegex string     `json:"alias_regex,omitempty" yaml:"alias_regex,omitempty"`
}

// NewDeviceMetric selects a catalogued metric on devices of the given
// kind.
func NewDeviceMetric(kind DeviceKind, name MetricName) DeviceMetric {
	return DeviceMetric{DeviceKind: kind, Name: name}
}

// NewAliasMetric selects every point whose alias matches the pattern on
// devices of the given kind. The pattern is unanchored.
func NewAliasMetric(kind DeviceKind, pattern string) DeviceMetric {
	return DeviceMetric{DeviceKind: kind, AliasRegex: pattern}
}

// Validate checks the selector against the default metric catalog.
func (m DeviceMetric) Validate() error {
	if !DefaultCatalog().KnownKind(m.DeviceKind) {
		return fmt.Errorf("unknown device kind %q", m.DeviceKind)
	}
	switch {
	case m.Name == "" && m.AliasRegex == "":
		return fmt.Errorf("device kind %q: one of name or alias regex is required", m.DeviceKind)
	case m.Name != "" && m.AliasRegex != "":
		return fmt.Errorf("device kind %q: name %q and alias regex %q are mutually exclusive", m.DeviceKind, m.Name, m.AliasRegex)
	case m.Name != "":
		if !DefaultCatalog().Valid(m.DeviceKind, m.Name) {
			return fmt.Errorf("metric %q is not defined for device kind %q", m.Name, m.DeviceKind)
		}
	default:
		if _, err := compileAlias(m.AliasRegex); err != nil {
			return fmt.Errorf("alias regex %q: %v", m.AliasRegex, err)
		}
	}
	return nil
}

// Filter selects the facilities and device metrics a read covers. An
// empty Facilities list selects every facility the user can access that
// has an agent installed.
type Filter struct {
	Facilities []string       `json:"facilities" yaml:"facilities"`
	Metrics    []DeviceMetric `json:"metrics" yaml:"metrics"`
}

// Validate reports the first problem with the filter, wrapped in
// ErrInvalidFilter.
func (f Filter) Validate() error {
	if len(f.Metrics) == 0 {
		return fmt.Errorf("%w: no metrics provided", ErrInvalidFilter)
	}
	for i, m := range f.Metrics {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: metrics[%d]: %v", ErrInvalidFilter, i, err)
		}
	}
	return nil
}

// RateFilter selects the facilities a rates read covers. An empty list
// selects every facility the user can access that has an agent installed.
type RateFilter struct {
	Facilities []string `json:"facilities" yaml:"facilities"`
}

// aliasPatterns caches compiled alias regexps. Filters are typically
// long-lived and re-validated on every read, so compiles are shared
// process-wide.
var aliasPatterns = mustPatternCache(512)

func mustPatternCache(size int) *lru.Cache {
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return cache
}

func compileAlias(expr string) (*regexp.Regexp, error) {
	if cached, ok := aliasPatterns.Get(expr); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	aliasPatterns.Add(expr, re)
	return re, nil
}
