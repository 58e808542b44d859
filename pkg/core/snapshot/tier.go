package snapshot

import (
	"fmt"
	"strings"
)

// Tier is one of the concentric radial bands. Tiers are ordered from the
// rim inwards: Outer < Periphery < Core.
type Tier int

const (
	TierOuter Tier = iota
	TierPeriphery
	TierCore
)

// NumTiers is the number of radial bands.
const NumTiers = 3

// Tiers lists every tier from the rim inwards.
var Tiers = [NumTiers]Tier{TierOuter, TierPeriphery, TierCore}

func (t Tier) String() string {
	switch t {
	case TierOuter:
		return "outer"
	case TierPeriphery:
		return "periphery"
	case TierCore:
		return "core"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool { return t >= TierOuter && t <= TierCore }

// ParseTier parses a tier label. The ingestion stage labels the innermost
// band "central", which is accepted as an alias for "core".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outer":
		return TierOuter, nil
	case "periphery", "peripheral":
		return TierPeriphery, nil
	case "core", "central":
		return TierCore, nil
	}
	return TierOuter, fmt.Errorf("unknown tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Metric identifies a centrality measure computed by the analysis stage.
type Metric int

const (
	MetricUnknown Metric = iota
	MetricDegree
	MetricBetweenness
	MetricCloseness
	MetricEigenvector
	MetricLanguageCentral
)

// KnownMetrics lists every metric except MetricUnknown in display order.
var KnownMetrics = []Metric{
	MetricDegree,
	MetricBetweenness,
	MetricCloseness,
	MetricEigenvector,
	MetricLanguageCentral,
}

func (m Metric) String() string {
	switch m {
	case MetricDegree:
		return "degree"
	case MetricBetweenness:
		return "betweenness"
	case MetricCloseness:
		return "closeness"
	case MetricEigenvector:
		return "eigenvector"
	case MetricLanguageCentral:
		return "languagecentral"
	}
	return "unknown"
}

// ParseMetric maps a metric name to its Metric. Unrecognized names return
// MetricUnknown and false; callers keep the raw name in a fallback map.
func ParseMetric(name string) (Metric, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "degree":
		return MetricDegree, true
	case "betweenness":
		return MetricBetweenness, true
	case "closeness":
		return MetricCloseness, true
	case "eigenvector":
		return MetricEigenvector, true
	case "languagecentral", "language_central":
		return MetricLanguageCentral, true
	}
	return MetricUnknown, false
}
