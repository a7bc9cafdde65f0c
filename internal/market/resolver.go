package market

import (
	"fmt"
	"strings"
)

// Resolver is the static indicator -> ticker table. It is built once at
// startup and guarantees the table covers every IndicatorKey exactly once.
type Resolver struct {
	byKey map[IndicatorKey]Instrument
}

func NewResolver(instruments []Instrument) (*Resolver, error) {
	byKey := make(map[IndicatorKey]Instrument, len(instruments))
	for _, inst := range instruments {
		key, err := ParseIndicator(string(inst.Key))
		if err != nil {
			return nil, err
		}
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("duplicate indicator: %s", key)
		}
		inst.Ticker = strings.TrimSpace(inst.Ticker)
		if inst.Ticker == "" {
			return nil, fmt.Errorf("empty ticker for indicator: %s", key)
		}
		inst.Market = strings.ToLower(strings.TrimSpace(inst.Market))
		if inst.Market == "" {
			inst.Market = "stocks"
		}
		inst.Key = key
		byKey[key] = inst
	}
	var missing []string
	for _, k := range allIndicators {
		if _, ok := byKey[k]; !ok {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing indicators: %s", strings.Join(missing, ","))
	}
	return &Resolver{byKey: byKey}, nil
}

func (r *Resolver) Lookup(key IndicatorKey) (Instrument, bool) {
	inst, ok := r.byKey[key]
	return inst, ok
}

// Instruments returns the table in canonical indicator order.
func (r *Resolver) Instruments() []Instrument {
	out := make([]Instrument, 0, len(allIndicators))
	for _, k := range allIndicators {
		out = append(out, r.byKey[k])
	}
	return out
}
