package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IndicatorKey names one of the logical market signals consumed by the
// narrative step and the front end.
type IndicatorKey string

const (
	Minerio IndicatorKey = "minerio"
	Brent   IndicatorKey = "brent"
	VIX     IndicatorKey = "vix"
	SPX     IndicatorKey = "spx"
	DXY     IndicatorKey = "dxy"
	Dolar   IndicatorKey = "dolar"
)

// Fallback is reported for any indicator whose fetch or computation failed.
const Fallback = "0.00"

var allIndicators = []IndicatorKey{Minerio, Brent, VIX, SPX, DXY, Dolar}

// AllIndicators returns the closed indicator set in canonical order.
func AllIndicators() []IndicatorKey {
	out := make([]IndicatorKey, len(allIndicators))
	copy(out, allIndicators)
	return out
}

func ParseIndicator(s string) (IndicatorKey, error) {
	for _, k := range allIndicators {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown indicator: %q", s)
}

// Instrument is the provider-side identity of an indicator.
type Instrument struct {
	Key    IndicatorKey `json:"key"`
	Ticker string       `json:"ticker"`
	Market string       `json:"market,omitempty"`
}

type PriceBar struct {
	Ticker  string  `json:"ticker"`
	Open    float64 `json:"open"`
	Close   float64 `json:"close"`
	Session string  `json:"session,omitempty"`
}

var (
	ErrNoData        = errors.New("no data for instrument")
	ErrMissingAPIKey = errors.New("quote provider api key is missing")
)

// Provider fetches the daily bar of a single instrument. Any failure is
// reported as an error wrapping ErrNoData; callers degrade it to Fallback.
type Provider interface {
	Name() string
	Ready() error
	FetchBar(ctx context.Context, inst Instrument, session time.Time) (PriceBar, error)
}

// SessionFetcher is implemented by providers that can answer a whole batch
// for one session in fewer calls than one per instrument. The returned map
// is keyed by ticker; tickers without data are simply absent.
type SessionFetcher interface {
	FetchSession(ctx context.Context, session time.Time, instruments []Instrument) (map[string]PriceBar, error)
}
