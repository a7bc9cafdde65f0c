package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	PolygonModePrev    = "prev"
	PolygonModeDaily   = "daily"
	PolygonModeGrouped = "grouped"
)

type polygonAggsResp struct {
	Status       string          `json:"status"`
	Ticker       string          `json:"ticker"`
	ResultsCount int             `json:"resultsCount"`
	Results      []polygonAggBar `json:"results"`
	Error        string          `json:"error"`
	Message      string          `json:"message"`
}

type polygonAggBar struct {
	Ticker    string  `json:"T"`
	Open      float64 `json:"o"`
	Close     float64 `json:"c"`
	Timestamp int64   `json:"t"`
}

// NewRESTClient builds the HTTP client shared by every provider call.
func NewRESTClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "b3-humor/1.0")
}

type polygonBase struct {
	client *resty.Client
	apiKey string
}

func (p *polygonBase) Ready() error {
	if p.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (p *polygonBase) getAggs(ctx context.Context, path string, params map[string]string) (polygonAggsResp, error) {
	var payload polygonAggsResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetPathParams(params).
		SetQueryParam("adjusted", "true").
		Get(path)
	if err != nil {
		return payload, fmt.Errorf("%w: request polygon: %v", ErrNoData, err)
	}
	if !resp.IsSuccess() {
		return payload, fmt.Errorf("%w: polygon status %d: %s", ErrNoData, resp.StatusCode(), truncate(resp.String(), 200))
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return payload, fmt.Errorf("%w: decode polygon: %v", ErrNoData, err)
	}
	if strings.EqualFold(payload.Status, "ERROR") || payload.Error != "" {
		msg := payload.Error
		if msg == "" {
			msg = payload.Message
		}
		return payload, fmt.Errorf("%w: polygon error: %s", ErrNoData, msg)
	}
	return payload, nil
}

// Polygon issues one call per instrument, either against the
// previous-close endpoint or against a one-day aggregate range.
type Polygon struct {
	polygonBase
	mode string
}

// NewPolygon returns the provider for the given call shape. The grouped
// shape returns a *PolygonGrouped, which also implements SessionFetcher.
func NewPolygon(client *resty.Client, apiKey, mode string) Provider {
	base := polygonBase{client: client, apiKey: apiKey}
	switch mode {
	case PolygonModeGrouped:
		return &PolygonGrouped{polygonBase: base}
	case PolygonModeDaily:
		return &Polygon{polygonBase: base, mode: PolygonModeDaily}
	default:
		return &Polygon{polygonBase: base, mode: PolygonModePrev}
	}
}

func (p *Polygon) Name() string { return "polygon:" + p.mode }

func (p *Polygon) FetchBar(ctx context.Context, inst Instrument, session time.Time) (PriceBar, error) {
	var (
		payload polygonAggsResp
		err     error
	)
	if p.mode == PolygonModeDaily {
		day := SessionDate(session)
		payload, err = p.getAggs(ctx, "/v2/aggs/ticker/{ticker}/range/1/day/{from}/{to}", map[string]string{
			"ticker": inst.Ticker,
			"from":   day,
			"to":     day,
		})
	} else {
		payload, err = p.getAggs(ctx, "/v2/aggs/ticker/{ticker}/prev", map[string]string{
			"ticker": inst.Ticker,
		})
	}
	if err != nil {
		return PriceBar{}, fmt.Errorf("%s: %w", inst.Ticker, err)
	}
	if len(payload.Results) == 0 {
		return PriceBar{}, fmt.Errorf("%s: %w: empty results", inst.Ticker, ErrNoData)
	}
	bar := payload.Results[len(payload.Results)-1]
	return PriceBar{
		Ticker:  inst.Ticker,
		Open:    bar.Open,
		Close:   bar.Close,
		Session: barSession(bar.Timestamp),
	}, nil
}

// PolygonGrouped answers the whole batch with one grouped-daily call per
// market segment and filters the handful of tickers of interest.
type PolygonGrouped struct {
	polygonBase
}

func (p *PolygonGrouped) Name() string { return "polygon:" + PolygonModeGrouped }

func (p *PolygonGrouped) FetchBar(ctx context.Context, inst Instrument, session time.Time) (PriceBar, error) {
	bars, err := p.FetchSession(ctx, session, []Instrument{inst})
	if bar, ok := bars[inst.Ticker]; ok {
		return bar, nil
	}
	if err != nil {
		return PriceBar{}, fmt.Errorf("%s: %w", inst.Ticker, err)
	}
	return PriceBar{}, fmt.Errorf("%s: %w: not in grouped results", inst.Ticker, ErrNoData)
}

// FetchSession returns whatever bars it could collect; a failed market
// segment is reported in err while the other segments are still returned.
func (p *PolygonGrouped) FetchSession(ctx context.Context, session time.Time, instruments []Instrument) (map[string]PriceBar, error) {
	wanted := make(map[string][]string)
	var order []string
	for _, inst := range instruments {
		if _, ok := wanted[inst.Market]; !ok {
			order = append(order, inst.Market)
		}
		wanted[inst.Market] = append(wanted[inst.Market], inst.Ticker)
	}

	day := SessionDate(session)
	out := make(map[string]PriceBar, len(instruments))
	var errs []error
	for _, mkt := range order {
		path, err := groupedPath(mkt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		payload, err := p.getAggs(ctx, path, map[string]string{"date": day})
		if err != nil {
			errs = append(errs, fmt.Errorf("grouped %s: %w", mkt, err))
			continue
		}
		want := make(map[string]struct{}, len(wanted[mkt]))
		for _, t := range wanted[mkt] {
			want[t] = struct{}{}
		}
		for _, bar := range payload.Results {
			if _, ok := want[bar.Ticker]; !ok {
				continue
			}
			out[bar.Ticker] = PriceBar{
				Ticker:  bar.Ticker,
				Open:    bar.Open,
				Close:   bar.Close,
				Session: day,
			}
		}
	}
	return out, errors.Join(errs...)
}

func groupedPath(mkt string) (string, error) {
	switch mkt {
	case "stocks":
		return "/v2/aggs/grouped/locale/us/market/stocks/{date}", nil
	case "fx":
		return "/v2/aggs/grouped/locale/global/market/fx/{date}", nil
	case "crypto":
		return "/v2/aggs/grouped/locale/global/market/crypto/{date}", nil
	}
	return "", fmt.Errorf("%w: unsupported market segment %q", ErrNoData, mkt)
}

func barSession(tsMillis int64) string {
	if tsMillis <= 0 {
		return ""
	}
	return SessionDate(time.UnixMilli(tsMillis).UTC())
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
