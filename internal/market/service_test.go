package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	bars   map[string]PriceBar
	errs   map[string]error
	ready  error
	delay  time.Duration
	panics map[string]bool
	block  map[string]bool

	mu       sync.Mutex
	sessions []time.Time
	inflight int32
	peak     int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Ready() error { return f.ready }

func (f *fakeProvider) FetchBar(ctx context.Context, inst Instrument, session time.Time) (PriceBar, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics[inst.Ticker] {
		panic("provider exploded")
	}
	if f.block[inst.Ticker] {
		<-ctx.Done()
		return PriceBar{}, ctx.Err()
	}
	if err := f.errs[inst.Ticker]; err != nil {
		return PriceBar{}, err
	}
	bar, ok := f.bars[inst.Ticker]
	if !ok {
		return PriceBar{}, ErrNoData
	}
	return bar, nil
}

func healthyBars() map[string]PriceBar {
	return map[string]PriceBar{
		"VALE":     {Ticker: "VALE", Open: 100, Close: 105},
		"BNO":      {Ticker: "BNO", Open: 100, Close: 95},
		"VIXY":     {Ticker: "VIXY", Open: 20, Close: 21},
		"SPY":      {Ticker: "SPY", Open: 470, Close: 470},
		"UUP":      {Ticker: "UUP", Open: 28, Close: 28.07},
		"C:USDBRL": {Ticker: "C:USDBRL", Open: 4.9, Close: 4.851},
	}
}

func newTestService(t *testing.T, p Provider, cfg Config) *Service {
	t.Helper()
	r, err := NewResolver(defaultInstruments())
	require.NoError(t, err)
	svc := NewService(p, r, cfg)
	svc.SetClock(func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) })
	return svc
}

func TestCollect_AllQuotes(t *testing.T) {
	svc := newTestService(t, &fakeProvider{bars: healthyBars()}, Config{})

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Empty(t, res.Message)
	require.Empty(t, res.Fallbacks)
	require.Equal(t, "2024-01-09", res.Session)
	require.Equal(t, "fake", res.Source)
	require.Equal(t, map[IndicatorKey]string{
		Minerio: "5.00",
		Brent:   "-5.00",
		VIX:     "5.00",
		SPX:     "0.00",
		DXY:     "0.25",
		Dolar:   "-1.00",
	}, res.Quotes)
	for _, v := range res.Quotes {
		require.Regexp(t, pctPattern, v)
	}
}

func TestCollect_SingleFailureIsIsolated(t *testing.T) {
	p := &fakeProvider{
		bars: healthyBars(),
		errs: map[string]error{"VIXY": errors.New("HTTP 429")},
	}
	svc := newTestService(t, p, Config{Concurrency: 3})

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, Fallback, res.Quotes[VIX])
	require.Equal(t, "5.00", res.Quotes[Minerio])
	require.Equal(t, "-1.00", res.Quotes[Dolar])
	require.Equal(t, []IndicatorKey{VIX}, res.Fallbacks)
}

func TestCollect_UnusableBarFallsBack(t *testing.T) {
	bars := healthyBars()
	bars["BNO"] = PriceBar{Ticker: "BNO", Open: 0, Close: 19}
	svc := newTestService(t, &fakeProvider{bars: bars}, Config{})

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, Fallback, res.Quotes[Brent])
	require.Equal(t, []IndicatorKey{Brent}, res.Fallbacks)
}

func TestCollect_TotalFailure(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, Config{Concurrency: 6})

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Message)
	require.Len(t, res.Quotes, len(AllIndicators()))
	for _, k := range AllIndicators() {
		require.Equal(t, Fallback, res.Quotes[k])
	}
	require.Len(t, res.Fallbacks, len(AllIndicators()))
}

func TestCollect_ConfigurationError(t *testing.T) {
	svc := newTestService(t, &fakeProvider{ready: ErrMissingAPIKey}, Config{})
	_, err := svc.Collect(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)

	var nilSvc = NewService(nil, nil, Config{})
	_, err = nilSvc.Collect(context.Background())
	require.Error(t, err)
}

func TestCollect_SessionFromClockInLocation(t *testing.T) {
	p := &fakeProvider{bars: healthyBars()}
	r, err := NewResolver(defaultInstruments())
	require.NoError(t, err)
	svc := NewService(p, r, Config{Location: time.FixedZone("BRT", -3*3600)})
	// Tuesday in UTC, Monday evening in Sao Paulo.
	svc.SetClock(func() time.Time { return time.Date(2024, 1, 9, 1, 0, 0, 0, time.UTC) })

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2024-01-05", res.Session)
	require.Len(t, p.sessions, len(AllIndicators()))
	for _, s := range p.sessions {
		require.Equal(t, "2024-01-05", SessionDate(s))
	}
}

func TestCollect_ConcurrencyBound(t *testing.T) {
	for _, limit := range []int{1, 2} {
		p := &fakeProvider{bars: healthyBars(), delay: 20 * time.Millisecond}
		svc := newTestService(t, p, Config{Concurrency: limit})

		res, err := svc.Collect(context.Background())
		require.NoError(t, err)
		require.True(t, res.Success)
		require.LessOrEqual(t, int(atomic.LoadInt32(&p.peak)), limit)
	}
}

func TestCollect_PanicAndTimeoutAreContained(t *testing.T) {
	p := &fakeProvider{
		bars:   healthyBars(),
		panics: map[string]bool{"SPY": true},
		block:  map[string]bool{"UUP": true},
	}
	svc := newTestService(t, p, Config{Timeout: 30 * time.Millisecond, Concurrency: 2})

	start := time.Now()
	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.True(t, res.Success)
	require.Equal(t, Fallback, res.Quotes[SPX])
	require.Equal(t, Fallback, res.Quotes[DXY])
	require.Equal(t, "5.00", res.Quotes[Minerio])
	require.ElementsMatch(t, []IndicatorKey{SPX, DXY}, res.Fallbacks)
}

type fakeSessionProvider struct {
	fakeProvider
	bars    map[string]PriceBar
	err     error
	calls   int
	gotDate string
}

func (f *fakeSessionProvider) FetchBar(context.Context, Instrument, time.Time) (PriceBar, error) {
	panic("FetchBar must not be used when FetchSession is available")
}

func (f *fakeSessionProvider) FetchSession(_ context.Context, session time.Time, _ []Instrument) (map[string]PriceBar, error) {
	f.calls++
	f.gotDate = SessionDate(session)
	return f.bars, f.err
}

func TestCollect_UsesSessionFetcher(t *testing.T) {
	bars := healthyBars()
	delete(bars, "UUP")
	p := &fakeSessionProvider{bars: bars}
	svc := newTestService(t, p, Config{Timeout: time.Second})

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, p.calls)
	require.Equal(t, "2024-01-09", p.gotDate)
	require.True(t, res.Success)
	require.Equal(t, Fallback, res.Quotes[DXY])
	require.Equal(t, "-5.00", res.Quotes[Brent])
	require.Equal(t, []IndicatorKey{DXY}, res.Fallbacks)
}

func TestCollect_SessionFetcherFailure(t *testing.T) {
	p := &fakeSessionProvider{err: errors.New("grouped stocks: HTTP 500")}
	svc := newTestService(t, p, Config{})

	res, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Message, "HTTP 500")
	for _, k := range AllIndicators() {
		require.Equal(t, Fallback, res.Quotes[k])
	}
}
