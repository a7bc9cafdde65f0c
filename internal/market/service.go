package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Timeout bounds each outbound provider call. Zero means no bound
	// beyond the HTTP client's own timeout.
	Timeout     time.Duration
	Concurrency int
	Location    *time.Location
}

type Service struct {
	provider    Provider
	resolver    *Resolver
	timeout     time.Duration
	concurrency int
	loc         *time.Location
	now         func() time.Time
}

// Result is the canonical quote payload. Quotes always holds an entry for
// every indicator.
type Result struct {
	Success bool                    `json:"success"`
	Quotes  map[IndicatorKey]string `json:"quotes"`
	Message string                  `json:"message,omitempty"`

	Session   string         `json:"-"`
	Source    string         `json:"-"`
	Fallbacks []IndicatorKey `json:"-"`
}

type barOutcome struct {
	bar PriceBar
	err error
}

func NewService(provider Provider, resolver *Resolver, cfg Config) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		provider:    provider,
		resolver:    resolver,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		loc:         cfg.Location,
		now:         time.Now,
	}
}

// SetClock replaces the wall clock used to pick the session date.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Collect runs one batch across every configured indicator. The returned
// error is reserved for configuration problems; upstream failures only
// degrade individual quotes.
func (s *Service) Collect(ctx context.Context) (Result, error) {
	if s.provider == nil || s.resolver == nil {
		return Result{}, fmt.Errorf("market service not configured")
	}
	if err := s.provider.Ready(); err != nil {
		return Result{}, err
	}

	session := PreviousSession(s.now().In(s.loc))
	instruments := s.resolver.Instruments()
	outcomes := make([]barOutcome, len(instruments))
	if sf, ok := s.provider.(SessionFetcher); ok {
		s.collectSession(ctx, sf, session, instruments, outcomes)
	} else {
		s.collectEach(ctx, session, instruments, outcomes)
	}

	res := Result{
		Quotes:  make(map[IndicatorKey]string, len(instruments)),
		Session: SessionDate(session),
		Source:  s.provider.Name(),
	}
	var lastErr error
	for i, inst := range instruments {
		out := outcomes[i]
		pct := Fallback
		err := out.err
		if err == nil {
			pct, err = changePct(out.bar)
			if err != nil {
				err = fmt.Errorf("%s: %w", inst.Ticker, err)
				pct = Fallback
			}
		}
		if err != nil {
			hlog.CtxWarnf(ctx, "quote fallback: indicator=%s ticker=%s err=%v", inst.Key, inst.Ticker, err)
			res.Fallbacks = append(res.Fallbacks, inst.Key)
			lastErr = err
		}
		res.Quotes[inst.Key] = pct
	}

	res.Success = len(res.Fallbacks) < len(instruments)
	if !res.Success {
		res.Message = fmt.Sprintf("Nenhuma cotação disponível (%s, sessão %s): %v", res.Source, res.Session, lastErr)
		hlog.CtxErrorf(ctx, "quote batch failed: source=%s session=%s err=%v", res.Source, res.Session, lastErr)
	}
	return res, nil
}

func (s *Service) collectEach(ctx context.Context, session time.Time, instruments []Instrument, outcomes []barOutcome) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, inst := range instruments {
		g.Go(func() error {
			outcomes[i] = s.fetchOne(ctx, inst, session)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) fetchOne(ctx context.Context, inst Instrument, session time.Time) (out barOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = barOutcome{err: fmt.Errorf("%s: %w: panic: %v", inst.Ticker, ErrNoData, r)}
		}
	}()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	bar, err := s.provider.FetchBar(ctx, inst, session)
	return barOutcome{bar: bar, err: err}
}

func (s *Service) collectSession(ctx context.Context, sf SessionFetcher, session time.Time, instruments []Instrument, outcomes []barOutcome) {
	bars, err := s.fetchSession(ctx, sf, session, instruments)
	if err != nil {
		hlog.CtxWarnf(ctx, "grouped fetch partial failure: session=%s err=%v", SessionDate(session), err)
	}
	for i, inst := range instruments {
		if bar, ok := bars[inst.Ticker]; ok {
			outcomes[i] = barOutcome{bar: bar}
			continue
		}
		cause := err
		if cause == nil {
			cause = errors.New("not in grouped results")
		}
		outcomes[i] = barOutcome{err: fmt.Errorf("%s: %w: %v", inst.Ticker, ErrNoData, cause)}
	}
}

func (s *Service) fetchSession(ctx context.Context, sf SessionFetcher, session time.Time, instruments []Instrument) (bars map[string]PriceBar, err error) {
	defer func() {
		if r := recover(); r != nil {
			bars, err = nil, fmt.Errorf("%w: panic: %v", ErrNoData, r)
		}
	}()
	if s.timeout > 0 {
		segments := make(map[string]struct{})
		for _, inst := range instruments {
			segments[inst.Market] = struct{}{}
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout*time.Duration(len(segments)))
		defer cancel()
	}
	return sf.FetchSession(ctx, session, instruments)
}
