package market

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
)

// Yahoo reads the current regular-market session from Yahoo Finance. It
// needs no credential and ignores the session date.
type Yahoo struct {
	get func(symbol string) (*finance.Quote, error)
}

func NewYahoo() *Yahoo {
	return &Yahoo{get: quote.Get}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) Ready() error { return nil }

func (y *Yahoo) FetchBar(ctx context.Context, inst Instrument, _ time.Time) (PriceBar, error) {
	type result struct {
		q   *finance.Quote
		err error
	}
	// quote.Get takes no context; the call is abandoned, not cancelled,
	// when ctx expires first.
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		q, err := y.get(inst.Ticker)
		ch <- result{q: q, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return PriceBar{}, fmt.Errorf("%s: %w: %v", inst.Ticker, ErrNoData, ctx.Err())
	case res = <-ch:
	}
	if res.err != nil {
		return PriceBar{}, fmt.Errorf("%s: %w: request yahoo: %v", inst.Ticker, ErrNoData, res.err)
	}
	if res.q == nil {
		return PriceBar{}, fmt.Errorf("%s: %w: empty yahoo quote", inst.Ticker, ErrNoData)
	}
	return PriceBar{
		Ticker: inst.Ticker,
		Open:   res.q.RegularMarketOpen,
		Close:  res.q.RegularMarketPrice,
	}, nil
}
