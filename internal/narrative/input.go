package narrative

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"b3-humor/internal/market"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid input")

// RequiredFields are the inputs of the weighting formula; the request is
// rejected when any of them is absent.
var RequiredFields = []market.IndicatorKey{market.Minerio, market.Brent, market.VIX, market.Dolar}

// OptionalFields are passed to the model as extra context when present.
var OptionalFields = []market.IndicatorKey{market.SPX, market.DXY}

// Input holds the textual percentage of each supplied indicator.
type Input struct {
	Values map[market.IndicatorKey]string `json:"values"`
}

func (in Input) Get(key market.IndicatorKey) (string, bool) {
	v, ok := in.Values[key]
	return v, ok
}

// ParseInput validates a request body. Values may be JSON numbers or
// numeric strings (a trailing "%" is tolerated).
func ParseInput(body []byte) (Input, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Input{}, fmt.Errorf("%w: corpo JSON inválido", ErrInvalidInput)
	}
	in := Input{Values: make(map[market.IndicatorKey]string, len(RequiredFields)+len(OptionalFields))}
	for _, key := range RequiredFields {
		v, err := parseField(raw, key)
		if err != nil {
			return Input{}, err
		}
		if v == "" {
			return Input{}, fmt.Errorf("%w: campo obrigatório ausente: %s", ErrInvalidInput, key)
		}
		in.Values[key] = v
	}
	for _, key := range OptionalFields {
		v, err := parseField(raw, key)
		if err != nil {
			return Input{}, err
		}
		if v != "" {
			in.Values[key] = v
		}
	}
	return in, nil
}

// FromQuotes builds an Input straight from a quote batch.
func FromQuotes(quotes map[market.IndicatorKey]string) Input {
	in := Input{Values: make(map[market.IndicatorKey]string, len(quotes))}
	for k, v := range quotes {
		in.Values[k] = v
	}
	return in
}

// Validate checks an Input assembled outside ParseInput.
func (in Input) Validate() error {
	for _, key := range RequiredFields {
		v, ok := in.Values[key]
		if !ok || strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: campo obrigatório ausente: %s", ErrInvalidInput, key)
		}
		if _, err := parseNumber(v); err != nil {
			return fmt.Errorf("%w: valor não numérico em %s: %q", ErrInvalidInput, key, v)
		}
	}
	return nil
}

func parseField(raw map[string]json.RawMessage, key market.IndicatorKey) (string, error) {
	msg, ok := raw[string(key)]
	if !ok {
		return "", nil
	}
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return "", nil
	}

	var text string
	switch msg[0] {
	case '"':
		if err := json.Unmarshal(msg, &text); err != nil {
			return "", fmt.Errorf("%w: valor inválido em %s", ErrInvalidInput, key)
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "%")
		text = strings.TrimSpace(text)
		if text == "" {
			return "", nil
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(msg)
	default:
		return "", fmt.Errorf("%w: valor não numérico em %s", ErrInvalidInput, key)
	}
	if _, err := parseNumber(text); err != nil {
		return "", fmt.Errorf("%w: valor não numérico em %s: %q", ErrInvalidInput, key, text)
	}
	return text, nil
}

// parseNumber accepts plain decimal text only (optional sign, fraction and
// exponent); hex floats, NaN and Inf are rejected.
func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}
