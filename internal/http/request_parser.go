// Package http provides the JSON API of the ledger.
//
// This file implements utilities for decoding request bodies and query
// parameters into domain values.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var errMalformedBody = errors.New("malformed request body")

// PeriodParams holds optional year/month query values. Zero means absent.
type PeriodParams struct {
	Year  int
	Month int
}

// ParsePeriodParams reads year and month from the query. A value that is
// present but not a number is a validation error.
func ParsePeriodParams(query url.Values) (PeriodParams, error) {
	var p PeriodParams
	var err error
	if p.Year, err = optionalInt(query, "year"); err != nil {
		return PeriodParams{}, &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}
	if p.Month, err = optionalInt(query, "month"); err != nil {
		return PeriodParams{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	return p, nil
}

func optionalInt(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after object", errMalformedBody)
	}
	return nil
}

// AmountField accepts an amount as a JSON string ("1.234,56") or number.
type AmountField string

func (a *AmountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountField(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	*a = AmountField(b)
	return nil
}

// Decimal parses the field, naming field in the validation error.
func (a AmountField) Decimal(field string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: field, Err: err}
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
