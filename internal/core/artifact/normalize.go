package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// MaxTextLen is the longest string value, in characters, stored as-is.
const MaxTextLen = 10000

// Prepare filters rec to the allowed fields of t and normalizes every value
// into something a single table column can hold.
func Prepare(rec *domain.Record, t Type, reg *Registry) *domain.Record {
	if reg != nil {
		rec = reg.Filter(rec, t)
	}
	return Normalize(rec)
}

// Normalize returns a copy of rec whose values each fit a single column.
// Nested maps and slices are stored as JSON text.
func Normalize(rec *domain.Record) *domain.Record {
	out := domain.NewRecord()
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		out.Set(k, NormalizeValue(v))
	}
	return out
}

func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return truncate(x.String())
	case string:
		return truncate(x)
	case map[string]any, []any:
		return JSONText(x)
	default:
		return truncate(fmt.Sprint(x))
	}
}

func truncate(s string) string {
	if len(s) <= MaxTextLen || utf8.RuneCountInString(s) <= MaxTextLen {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxTextLen {
			return s[:i]
		}
		n++
	}
	return s
}

// JSONText encodes v as compact JSON, keeping '<', '>' and '&' literal.
func JSONText(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return truncate(fmt.Sprint(v))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Decode parses an artifact file. Numbers are kept as json.Number so integer
// and float columns can be told apart.
func Decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}
