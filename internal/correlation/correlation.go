package correlation

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/studiowebux/rulesetcheck/internal/types"
)

// IDGenerator hands out correlation ids for outbound requests
type IDGenerator interface {
	Next() int64
}

// Generator is a monotonic IDGenerator. It is seeded with the current Unix
// millisecond so ids keep the magnitude the remote service is used to, and
// then only increments, so concurrent callers never share an id.
type Generator struct {
	last atomic.Int64
}

// NewGenerator creates a Generator seeded from the clock
func NewGenerator() *Generator {
	g := &Generator{}
	g.last.Store(time.Now().UnixMilli())
	return g
}

// Next returns a new id, strictly greater than any previously returned
func (g *Generator) Next() int64 {
	return g.last.Add(1)
}

var defaultGenerator = NewGenerator()

// NewID returns an id from the process-wide generator
func NewID() int64 {
	return defaultGenerator.Next()
}

// Default returns the process-wide generator
func Default() IDGenerator {
	return defaultGenerator
}

// Matches reports whether a frame carries the expected correlation id.
// Only a JSON number equal to expected matches; strings, nulls and
// missing ids never do.
func Matches(expected int64, frame *types.InboundFrame) bool {
	if frame == nil || len(frame.CorrelationID) == 0 {
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(frame.CorrelationID))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return false
	}

	number, ok := value.(json.Number)
	if !ok {
		return false
	}

	if id, err := number.Int64(); err == nil {
		return id == expected
	}

	// Non-integer spellings like 1.7e12 still compare as numbers
	f, err := number.Float64()
	if err != nil {
		return false
	}
	return f == float64(expected)
}

// Parse decodes a raw frame. Empty payloads decode as an empty object.
// Valid JSON that is not an object yields a frame without an id, so it
// never matches; only malformed JSON is an error.
func Parse(data []byte) (*types.InboundFrame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &types.InboundFrame{}, nil
	}

	var frame types.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && json.Valid(data) {
			return &types.InboundFrame{}, nil
		}
		return nil, err
	}
	return &frame, nil
}
