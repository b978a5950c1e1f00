package state

import (
	"context"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/types"
)

// TrackingCopy overlays the writes of one execution on a Reader. Reads see the
// execution's own writes; nothing reaches the Reader until the effects are applied.
type TrackingCopy struct {
	reader Reader
	cache  map[string]StoredValue
	writes map[string]Write
}

func NewTrackingCopy(reader Reader) *TrackingCopy {
	return &TrackingCopy{
		reader: reader,
		cache:  make(map[string]StoredValue),
		writes: make(map[string]Write),
	}
}

// Get returns a copy of the value at key.
func (tc *TrackingCopy) Get(ctx context.Context, key types.Key) (StoredValue, error) {
	id := key.StateID()
	if w, ok := tc.writes[id]; ok {
		return w.Value.Clone(), nil
	}
	if v, ok := tc.cache[id]; ok {
		return v.Clone(), nil
	}
	v, err := tc.reader.Get(ctx, key.Normalize())
	if err != nil {
		return StoredValue{}, err
	}
	tc.cache[id] = v
	return v.Clone(), nil
}

// Write records value at key.
func (tc *TrackingCopy) Write(key types.Key, value StoredValue) {
	key = key.Normalize()
	tc.writes[key.StateID()] = Write{Key: key, Value: value.Clone()}
}

// Add adds delta to the integer CL value at key, wrapping on overflow. The stored
// value and delta must have the same integer type.
func (tc *TrackingCopy) Add(ctx context.Context, key types.Key, delta types.CLValue) error {
	current, err := tc.Get(ctx, key)
	if err != nil {
		return err
	}
	if current.CLValue == nil {
		return types.ErrCLTypeMismatch
	}
	sum, err := current.CLValue.WrappingAdd(delta)
	if err != nil {
		return errors.Wrapf(err, "add to %s", key)
	}
	tc.Write(key, NewCLValue(sum))
	return nil
}

// Effects returns the writes so far, sorted by key.
func (tc *TrackingCopy) Effects() Effects {
	out := make(Effects, 0, len(tc.writes))
	for _, w := range tc.writes {
		out = append(out, Write{Key: w.Key, Value: w.Value.Clone()})
	}
	out.sort()
	return out
}
