package redis

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/db"
)

// LPush prepends values to a list.
func (s *Store) LPush(ctx context.Context, key string, values ...[]byte) error {
	if len(values) == 0 {
		return nil
	}
	elems := make([]string, len(values))
	for i, v := range values {
		elems[i] = string(v)
	}
	cmd := s.b().Lpush().Key(key).Element(elems...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	return nil
}

// LTrim keeps only the elements within [start, stop].
func (s *Store) LTrim(ctx context.Context, key string, start, stop int64) error {
	cmd := s.b().Ltrim().Key(key).Start(start).Stop(stop).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLTrim, Err: err}
	}
	return nil
}

// LRange returns elements within [start, stop].
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	cmd := s.b().Lrange().Key(key).Start(start).Stop(stop).Build()
	elems, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	out := make([][]byte, len(elems))
	for i, e := range elems {
		out[i] = []byte(e)
	}
	return out, nil
}
