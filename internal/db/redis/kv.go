package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/resdomain/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// MGet fetches several keys in one round-trip. Missing keys yield nil.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmd := s.b().Mget().Key(keys...).Build()
	msgs, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpMGet, Err: err}
	}
	if len(msgs) != len(keys) {
		return nil, &db.Error{Op: db.OpMGet, Err: fmt.Errorf("got %d values for %d keys", len(msgs), len(keys))}
	}

	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		if m.IsNil() {
			continue
		}
		data, err := m.AsBytes()
		if err != nil {
			return nil, &db.Error{Op: db.OpMGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = data
	}
	return out, nil
}

// ExistsMulti checks several keys in a single DoMulti round-trip.
func (s *Store) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Exists().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]bool, len(results))
	for i, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			return nil, &db.Error{Op: db.OpExists, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = n > 0
	}
	return out, nil
}

// Exec applies ops inside MULTI/EXEC.
func (s *Store) Exec(ctx context.Context, ops []db.Op) error {
	if len(ops) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(ops)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, op := range ops {
		switch op.Kind {
		case db.OpPut:
			cmds = append(cmds, s.b().Set().Key(op.Key).Value(rueidis.BinaryString(op.Value)).Build())
		case db.OpDelete:
			cmds = append(cmds, s.b().Del().Key(op.Key).Build())
		default:
			return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("unknown op kind %d", op.Kind)}
		}
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			op := db.OpMulti
			if i > 0 {
				op = opName(ops[i-1].Kind)
			}
			return &db.Error{Op: op, Err: err}
		}
	}

	exec := results[len(results)-1]
	if err := exec.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpExec, Err: db.ErrTxAborted}
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	replies, err := exec.ToArray()
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i, r := range replies {
		if err := r.Error(); err != nil {
			return &db.Error{Op: opName(ops[i].Kind), Err: fmt.Errorf("key %s: %w", ops[i].Key, err)}
		}
	}
	return nil
}

func opName(k db.OpKind) string {
	if k == db.OpDelete {
		return db.OpDel
	}
	return db.OpSet
}
