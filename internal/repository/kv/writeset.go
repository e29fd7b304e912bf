package kv

import "github.com/kailas-cloud/resdomain/internal/db"

// writeSet keeps the last write per key in first-write order.
// A nil value is a delete.
type writeSet struct {
	order  []string
	values map[string][]byte
}

func newWriteSet() *writeSet {
	return &writeSet{values: make(map[string][]byte)}
}

func (w *writeSet) put(key string, value []byte) { w.set(key, value) }

func (w *writeSet) del(key string) { w.set(key, nil) }

func (w *writeSet) set(key string, value []byte) {
	if _, ok := w.values[key]; !ok {
		w.order = append(w.order, key)
	}
	w.values[key] = value
}

func (w *writeSet) get(key string) ([]byte, bool) {
	v, ok := w.values[key]
	return v, ok
}

func (w *writeSet) merge(other *writeSet) {
	for _, k := range other.order {
		w.set(k, other.values[k])
	}
}

func (w *writeSet) ops() []db.Op {
	ops := make([]db.Op, 0, len(w.order))
	for _, k := range w.order {
		if v := w.values[k]; v != nil {
			ops = append(ops, db.Put(k, v))
		} else {
			ops = append(ops, db.Delete(k))
		}
	}
	return ops
}
