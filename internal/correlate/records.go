package correlate

import (
	"sort"
	"sync"
	"sync/atomic"

	"netsift/internal/models"
)

// RecordTable holds at most one record per (address, protocol) key.
// Lookups are lock-free; each record has its own lock.
type RecordTable struct {
	entries sync.Map // models.Key -> *entry
	seq     atomic.Int64
	size    atomic.Int64
}

type entry struct {
	mu  sync.Mutex
	seq int64
	rec models.TrafficRecord
}

func newRecordTable() *RecordTable {
	return &RecordTable{}
}

// getOrCreate returns the entry for key, creating it from init when absent.
// created is true for exactly one caller per key. onCreate, when set, sees
// the new record before any other caller can lock the entry.
func (t *RecordTable) getOrCreate(key models.Key, init func() models.TrafficRecord, onCreate func(models.TrafficRecord)) (e *entry, created bool) {
	if v, ok := t.entries.Load(key); ok {
		return v.(*entry), false
	}
	fresh := &entry{}
	fresh.mu.Lock()
	v, loaded := t.entries.LoadOrStore(key, fresh)
	if loaded {
		fresh.mu.Unlock()
		return v.(*entry), false
	}
	fresh.seq = t.seq.Add(1)
	fresh.rec = init()
	t.size.Add(1)
	if onCreate != nil {
		onCreate(fresh.rec)
	}
	fresh.mu.Unlock()
	return fresh, true
}

// update applies fn to the record under its lock and returns a copy of the
// result. onChange, when set, runs under the same lock if fn reported a
// change. ok is false when the key is unknown.
func (t *RecordTable) update(key models.Key, fn func(*models.TrafficRecord) bool, onChange func(models.TrafficRecord)) (rec models.TrafficRecord, changed, ok bool) {
	v, found := t.entries.Load(key)
	if !found {
		return models.TrafficRecord{}, false, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	changed = fn(&e.rec)
	if changed && onChange != nil {
		onChange(e.rec)
	}
	return e.rec, changed, true
}

// Get returns a copy of the record for key.
func (t *RecordTable) Get(key models.Key) (models.TrafficRecord, bool) {
	v, ok := t.entries.Load(key)
	if !ok {
		return models.TrafficRecord{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, true
}

// Snapshot returns copies of all records in first-seen order.
func (t *RecordTable) Snapshot() []models.TrafficRecord {
	type item struct {
		seq int64
		rec models.TrafficRecord
	}
	items := make([]item, 0, t.size.Load())
	t.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		items = append(items, item{seq: e.seq, rec: e.rec})
		e.mu.Unlock()
		return true
	})
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	out := make([]models.TrafficRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

// Keys returns every key currently held.
func (t *RecordTable) Keys() []models.Key {
	var keys []models.Key
	t.entries.Range(func(k, _ any) bool {
		keys = append(keys, k.(models.Key))
		return true
	})
	return keys
}

// Len returns the number of records.
func (t *RecordTable) Len() int {
	return int(t.size.Load())
}
