package tui

import (
	"netsift/internal/models"
)

// RecordView is the model's copy of the record table. It is mutated only
// through dispatched actions and snapshots, both applied inside Update.
type RecordView struct {
	byKey  map[models.Key]int
	rows   []models.TrafficRecord
	status string
	dirty  bool
}

func NewRecordView() *RecordView {
	return &RecordView{byKey: make(map[models.Key]int), status: "Idle"}
}

// Notify implements models.Sink.
func (v *RecordView) Notify(n models.Notification) {
	switch n.Kind {
	case models.StatusChanged:
		v.status = n.Status
	case models.RecordAdded, models.RecordUpdated:
		if n.Record != nil {
			v.upsert(*n.Record)
		}
	}
	v.dirty = true
}

func (v *RecordView) upsert(r models.TrafficRecord) {
	k := r.Key()
	if i, ok := v.byKey[k]; ok {
		v.rows[i] = r
		return
	}
	v.byKey[k] = len(v.rows)
	v.rows = append(v.rows, r)
}

// Reset replaces the view with a snapshot in first-seen order.
func (v *RecordView) Reset(records []models.TrafficRecord) {
	v.byKey = make(map[models.Key]int, len(records))
	v.rows = v.rows[:0]
	for _, r := range records {
		v.upsert(r)
	}
	v.dirty = true
}

func (v *RecordView) Len() int { return len(v.rows) }

// At returns the i-th record.
func (v *RecordView) At(i int) (models.TrafficRecord, bool) {
	if i < 0 || i >= len(v.rows) {
		return models.TrafficRecord{}, false
	}
	return v.rows[i], true
}

func (v *RecordView) Records() []models.TrafficRecord {
	return v.rows
}

func (v *RecordView) Status() string { return v.status }
