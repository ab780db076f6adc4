package action

import (
	"maps"
	"sync"

	"github.com/lonitor/lonitor/internal/model"
)

// Log is the append-only record of every action for the process lifetime.
type Log struct {
	mu      sync.RWMutex
	records []model.ActionRecord
	seq     uint64
}

func NewLog() *Log {
	return &Log{}
}

// Append stores r with the next sequence number and returns the stored copy.
func (l *Log) Append(r model.ActionRecord) model.ActionRecord {
	r.Parameters = maps.Clone(r.Parameters)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	r.Seq = l.seq
	l.records = append(l.records, r)
	return clone(r)
}

// Entries returns all records, newest first.
func (l *Log) Entries() []model.ActionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.ActionRecord, len(l.records))
	for i, r := range l.records {
		out[len(l.records)-1-i] = clone(r)
	}
	return out
}

func (l *Log) Latest() (model.ActionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return model.ActionRecord{}, false
	}
	return clone(l.records[len(l.records)-1]), true
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func clone(r model.ActionRecord) model.ActionRecord {
	r.Parameters = maps.Clone(r.Parameters)
	return r
}
