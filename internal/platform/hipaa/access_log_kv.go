package hipaa

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jeev/jeev/internal/domain/account"
	"github.com/jeev/jeev/internal/platform/kv"
	"github.com/jeev/jeev/internal/platform/middleware"
)

const (
	accessKeyPrefix   = "audit:"
	accessIndexPrefix = "audit_hid:"
	accessSeqKey      = "meta:audit_seq"
)

// accessLogKV keeps events under "audit:<seq>" and indexes those carrying a
// well-formed Health ID under "audit_hid:<healthId>:<seq>". Health IDs have
// no ':' so one index prefix never covers another.
type accessLogKV struct {
	store *kv.Store
	mu    sync.Mutex
}

func NewAccessLogKV(store *kv.Store) AccessLog {
	return &accessLogKV{store: store}
}

func (l *accessLogKV) RecordAccess(entry middleware.AuditEntry) error {
	event := eventFromEntry(entry)

	l.mu.Lock()
	defer l.mu.Unlock()

	seq, err := l.store.Uint64(accessSeqKey)
	if err != nil {
		return fmt.Errorf("hipaa access log: %w", err)
	}
	seq++
	key := fmt.Sprintf("%s%020d", accessKeyPrefix, seq)

	b := kv.NewBatch()
	if err := b.PutJSON(key, event); err != nil {
		return err
	}
	if account.ValidHealthID(event.HealthID) {
		b.Put(fmt.Sprintf("%s%s:%020d", accessIndexPrefix, event.HealthID, seq), []byte(key))
	}
	b.PutUint64(accessSeqKey, seq)
	return l.store.Write(b)
}

func (l *accessLogKV) ListByHealthID(_ context.Context, healthID string, limit int) ([]*AccessEvent, error) {
	limit = normalizeLimit(limit)
	if !account.ValidHealthID(healthID) {
		return []*AccessEvent{}, nil
	}

	var keys []string
	err := l.store.Scan(accessIndexPrefix+healthID+":", func(_, value []byte) error {
		keys = append(keys, string(value))
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]*AccessEvent, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(events) < limit; i-- {
		raw, err := l.store.Get(keys[i])
		if err != nil {
			return nil, err
		}
		var event AccessEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		events = append(events, &event)
	}
	return events, nil
}
