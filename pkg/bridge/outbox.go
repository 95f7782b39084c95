package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Outbox is a durable TranscriptEmitter. Turns are persisted before the
// call ends so a crash cannot lose a completed conversation; a drain loop
// hands them to a downstream sink and deletes acknowledged entries.
type Outbox struct {
	db *badger.DB
}

// OutboxOptions configures the outbox store.
type OutboxOptions struct {
	// Dir is the directory for the data files. Required unless InMemory.
	Dir string

	// InMemory runs the store without disk persistence, for tests.
	InMemory bool
}

// NewOutbox opens the durable transcript store.
func NewOutbox(opts OutboxOptions) (*Outbox, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("bridge: OutboxOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(outboxLogger{})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("bridge: open outbox: %w", err)
	}
	return &Outbox{db: db}, nil
}

// outboxKey orders entries per call and keeps them unique even when two
// turns share a timestamp. UUIDv7 sorts by creation time.
func outboxKey(callID string) []byte {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return []byte("turn/" + callID + "/" + id.String())
}

// Emit implements TranscriptEmitter by persisting the turn.
func (o *Outbox) Emit(_ context.Context, turn TranscriptTurn) error {
	val, err := msgpack.Marshal(turn)
	if err != nil {
		return fmt.Errorf("bridge: encode turn: %w", err)
	}
	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(outboxKey(turn.CallID), val)
	})
	if err != nil {
		return fmt.Errorf("bridge: persist turn: %w", err)
	}
	return nil
}

// PendingEntry is a persisted turn awaiting delivery.
type PendingEntry struct {
	Key  []byte
	Turn TranscriptTurn
}

// Pending returns all persisted turns in key order.
func (o *Outbox) Pending(_ context.Context) ([]PendingEntry, error) {
	var out []PendingEntry
	err := o.db.View(func(txn *badger.Txn) error {
		prefix := []byte("turn/")
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var turn TranscriptTurn
			if err := msgpack.Unmarshal(val, &turn); err != nil {
				return fmt.Errorf("bridge: decode turn %s: %w", key, err)
			}
			out = append(out, PendingEntry{Key: key, Turn: turn})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Drain delivers every pending turn to sink, deleting each entry after
// the sink accepts it. Delivery stops at the first sink error so the
// remaining entries survive for the next attempt.
func (o *Outbox) Drain(ctx context.Context, sink TranscriptEmitter) (int, error) {
	pending, err := o.Pending(ctx)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := sink.Emit(ctx, e.Turn); err != nil {
			return delivered, err
		}
		err := o.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(e.Key)
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// outboxLogger suppresses badger's info and debug chatter.
type outboxLogger struct{}

func (outboxLogger) Errorf(f string, v ...interface{})   { log.Printf("[outbox] ERROR: "+f, v...) }
func (outboxLogger) Warningf(f string, v ...interface{}) { log.Printf("[outbox] WARN: "+f, v...) }
func (outboxLogger) Infof(string, ...interface{})        {}
func (outboxLogger) Debugf(string, ...interface{})       {}
