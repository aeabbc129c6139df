// Package redisstore backs the store contract with Redis: one hash per
// document (field values JSON-encoded), a set per collection tracking its
// member documents, MULTI/EXEC pipelines for batches, HINCRBY for atomic
// increments, and pub/sub on path-named channels as the change feed.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Naraveni/DraGuess/internal/store"
)

const (
	docPrefix   = "doc:"
	indexPrefix = "col:"
	chanPrefix  = "sub:"
)

type Store struct {
	rdb *redis.Client
	log zerolog.Logger
}

// New connects and pings, failing fast on an unreachable Redis the way a
// boot-time dependency should.
func New(ctx context.Context, addr, password string, db int, log zerolog.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Int("db", db).Msg("connected to redis")
	return &Store{rdb: rdb, log: log.With().Str("component", "redisstore").Logger()}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	raw, err := s.rdb.HGetAll(ctx, docPrefix+path).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, path)
	}
	return decodeFields(raw)
}

func (s *Store) Set(ctx context.Context, path string, doc store.Document, merge bool) error {
	fields, err := encodeFields(doc)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	if !merge {
		pipe.Del(ctx, docPrefix+path)
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, docPrefix+path, fields)
	}
	s.index(ctx, pipe, path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", path, err)
	}
	s.publish(ctx, path)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	exists, err := s.rdb.Exists(ctx, docPrefix+path).Result()
	if err != nil {
		return fmt.Errorf("redisstore: update %s: %w", path, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, path)
	}
	pipe := s.rdb.TxPipeline()
	if err := stageUpdate(ctx, pipe, path, fields); err != nil {
		return err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: update %s: %w", path, err)
	}
	s.publish(ctx, path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, docPrefix+path)
	pipe.SRem(ctx, indexPrefix+parent(path), path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: delete %s: %w", path, err)
	}
	s.publish(ctx, path)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Snapshot, error) {
	members, err := s.rdb.SMembers(ctx, indexPrefix+collection).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: query %s: %w", collection, err)
	}
	out := make([]store.Snapshot, 0, len(members))
	for _, path := range members {
		doc, err := s.Get(ctx, path)
		if err != nil {
			// Raced with a delete; prune the stale index entry.
			if errors.Is(err, store.ErrNotFound) {
				s.rdb.SRem(ctx, indexPrefix+collection, path)
				continue
			}
			return nil, err
		}
		if !matches(doc, filters) {
			continue
		}
		out = append(out, store.Snapshot{Path: path, ID: store.Leaf(path), Data: doc})
	}
	return out, nil
}

func (s *Store) SubscribeDoc(ctx context.Context, path string) (<-chan store.Document, store.CancelFunc, error) {
	sub := s.rdb.Subscribe(ctx, chanPrefix+path)
	out := make(chan store.Document, 1)

	var once sync.Once
	cancel := func() { once.Do(func() { _ = sub.Close() }) }

	go func() {
		defer close(out)
		// Initial snapshot; absence is a legitimate nil state.
		doc, err := s.Get(ctx, path)
		if err != nil && !isNotFound(err) {
			s.log.Warn().Err(err).Str("path", path).Msg("doc subscription failed on initial read")
			cancel()
			return
		}
		deliverDoc(out, doc)

		for range sub.Channel() {
			doc, err := s.Get(ctx, path)
			if err != nil && !isNotFound(err) {
				s.log.Warn().Err(err).Str("path", path).Msg("doc subscription dropped")
				cancel()
				return
			}
			deliverDoc(out, doc)
		}
		// sub.Channel closed: either cancel() or a lost connection; the
		// consumer sees the close and resubscribes from a full snapshot.
	}()
	return out, cancel, nil
}

func (s *Store) SubscribeCollection(ctx context.Context, path string) (<-chan []store.Snapshot, store.CancelFunc, error) {
	sub := s.rdb.Subscribe(ctx, chanPrefix+path)
	out := make(chan []store.Snapshot, 1)

	var once sync.Once
	cancel := func() { once.Do(func() { _ = sub.Close() }) }

	go func() {
		defer close(out)
		snap, err := s.Query(ctx, path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("collection subscription failed on initial read")
			cancel()
			return
		}
		deliverCol(out, snap)

		for range sub.Channel() {
			snap, err := s.Query(ctx, path)
			if err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("collection subscription dropped")
				cancel()
				return
			}
			deliverCol(out, snap)
		}
	}()
	return out, cancel, nil
}

func (s *Store) Batch() store.Batch {
	return &redisBatch{s: s}
}

type redisBatch struct {
	s   *Store
	ops []func(ctx context.Context, pipe redis.Pipeliner) error
	// touched paths, published only after a successful EXEC
	paths []string
}

func (b *redisBatch) Set(path string, doc store.Document, merge bool) store.Batch {
	b.ops = append(b.ops, func(ctx context.Context, pipe redis.Pipeliner) error {
		fields, err := encodeFields(doc)
		if err != nil {
			return err
		}
		if !merge {
			pipe.Del(ctx, docPrefix+path)
		}
		if len(fields) > 0 {
			pipe.HSet(ctx, docPrefix+path, fields)
		}
		b.s.index(ctx, pipe, path)
		return nil
	})
	b.paths = append(b.paths, path)
	return b
}

func (b *redisBatch) Update(path string, fields map[string]any) store.Batch {
	b.ops = append(b.ops, func(ctx context.Context, pipe redis.Pipeliner) error {
		return stageUpdate(ctx, pipe, path, fields)
	})
	b.paths = append(b.paths, path)
	return b
}

func (b *redisBatch) Delete(path string) store.Batch {
	b.ops = append(b.ops, func(ctx context.Context, pipe redis.Pipeliner) error {
		pipe.Del(ctx, docPrefix+path)
		pipe.SRem(ctx, indexPrefix+parent(path), path)
		return nil
	})
	b.paths = append(b.paths, path)
	return b
}

// Commit stages everything into one MULTI/EXEC so the server applies the
// batch atomically; change notifications go out only afterwards.
func (b *redisBatch) Commit(ctx context.Context) error {
	pipe := b.s.rdb.TxPipeline()
	for _, op := range b.ops {
		if err := op(ctx, pipe); err != nil {
			return err
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: batch commit: %w", err)
	}
	for _, path := range b.paths {
		b.s.publish(ctx, path)
	}
	return nil
}

// --- helpers ---

func stageUpdate(ctx context.Context, pipe redis.Pipeliner, path string, fields map[string]any) error {
	for k, v := range fields {
		if delta, ok := store.AsInc(v); ok {
			// Numbers are stored as bare JSON integers, which is exactly
			// the representation HINCRBY operates on.
			pipe.HIncrBy(ctx, docPrefix+path, k, delta)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redisstore: encode field %s.%s: %w", path, k, err)
		}
		pipe.HSet(ctx, docPrefix+path, k, string(raw))
	}
	return nil
}

func (s *Store) index(ctx context.Context, pipe redis.Pipeliner, path string) {
	if col := parent(path); col != "" {
		pipe.SAdd(ctx, indexPrefix+col, path)
	}
}

// publish pokes the document channel and its collection channel; payload
// is irrelevant, subscribers re-read full state.
func (s *Store) publish(ctx context.Context, path string) {
	s.rdb.Publish(ctx, chanPrefix+path, "1")
	if col := parent(path); col != "" {
		s.rdb.Publish(ctx, chanPrefix+col, "1")
	}
}

func encodeFields(doc store.Document) (map[string]any, error) {
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("redisstore: encode field %s: %w", k, err)
		}
		fields[k] = string(raw)
	}
	return fields, nil
}

func decodeFields(raw map[string]string) (store.Document, error) {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			return nil, fmt.Errorf("redisstore: decode field %s: %w", k, err)
		}
		doc[k] = val
	}
	return doc, nil
}

func matches(doc store.Document, filters []store.Filter) bool {
	for _, f := range filters {
		want := f.Value
		if raw, err := json.Marshal(f.Value); err == nil {
			_ = json.Unmarshal(raw, &want)
		}
		if !reflect.DeepEqual(doc[f.Field], want) {
			return false
		}
	}
	return true
}

func deliverDoc(ch chan store.Document, doc store.Document) {
	select {
	case ch <- doc:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- doc
	}
}

func deliverCol(ch chan []store.Snapshot, snap []store.Snapshot) {
	select {
	case ch <- snap:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return ""
}
