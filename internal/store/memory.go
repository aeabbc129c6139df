package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Memory is the embedded Store used by tests and single-process
// deployments. One mutex guards the document tree, which is what makes a
// Batch commit a single critical section: subscribers observe either the
// pre-commit or the post-commit world, never a half-applied transition.
//
// Subscriber channels are buffered with latest-wins coalescing, so a slow
// consumer drops intermediate snapshots instead of stalling writers.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]Document
	docSubs map[string]map[int]chan Document
	colSubs map[string]map[int]chan []Snapshot
	nextSub int
}

func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]Document),
		docSubs: make(map[string]map[int]chan Document),
		colSubs: make(map[string]map[int]chan []Snapshot),
	}
}

func (m *Memory) Get(_ context.Context, path string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return copyDoc(doc), nil
}

func (m *Memory) Set(_ context.Context, path string, doc Document, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applySet(path, doc, merge)
	m.notify(path)
	return nil
}

func (m *Memory) Update(_ context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	m.applyUpdate(path, fields)
	m.notify(path)
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	m.notify(path)
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectionLocked(collection, filters...), nil
}

func (m *Memory) SubscribeDoc(ctx context.Context, path string) (<-chan Document, CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Document, 1)
	id := m.nextSub
	m.nextSub++
	if m.docSubs[path] == nil {
		m.docSubs[path] = make(map[int]chan Document)
	}
	m.docSubs[path][id] = ch

	// Initial snapshot, mirroring the store's onSnapshot semantics: the
	// consumer always starts from current state, absent delivered as nil.
	pushDoc(ch, copyDoc(m.docs[path]))

	cancel := m.cancelDocSub(path, id, ch)
	watchContext(ctx, cancel)
	return ch, cancel, nil
}

func (m *Memory) SubscribeCollection(ctx context.Context, path string) (<-chan []Snapshot, CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan []Snapshot, 1)
	id := m.nextSub
	m.nextSub++
	if m.colSubs[path] == nil {
		m.colSubs[path] = make(map[int]chan []Snapshot)
	}
	m.colSubs[path][id] = ch

	pushCol(ch, m.collectionLocked(path))

	cancel := m.cancelColSub(path, id, ch)
	watchContext(ctx, cancel)
	return ch, cancel, nil
}

func (m *Memory) Batch() Batch {
	return &memoryBatch{m: m}
}

type batchOp struct {
	kind   string // "set" | "merge" | "update" | "delete"
	path   string
	doc    Document
	fields map[string]any
}

type memoryBatch struct {
	m   *Memory
	ops []batchOp
}

func (b *memoryBatch) Set(path string, doc Document, merge bool) Batch {
	kind := "set"
	if merge {
		kind = "merge"
	}
	b.ops = append(b.ops, batchOp{kind: kind, path: path, doc: copyDoc(doc)})
	return b
}

func (b *memoryBatch) Update(path string, fields map[string]any) Batch {
	b.ops = append(b.ops, batchOp{kind: "update", path: path, fields: fields})
	return b
}

func (b *memoryBatch) Delete(path string) Batch {
	b.ops = append(b.ops, batchOp{kind: "delete", path: path})
	return b
}

// Commit applies every staged op inside one critical section and only
// then fans out notifications, so no observer sees an interleaved partial
// state. Updates are validated against existing documents up front to
// keep the batch all-or-nothing.
func (b *memoryBatch) Commit(_ context.Context) error {
	m := b.m
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]bool, len(b.ops))
	for _, op := range b.ops {
		if op.kind == "set" || op.kind == "merge" {
			staged[op.path] = true
		}
	}
	for _, op := range b.ops {
		if op.kind != "update" {
			continue
		}
		if _, ok := m.docs[op.path]; !ok && !staged[op.path] {
			return fmt.Errorf("%w: batch update %s", ErrNotFound, op.path)
		}
	}

	touched := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		switch op.kind {
		case "set":
			m.applySet(op.path, op.doc, false)
		case "merge":
			m.applySet(op.path, op.doc, true)
		case "update":
			m.applyUpdate(op.path, op.fields)
		case "delete":
			delete(m.docs, op.path)
		}
		touched = append(touched, op.path)
	}
	m.notifyAll(touched)
	return nil
}

// --- internals, all called with mu held ---

func (m *Memory) applySet(path string, doc Document, merge bool) {
	if !merge {
		m.docs[path] = copyDoc(doc)
		return
	}
	cur := m.docs[path]
	if cur == nil {
		cur = make(Document, len(doc))
	}
	for k, v := range doc {
		cur[k] = copyValue(v)
	}
	m.docs[path] = cur
}

func (m *Memory) applyUpdate(path string, fields map[string]any) {
	cur := m.docs[path]
	if cur == nil {
		cur = make(Document, len(fields))
		m.docs[path] = cur
	}
	for k, v := range fields {
		if delta, ok := AsInc(v); ok {
			cur[k] = numberOf(cur[k]) + float64(delta)
			continue
		}
		cur[k] = normalize(v)
	}
}

func (m *Memory) collectionLocked(collection string, filters ...Filter) []Snapshot {
	prefix := collection + "/"
	out := make([]Snapshot, 0)
	for path, doc := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.ContainsRune(path[len(prefix):], '/') {
			continue // document of a nested collection, not a direct child
		}
		if !matches(doc, filters) {
			continue
		}
		out = append(out, Snapshot{Path: path, ID: Leaf(path), Data: copyDoc(doc)})
	}
	return out
}

func (m *Memory) notify(path string) {
	m.notifyAll([]string{path})
}

func (m *Memory) notifyAll(paths []string) {
	doneDocs := make(map[string]bool)
	doneCols := make(map[string]bool)
	for _, path := range paths {
		if !doneDocs[path] {
			doneDocs[path] = true
			for _, ch := range m.docSubs[path] {
				pushDoc(ch, copyDoc(m.docs[path]))
			}
		}
		col := parent(path)
		if col == "" || doneCols[col] {
			continue
		}
		doneCols[col] = true
		if len(m.colSubs[col]) == 0 {
			continue
		}
		snap := m.collectionLocked(col)
		for _, ch := range m.colSubs[col] {
			pushCol(ch, snap)
		}
	}
}

func (m *Memory) cancelDocSub(path string, id int, ch chan Document) CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.docSubs[path], id)
			close(ch)
		})
	}
}

func (m *Memory) cancelColSub(path string, id int, ch chan []Snapshot) CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.colSubs[path], id)
			close(ch)
		})
	}
}

func watchContext(ctx context.Context, cancel CancelFunc) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
}

// pushDoc delivers with latest-wins coalescing on the 1-slot buffer.
func pushDoc(ch chan Document, doc Document) {
	for {
		select {
		case ch <- doc:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func pushCol(ch chan []Snapshot, snap []Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(doc[f.Field], normalize(f.Value)) {
			return false
		}
	}
	return true
}

// normalize pushes a caller-supplied value through the JSON shape every
// stored value already has, so typed strings and ints compare equal to
// their persisted form.
func normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func numberOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func copyDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	default:
		return normalize(v)
	}
}

func parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return ""
}
