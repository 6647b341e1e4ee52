package docstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/jinzhu/copier"
)

const memoryWatchBuffer = 64

// copyOption deep copies documents. time values are copied whole, copier
// would otherwise walk their unexported fields.
var copyOption = copier.Option{
	DeepCopy: true,
	Converters: []copier.TypeConverter{
		{
			SrcType: time.Time{},
			DstType: time.Time{},
			Fn:      func(src any) (any, error) { return src.(time.Time), nil },
		},
		{
			SrcType: &time.Time{},
			DstType: &time.Time{},
			Fn: func(src any) (any, error) {
				t, _ := src.(*time.Time)
				if t == nil {
					return (*time.Time)(nil), nil
				}
				cp := *t
				return &cp, nil
			},
		},
	},
}

// Memory is an in-process Store. Stored documents are deep copies, so callers
// never share memory with the store. Transactions hold the store lock for
// their whole duration and roll back on error.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]map[string]any

	subsMu sync.Mutex
	subs   map[string]map[chan Change]struct{}
}

// NewMemory create empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		cols: map[string]map[string]any{},
		subs: map[string]map[chan Change]struct{}{},
	}
}

// clone returns a pointer to a deep copy of doc.
func clone(doc any) (any, error) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, errors.New("document is nil")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, errors.Errorf("document must be a struct, got %s", v.Kind())
	}

	dst := reflect.New(v.Type())
	if err := copier.CopyWithOption(dst.Interface(), v.Interface(), copyOption); err != nil {
		return nil, errors.Wrap(err, "copy document")
	}

	return dst.Interface(), nil
}

// decode deep copies stored (a struct pointer) into dst.
func decode(dst, stored any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errors.Errorf("destination must be a non-nil pointer, got %T", dst)
	}

	sv := reflect.ValueOf(stored).Elem()
	if dv.Elem().Type() != sv.Type() {
		return errors.Errorf("destination %s does not match stored %s", dv.Elem().Type(), sv.Type())
	}

	dv.Elem().Set(reflect.Zero(sv.Type()))
	return errors.Wrap(copier.CopyWithOption(dst, stored, copyOption), "copy document")
}

// memoryState is the lock-free core shared by Memory and memoryTx.
type memoryState struct {
	cols    map[string]map[string]any
	changes []Change
}

func (s *memoryState) col(name string) map[string]any {
	c, ok := s.cols[name]
	if !ok {
		c = map[string]any{}
		s.cols[name] = c
	}

	return c
}

func (s *memoryState) get(coll, id string, dst any) error {
	stored, ok := s.cols[coll][id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s/%s", coll, id)
	}

	return decode(dst, stored)
}

func (s *memoryState) match(q Query) ([]any, error) {
	matched := make([]any, 0)
	for _, stored := range s.cols[q.Collection] {
		doc := reflect.ValueOf(stored).Elem()
		ok := true
		for _, f := range q.Filters {
			hit, err := matchFilter(doc, f)
			if err != nil {
				return nil, err
			}
			if !hit {
				ok = false
				break
			}
		}

		if ok {
			matched = append(matched, stored)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			a := reflect.ValueOf(matched[i]).Elem()
			b := reflect.ValueOf(matched[j]).Elem()
			for _, o := range q.Orders {
				r, _ := compare(normalize(lookupField(a, o.Path)), normalize(lookupField(b, o.Path)))
				if r == 0 {
					continue
				}
				if o.Direction == Desc {
					return r > 0
				}
				return r < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []any{}, nil
		}
		matched = matched[q.Offset:]
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	return matched, nil
}

func (s *memoryState) find(q Query, dst any) error {
	sliceVal := reflect.ValueOf(dst)
	if sliceVal.Kind() != reflect.Pointer || sliceVal.Elem().Kind() != reflect.Slice {
		return errors.Errorf("destination must be a pointer to slice, got %T", dst)
	}

	matched, err := s.match(q)
	if err != nil {
		return err
	}

	elemType := sliceVal.Elem().Type().Elem()
	isPtr := elemType.Kind() == reflect.Pointer
	if isPtr {
		elemType = elemType.Elem()
	}

	out := reflect.MakeSlice(sliceVal.Elem().Type(), 0, len(matched))
	for _, stored := range matched {
		item := reflect.New(elemType)
		if err := decode(item.Interface(), stored); err != nil {
			return err
		}

		if isPtr {
			out = reflect.Append(out, item)
		} else {
			out = reflect.Append(out, item.Elem())
		}
	}

	sliceVal.Elem().Set(out)
	return nil
}

func (s *memoryState) put(coll, id string, doc any, mustNotExist bool) error {
	c := s.col(coll)
	_, exists := c[id]
	if mustNotExist && exists {
		return errors.Wrapf(ErrAlreadyExists, "%s/%s", coll, id)
	}

	cp, err := clone(doc)
	if err != nil {
		return err
	}

	c[id] = cp
	kind := ChangeAdded
	if exists {
		kind = ChangeModified
	}
	s.changes = append(s.changes, Change{Kind: kind, Collection: coll, ID: id})
	return nil
}

func (s *memoryState) update(coll, id string, updates []Update) error {
	stored, ok := s.cols[coll][id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s/%s", coll, id)
	}

	// stored documents are never mutated in place, rollback relies on it
	cp, err := clone(stored)
	if err != nil {
		return err
	}

	doc := reflect.ValueOf(cp).Elem()
	for _, u := range updates {
		if err := applyUpdate(doc, u); err != nil {
			return errors.Wrapf(err, "update %s/%s", coll, id)
		}
	}

	s.cols[coll][id] = cp
	s.changes = append(s.changes, Change{Kind: ChangeModified, Collection: coll, ID: id})
	return nil
}

func (s *memoryState) delete(coll, id string) {
	if _, ok := s.cols[coll][id]; !ok {
		return
	}

	delete(s.cols[coll], id)
	s.changes = append(s.changes, Change{Kind: ChangeRemoved, Collection: coll, ID: id})
}

func (s *memoryState) snapshot() map[string]map[string]any {
	snap := make(map[string]map[string]any, len(s.cols))
	for name, c := range s.cols {
		cc := make(map[string]any, len(c))
		for id, doc := range c {
			cc[id] = doc
		}
		snap[name] = cc
	}

	return snap
}

// run executes fn on the shared state under the write lock and publishes
// the resulting changes.
func (m *Memory) run(fn func(s *memoryState) error) error {
	m.mu.Lock()
	s := &memoryState{cols: m.cols}
	err := fn(s)
	m.mu.Unlock()

	if err == nil {
		m.publish(s.changes)
	}
	return err
}

// Get implements Store
func (m *Memory) Get(ctx context.Context, coll, id string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryState{cols: m.cols}).get(coll, id, dst)
}

// Find implements Store
func (m *Memory) Find(ctx context.Context, q Query, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryState{cols: m.cols}).find(q, dst)
}

// Count implements Store
func (m *Memory) Count(ctx context.Context, q Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	q.Offset, q.Limit = 0, 0
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched, err := (&memoryState{cols: m.cols}).match(q)
	if err != nil {
		return 0, err
	}

	return len(matched), nil
}

// Create implements Store
func (m *Memory) Create(ctx context.Context, coll, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.run(func(s *memoryState) error {
		return s.put(coll, id, doc, true)
	})
}

// Set implements Store
func (m *Memory) Set(ctx context.Context, coll, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.run(func(s *memoryState) error {
		return s.put(coll, id, doc, false)
	})
}

// Update implements Store
func (m *Memory) Update(ctx context.Context, coll, id string, updates ...Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.run(func(s *memoryState) error {
		return s.update(coll, id, updates)
	})
}

// Delete implements Store
func (m *Memory) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.run(func(s *memoryState) error {
		s.delete(coll, id)
		return nil
	})
}

// RunTransaction implements Store
func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.run(func(s *memoryState) error {
		snap := s.snapshot()
		if err := fn(ctx, &memoryTx{state: s}); err != nil {
			m.cols = snap
			s.changes = nil
			return err
		}

		return nil
	})
}

// Watch implements Store
func (m *Memory) Watch(ctx context.Context, coll string) (<-chan Change, error) {
	ch := make(chan Change, memoryWatchBuffer)
	m.subsMu.Lock()
	if m.subs[coll] == nil {
		m.subs[coll] = map[chan Change]struct{}{}
	}
	m.subs[coll][ch] = struct{}{}
	m.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subsMu.Lock()
		delete(m.subs[coll], ch)
		close(ch)
		m.subsMu.Unlock()
	}()

	return ch, nil
}

func (m *Memory) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, c := range changes {
		for ch := range m.subs[c.Collection] {
			select {
			case ch <- c:
			default: // slow subscriber, drop
			}
		}
	}
}

// Close implements Store
func (m *Memory) Close(context.Context) error {
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Get(coll, id string, dst any) error {
	return t.state.get(coll, id, dst)
}

func (t *memoryTx) Find(q Query, dst any) error {
	return t.state.find(q, dst)
}

func (t *memoryTx) Create(coll, id string, doc any) error {
	return t.state.put(coll, id, doc, true)
}

func (t *memoryTx) Set(coll, id string, doc any) error {
	return t.state.put(coll, id, doc, false)
}

func (t *memoryTx) Update(coll, id string, updates ...Update) error {
	return t.state.update(coll, id, updates)
}

func (t *memoryTx) Delete(coll, id string) error {
	t.state.delete(coll, id)
	return nil
}
