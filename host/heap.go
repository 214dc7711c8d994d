package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrCollected   = errors.New("host object collected")
	ErrNotObject   = errors.New("host value is not a heap reference")
	ErrUnknown     = errors.New("host object never allocated")
	ErrWrongTag    = errors.New("host object has unexpected tag")
	ErrFieldBounds = errors.New("field index out of range")
	ErrNotCallable = errors.New("host value is not a closure")
	ErrNoLocals    = errors.New("no open local root set")
)

// ClosureFunc is the body of a host closure. Captured fields are available
// through Heap.Field on the closure value itself. The body allocates through
// locals, which belongs to the caller and stays open after the body returns.
type ClosureFunc func(ctx context.Context, h *Heap, locals *Locals, self Value, args []Value) (Value, error)

// Config holds heap options.
type Config struct {
	// CollectEvery triggers a full collection before every Nth allocation.
	// Zero disables automatic collection.
	CollectEvery int
}

// DefaultConfig returns a heap configuration without automatic collection.
func DefaultConfig() *Config {
	return &Config{}
}

type object struct {
	fields   []Value
	bytes    []byte
	abstract any
	fn       ClosureFunc
	num      uint64
	addr     uint64
	tag      Tag
}

func (o *object) words() uint64 {
	return 1 + uint64(len(o.fields)) + uint64(len(o.bytes)+7)/8
}

// Heap is a managed heap with a stop-the-world mark-and-sweep collector
// that relocates every survivor. All methods are safe for concurrent use.
type Heap struct {
	objects      map[ObjectID]*object
	participants map[uint64]ScanParticipant
	locals       map[*Locals]struct{}
	named        map[string]Value
	cfg          Config
	stats        Stats
	next         ObjectID
	nextPart     uint64
	cursor       uint64
	sinceCollect int
	mu           sync.Mutex
}

// NewHeap creates an empty heap. A nil config uses DefaultConfig.
func NewHeap(cfg *Config) *Heap {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Heap{
		cfg:          *cfg,
		objects:      make(map[ObjectID]*object, 64),
		participants: make(map[uint64]ScanParticipant),
		locals:       make(map[*Locals]struct{}),
		named:        make(map[string]Value),
		next:         1,
	}
}

// alloc must be called with h.mu held. pending values are treated as roots
// if the allocation triggers a collection.
func (h *Heap) alloc(o *object, pending ...Value) Value {
	if h.cfg.CollectEvery > 0 {
		h.sinceCollect++
		if h.sinceCollect >= h.cfg.CollectEvery {
			extra := append(append([]Value(nil), pending...), o.fields...)
			h.collectLocked(extra)
		}
	}

	id := h.next
	h.next++
	o.addr = h.cursor
	h.cursor += o.words()
	h.objects[id] = o
	h.stats.Allocated++
	return Ref(id)
}

// lookup must be called with h.mu held.
func (h *Heap) lookup(v Value) (*object, error) {
	if v.IsImmediate() {
		return nil, ErrNotObject
	}
	id := v.Object()
	if id == 0 {
		return nil, ErrNotObject
	}
	o, ok := h.objects[id]
	if !ok {
		if id < h.next {
			return nil, fmt.Errorf("%w: @%d", ErrCollected, id)
		}
		return nil, fmt.Errorf("%w: @%d", ErrUnknown, id)
	}
	return o, nil
}

func (h *Heap) lookupTag(v Value, want Tag) (*object, error) {
	o, err := h.lookup(v)
	if err != nil {
		return nil, err
	}
	if o.tag != want {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrWrongTag, want, o.tag)
	}
	return o, nil
}

// The New* methods return unrooted values: another goroutine's allocation
// may collect them before they are stored. Concurrent callers allocate
// through Locals instead, which roots the value before the heap lock is
// released.

// NewBlock allocates a structured block (tuple, record or Some).
func (h *Heap) NewBlock(fields ...Value) (Value, error) {
	return h.allocIn(nil, blockObject(TagBlock, fields))
}

// NewArray allocates an array holding elems.
func (h *Heap) NewArray(elems ...Value) (Value, error) {
	return h.allocIn(nil, blockObject(TagArray, elems))
}

// NewFloat allocates a boxed float.
func (h *Heap) NewFloat(f float64) (Value, error) {
	return h.allocIn(nil, &object{tag: TagFloat, num: floatBits(f)})
}

// NewString allocates a string holding a copy of b.
func (h *Heap) NewString(b []byte) (Value, error) {
	return h.allocIn(nil, stringObject(b))
}

// NewInt32 allocates a boxed int32.
func (h *Heap) NewInt32(n int32) (Value, error) {
	return h.allocIn(nil, &object{tag: TagInt32, num: uint64(int64(n))})
}

// NewInt64 allocates a boxed int64.
func (h *Heap) NewInt64(n int64) (Value, error) {
	return h.allocIn(nil, &object{tag: TagInt64, num: uint64(n)})
}

// NewAbstract allocates a block carrying an opaque Go value.
func (h *Heap) NewAbstract(x any) (Value, error) {
	return h.allocIn(nil, &object{tag: TagAbstract, abstract: x})
}

// NewClosure allocates a callable block. env values are captured as fields
// and kept alive by the closure.
func (h *Heap) NewClosure(fn ClosureFunc, env ...Value) (Value, error) {
	return h.newClosure(nil, fn, env)
}

// NewException allocates an exception value carrying name and message.
func (h *Heap) NewException(name, message string) (Value, error) {
	return h.newException(nil, name, message)
}

func blockObject(tag Tag, fields []Value) *object {
	return &object{tag: tag, fields: append([]Value(nil), fields...)}
}

func stringObject(b []byte) *object {
	return &object{tag: TagString, bytes: append([]byte(nil), b...)}
}

// allocIn allocates o and, when l is non-nil, roots it in l under the same
// lock hold.
func (h *Heap) allocIn(l *Locals, o *object) (Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l != nil && l.closed {
		return Nil, ErrNoLocals
	}
	v := h.alloc(o)
	if l != nil {
		l.vals = append(l.vals, v)
	}
	return v, nil
}

func (h *Heap) newClosure(l *Locals, fn ClosureFunc, env []Value) (Value, error) {
	if fn == nil {
		return Nil, errors.New("nil closure body")
	}
	o := blockObject(TagClosure, env)
	o.fn = fn
	return h.allocIn(l, o)
}

func (h *Heap) newException(l *Locals, name, message string) (Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l != nil && l.closed {
		return Nil, ErrNoLocals
	}
	n := h.alloc(stringObject([]byte(name)))
	m := h.alloc(stringObject([]byte(message)), n)
	v := h.alloc(&object{tag: TagException, fields: []Value{n, m}})
	if l != nil {
		l.vals = append(l.vals, v)
	}
	return v, nil
}

// Tag returns the layout tag of v. Immediates report TagInt.
func (h *Heap) Tag(v Value) (Tag, error) {
	if v.IsImmediate() {
		return TagInt, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookup(v)
	if err != nil {
		return 0, err
	}
	return o.tag, nil
}

// Len returns the number of fields of a block, array, closure or exception,
// or the byte length of a string.
func (h *Heap) Len(v Value) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookup(v)
	if err != nil {
		return 0, err
	}
	if o.tag == TagString {
		return len(o.bytes), nil
	}
	return len(o.fields), nil
}

// Field returns field i of a structured block.
func (h *Heap) Field(v Value, i int) (Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookup(v)
	if err != nil {
		return Nil, err
	}
	if i < 0 || i >= len(o.fields) {
		return Nil, fmt.Errorf("%w: %d of %d", ErrFieldBounds, i, len(o.fields))
	}
	return o.fields[i], nil
}

// Fields returns a copy of all fields of a structured block.
func (h *Heap) Fields(v Value) ([]Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookup(v)
	if err != nil {
		return nil, err
	}
	return append([]Value(nil), o.fields...), nil
}

// Store overwrites field i of a block or array.
func (h *Heap) Store(v Value, i int, x Value) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookup(v)
	if err != nil {
		return err
	}
	if o.tag != TagBlock && o.tag != TagArray {
		return fmt.Errorf("%w: store into %s", ErrWrongTag, o.tag)
	}
	if i < 0 || i >= len(o.fields) {
		return fmt.Errorf("%w: %d of %d", ErrFieldBounds, i, len(o.fields))
	}
	o.fields[i] = x
	return nil
}

// Float returns the payload of a boxed float.
func (h *Heap) Float(v Value) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupTag(v, TagFloat)
	if err != nil {
		return 0, err
	}
	return floatFrom(o.num), nil
}

// Bytes returns a copy of a string's contents.
func (h *Heap) Bytes(v Value) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupTag(v, TagString)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), o.bytes...), nil
}

// Int32 returns the payload of a boxed int32.
func (h *Heap) Int32(v Value) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupTag(v, TagInt32)
	if err != nil {
		return 0, err
	}
	return int32(int64(o.num)), nil
}

// Int64 returns the payload of a boxed int64.
func (h *Heap) Int64(v Value) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupTag(v, TagInt64)
	if err != nil {
		return 0, err
	}
	return int64(o.num), nil
}

// Abstract returns the Go value carried by an abstract block.
func (h *Heap) Abstract(v Value) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupTag(v, TagAbstract)
	if err != nil {
		return nil, err
	}
	return o.abstract, nil
}

// Exception returns the name and message of an exception value.
func (h *Heap) Exception(v Value) (name, message string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupTag(v, TagException)
	if err != nil {
		return "", "", err
	}
	n, err := h.lookupTag(o.fields[0], TagString)
	if err != nil {
		return "", "", err
	}
	m, err := h.lookupTag(o.fields[1], TagString)
	if err != nil {
		return "", "", err
	}
	return string(n.bytes), string(m.bytes), nil
}

// IsException reports whether v is a live exception value.
func (h *Heap) IsException(v Value) bool {
	if v.IsImmediate() {
		return false
	}
	tag, err := h.Tag(v)
	return err == nil && tag == TagException
}

// Apply calls a closure. The heap lock is not held while the body runs, so
// the body may allocate and trigger collections; callers keep fn and args
// rooted. The body allocates through locals, so the result is rooted in
// locals when Apply returns.
func (h *Heap) Apply(ctx context.Context, locals *Locals, fn Value, args ...Value) (Value, error) {
	if locals == nil {
		return Nil, ErrNoLocals
	}
	h.mu.Lock()
	o, err := h.lookup(fn)
	if err == nil && o.tag != TagClosure {
		err = fmt.Errorf("%w: %s", ErrNotCallable, o.tag)
	}
	if err == nil && locals.closed {
		err = ErrNoLocals
	}
	h.mu.Unlock()
	if err != nil {
		return Nil, err
	}
	return o.fn(ctx, h, locals, fn, args)
}

// Addr returns the current simulated address of a block. Survivors get a
// new address on every collection.
func (h *Heap) Addr(v Value) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookup(v)
	if err != nil {
		return 0, err
	}
	return o.addr, nil
}

// IsLive reports whether v is an immediate or names a live block.
func (h *Heap) IsLive(v Value) bool {
	if v.IsImmediate() {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.lookup(v)
	return err == nil
}

// Register binds name to v and keeps v alive until Unregister.
func (h *Heap) Register(name string, v Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.named[name] = v
	Logger().Debug("named value registered", zap.String("name", name), zap.Stringer("value", v))
}

// Unregister removes a named binding.
func (h *Heap) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.named, name)
}

// Named looks up a value registered with Register.
func (h *Heap) Named(name string) (Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.named[name]
	return v, ok
}

// Live returns the number of live blocks.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}
