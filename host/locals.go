package host

// Locals is a set of local roots owned by one native call frame. Values
// added to an open set survive every collection until Close.
type Locals struct {
	heap   *Heap
	vals   []Value
	closed bool
}

// OpenLocals opens a new local root set.
func (h *Heap) OpenLocals() *Locals {
	l := &Locals{heap: h, vals: make([]Value, 0, 8)}
	h.mu.Lock()
	h.locals[l] = struct{}{}
	h.mu.Unlock()
	return l
}

// Add roots vs for the lifetime of the set. Immediates are ignored.
func (l *Locals) Add(vs ...Value) {
	l.heap.mu.Lock()
	defer l.heap.mu.Unlock()
	if l.closed {
		return
	}
	for _, v := range vs {
		if !v.IsImmediate() && !v.IsNil() {
			l.vals = append(l.vals, v)
		}
	}
}

// Len returns the number of rooted values.
func (l *Locals) Len() int {
	l.heap.mu.Lock()
	defer l.heap.mu.Unlock()
	return len(l.vals)
}

// Close drops every local root. Closing twice is a no-op.
func (l *Locals) Close() {
	l.heap.mu.Lock()
	defer l.heap.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.vals = nil
	delete(l.heap.locals, l)
}

// NewBlock allocates a structured block rooted in l.
func (l *Locals) NewBlock(fields ...Value) (Value, error) {
	return l.heap.allocIn(l, blockObject(TagBlock, fields))
}

// NewArray allocates an array rooted in l.
func (l *Locals) NewArray(elems ...Value) (Value, error) {
	return l.heap.allocIn(l, blockObject(TagArray, elems))
}

// NewFloat allocates a boxed float rooted in l.
func (l *Locals) NewFloat(f float64) (Value, error) {
	return l.heap.allocIn(l, &object{tag: TagFloat, num: floatBits(f)})
}

// NewString allocates a string rooted in l.
func (l *Locals) NewString(b []byte) (Value, error) {
	return l.heap.allocIn(l, stringObject(b))
}

// NewInt32 allocates a boxed int32 rooted in l.
func (l *Locals) NewInt32(n int32) (Value, error) {
	return l.heap.allocIn(l, &object{tag: TagInt32, num: uint64(int64(n))})
}

// NewInt64 allocates a boxed int64 rooted in l.
func (l *Locals) NewInt64(n int64) (Value, error) {
	return l.heap.allocIn(l, &object{tag: TagInt64, num: uint64(n)})
}

// NewClosure allocates a closure rooted in l.
func (l *Locals) NewClosure(fn ClosureFunc, env ...Value) (Value, error) {
	return l.heap.newClosure(l, fn, env)
}

// NewException allocates an exception rooted in l.
func (l *Locals) NewException(name, message string) (Value, error) {
	return l.heap.newException(l, name, message)
}
