package wasmgen

// Allocator exports names used by the guest loader.
const (
	AllocExport  = "alloc"
	FreeExport   = "free"
	MemoryExport = "memory"
)

// AddAllocator adds a bump allocator over memory starting at heapBase:
//
//	alloc(size i32, align i32) -> i32
//	free(ptr i32, size i32)
//
// alloc grows memory on demand and traps when it cannot. free only
// reclaims the most recent allocation, which is enough for call-scoped
// argument buffers freed in reverse order.
func AddAllocator(m *Module, heapBase uint32) (alloc, free uint32) {
	top := m.Global(I32, true, int64(heapBase))

	c := NewCode(2)
	ptr := c.Local(I32)
	// ptr = (top + align - 1) & -align
	c.GlobalGet(top).LocalGet(1).I32Add().I32Const(1).I32Sub().
		I32Const(0).LocalGet(1).I32Sub().I32And().LocalSet(ptr)
	c.LocalGet(ptr).LocalGet(0).I32Add().GlobalSet(top)
	// grow when top passes the end of memory
	c.GlobalGet(top).MemorySize().I32Const(16).I32Shl().I32GtU().If().
		GlobalGet(top).MemorySize().I32Const(16).I32Shl().I32Sub().
		I32Const(0xffff).I32Add().I32Const(16).I32ShrU().
		MemoryGrow().I32Const(-1).I32Eq().If().Unreachable().End().
		End()
	c.LocalGet(ptr)
	alloc = m.Func(AllocExport, FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}}, c)

	c = NewCode(2)
	c.LocalGet(0).LocalGet(1).I32Add().GlobalGet(top).I32Eq().If().
		LocalGet(0).GlobalSet(top).
		End()
	free = m.Func(FreeExport, FuncType{Params: []ValType{I32, I32}}, c)

	m.ExportGlobal("heap_top", top)
	return alloc, free
}
