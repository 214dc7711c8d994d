package host

import (
	"math"
	"slices"
	"time"

	"go.uber.org/zap"
)

// ScanParticipant contributes root identities to every collection.
// Scan is called with the heap lock held and must not call back into the heap.
type ScanParticipant interface {
	Scan() []ObjectID
}

// ScanFunc adapts a function to ScanParticipant.
type ScanFunc func() []ObjectID

func (f ScanFunc) Scan() []ObjectID { return f() }

// Collector is the capability a root provider registers with.
type Collector interface {
	RegisterScanParticipant(p ScanParticipant) (unregister func())
}

// Stats is a snapshot of heap counters.
type Stats struct {
	Live         int
	Allocated    uint64
	Freed        uint64
	Moved        uint64
	Collections  uint64
	Participants int
	OpenLocals   int
	Named        int
}

// RegisterScanParticipant adds p to the root set. The returned function
// removes it and is safe to call more than once.
func (h *Heap) RegisterScanParticipant(p ScanParticipant) func() {
	h.mu.Lock()
	id := h.nextPart
	h.nextPart++
	h.participants[id] = p
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.participants, id)
		h.mu.Unlock()
	}
}

// Collect runs a full stop-the-world collection and returns how many blocks
// were freed.
func (h *Heap) Collect() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collectLocked(nil)
}

// Stats returns a snapshot of heap counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.Live = len(h.objects)
	s.Participants = len(h.participants)
	s.OpenLocals = len(h.locals)
	s.Named = len(h.named)
	return s
}

func (h *Heap) collectLocked(extra []Value) int {
	start := time.Now()
	h.sinceCollect = 0

	marked := make(map[ObjectID]struct{}, len(h.objects))
	var work []ObjectID

	push := func(id ObjectID) {
		if id == 0 {
			return
		}
		if _, ok := marked[id]; ok {
			return
		}
		if _, ok := h.objects[id]; !ok {
			return
		}
		marked[id] = struct{}{}
		work = append(work, id)
	}

	for _, v := range extra {
		push(v.Object())
	}
	for _, v := range h.named {
		push(v.Object())
	}
	for l := range h.locals {
		for _, v := range l.vals {
			push(v.Object())
		}
	}
	for _, p := range h.participants {
		for _, id := range p.Scan() {
			if _, ok := h.objects[id]; !ok && id < h.next {
				Logger().Warn("scan participant reported a dead object", zap.Uint64("object", uint64(id)))
			}
			push(id)
		}
	}

	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range h.objects[id].fields {
			push(f.Object())
		}
	}

	freed := 0
	for id := range h.objects {
		if _, ok := marked[id]; !ok {
			delete(h.objects, id)
			freed++
		}
	}

	// Compact survivors into a fresh region in identity order.
	ids := make([]ObjectID, 0, len(h.objects))
	for id := range h.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		o := h.objects[id]
		o.addr = h.cursor
		h.cursor += o.words()
	}

	h.stats.Collections++
	h.stats.Freed += uint64(freed)
	h.stats.Moved += uint64(len(ids))

	Logger().Debug("collection finished",
		zap.Int("freed", freed),
		zap.Int("live", len(h.objects)),
		zap.Duration("took", time.Since(start)))

	return freed
}

func floatBits(f float64) uint64 { return math.Float64bits(f) }

func floatFrom(b uint64) float64 { return math.Float64frombits(b) }
