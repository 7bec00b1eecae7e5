package trace

import "math/rand"

// Generate builds a random trace of the given length. Every free and resize refers to an id that
// is live at that point, and every allocation is freed by the end of the trace when ops > 1.
func Generate(seed int64, ops int, maxSize int) *Trace {
	if maxSize < 1 {
		maxSize = 1
	}

	rng := rand.New(rand.NewSource(seed))
	t := &Trace{Ops: make([]Op, 0, ops)}

	var live []int
	nextID := 0

	takeLive := func() (int, int) {
		index := rng.Intn(len(live))
		return index, live[index]
	}

	for len(t.Ops) < ops {
		remaining := ops - len(t.Ops)

		// Drain live allocations once the remaining budget only covers their frees. A single
		// spare operation is spent on a resize so the trace still ends empty.
		if len(live) > 0 && remaining <= len(live) {
			index, id := takeLive()
			live = append(live[:index], live[index+1:]...)
			t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
			continue
		}
		if len(live) > 0 && remaining == len(live)+1 {
			_, id := takeLive()
			t.Ops = append(t.Ops, Op{Kind: OpRealloc, ID: id, Size: 1 + rng.Intn(maxSize)})
			continue
		}

		roll := rng.Intn(10)
		switch {
		case len(live) == 0 || roll < 4:
			t.Ops = append(t.Ops, Op{Kind: OpAlloc, ID: nextID, Size: 1 + rng.Intn(maxSize)})
			live = append(live, nextID)
			nextID++

		case roll < 5:
			alignment := 64 << rng.Intn(6)
			t.Ops = append(t.Ops, Op{Kind: OpMemalign, ID: nextID, Size: 1 + rng.Intn(maxSize), Alignment: alignment})
			live = append(live, nextID)
			nextID++

		case roll < 7:
			_, id := takeLive()
			t.Ops = append(t.Ops, Op{Kind: OpRealloc, ID: id, Size: 1 + rng.Intn(maxSize)})

		default:
			index, id := takeLive()
			live = append(live[:index], live[index+1:]...)
			t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
		}
	}

	return t
}
