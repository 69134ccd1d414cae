package hsm

// ActionBuffer double-buffers the contexts an action runs over. Adds land
// in the next set, Update swaps it in for the following pass. Filters drop
// a context once at the next swap; interceptors block a context from being
// re-added until removed.
type ActionBuffer struct {
	curr, next  []Context
	filter      map[Context]struct{}
	interceptor map[Context]struct{}
}

func NewActionBuffer() *ActionBuffer {
	return &ActionBuffer{
		filter:      map[Context]struct{}{},
		interceptor: map[Context]struct{}{},
	}
}

// Add stages ctx for the next pass unless it is intercepted or already
// staged.
func (b *ActionBuffer) Add(ctx Context) {
	if _, ok := b.interceptor[ctx]; ok {
		return
	}
	for _, c := range b.next {
		if c == ctx {
			return
		}
	}
	b.next = append(b.next, ctx)
}

func (b *ActionBuffer) Adds(ctxs []Context) {
	for _, ctx := range ctxs {
		b.Add(ctx)
	}
}

func (b *ActionBuffer) AddFilter(ctx Context) {
	b.filter[ctx] = struct{}{}
}

func (b *ActionBuffer) AddInterceptor(ctx Context) {
	b.interceptor[ctx] = struct{}{}
}

func (b *ActionBuffer) RemoveInterceptor(ctx Context) {
	delete(b.interceptor, ctx)
}

// Reflow carries the current contexts over to the next pass unchanged.
// Anchor buffers use it to keep contexts alive without an action touching
// them.
func (b *ActionBuffer) Reflow() {
	b.Adds(b.curr)
}

// Update swaps the staged set in, applies and clears the filter set, and
// empties the staging side.
func (b *ActionBuffer) Update() {
	b.curr, b.next = b.next, b.curr[:0]
	if len(b.filter) > 0 {
		kept := b.curr[:0]
		for _, c := range b.curr {
			if _, drop := b.filter[c]; !drop {
				kept = append(kept, c)
			}
		}
		b.curr = kept
		clear(b.filter)
	}
}

// UpdateInterceptor intercepts every context the action dropped this pass,
// so a dropped context stays out until something removes the interceptor.
func (b *ActionBuffer) UpdateInterceptor() {
	if sameContexts(b.curr, b.next) {
		return
	}
	staged := make(map[Context]struct{}, len(b.next))
	for _, c := range b.next {
		staged[c] = struct{}{}
	}
	for _, c := range b.curr {
		if _, ok := staged[c]; !ok {
			b.interceptor[c] = struct{}{}
		}
	}
}

// Curr returns a copy of the contexts for the current pass.
func (b *ActionBuffer) Curr() []Context {
	if len(b.curr) == 0 {
		return nil
	}
	out := make([]Context, len(b.curr))
	copy(out, b.curr)
	return out
}

func (b *ActionBuffer) Empty() bool {
	return len(b.curr) == 0
}

func sameContexts(a, b []Context) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
