// Package arena specifies — at interface level only, per spec.md §1's
// explicit "arena allocator (specified only as an interface)" — the bump
// region that owns every long-lived compile-job object (AST nodes, types,
// symbols, IR). spec.md §9 describes the discipline this interface exists
// to support: references between arena-owned objects (identifier → symbol
// → declaration-node) are expressed as plain Go pointers scoped to one
// Arena's lifetime, never as objects with their own Close/Free.
//
// The teacher has no arena of its own (its passes are short-lived,
// single-shot CLI processes that rely on process exit to reclaim memory),
// so this package has no direct teacher grounding; Alloc below is a thin
// accounting wrapper around ordinary Go allocation (new(T)), which is the
// simplest faithful implementation of the interface spec.md asks for and
// needs no third-party dependency (there is no allocator library
// in the retrieval pack's dependency graph to ground this on — see
// DESIGN.md).
package arena

// Arena is a bump-pointer region whose contents are only ever freed in
// bulk, by dropping every reference to the Arena itself (spec.md Glossary).
// It never shrinks and never outlives the compile job that owns it.
type Arena interface {
	// Alive reports whether the arena has not yet been released. Typed
	// allocation is the package-level generic function Alloc[T], since a
	// Go interface method cannot take a type parameter.
	Alive() bool
}

// Region is the default Arena implementation: a simple counter wrapping
// ordinary Go allocation. It intentionally does not pool memory (Go's own
// GC already amortizes allocation cost); its contract is the *discipline*
// of "one region, one lifetime, bulk release", not a performance trick.
// Each compile job constructs exactly one Region and discards it at job end.
type Region struct {
	allocCount int
	closed     bool
}

// New creates a fresh, live Region.
func New() *Region {
	return &Region{}
}

// Alive reports whether Release has not yet been called.
func (r *Region) Alive() bool { return !r.closed }

// Release marks the region dead. Objects previously vended by Alloc[T] remain
// valid Go values (the GC, not the arena, owns their storage) but the
// region itself must not be used to allocate again; this models "bulk
// release at compile-job end" without pretending Go has manual memory
// management.
func (r *Region) Release() {
	r.closed = true
}

// AllocCount returns the number of objects vended so far, for diagnostics.
func (r *Region) AllocCount() int { return r.allocCount }

// Alloc vends a fresh zero-valued *T from the region. Go's type system
// can't express "placement new into owned storage" without unsafe, so Alloc
// is a thin accounting wrapper: it is the single call site every other
// package must route long-lived allocation through, which is what keeps the
// "one region, one lifetime" discipline enforceable and auditable.
func Alloc[T any](r *Region) *T {
	r.allocCount++
	return new(T)
}
