package metaspace

// Pointer names a metadata block: the arena it lives in and its word
// offset. The zero value is the nil pointer, arena ids start at 1.
// Pointers stay valid until the owning loader is released; they are
// plain handles, the garbage collector never moves what they point at.
type Pointer struct {
	arena  int32
	offset int64
}

// IsNil check for the null allocation result.
func (ptr Pointer) IsNil() bool {
	return ptr.arena == 0
}

// chunk is a view into an arena's committed prefix, the unit of
// currency between the global pool and per-loader contexts. A chunk
// belongs to exactly one structure at a time: the pool's free
// structures or one context's in-use list.
type chunk struct {
	arena  *arena
	offset int64 // word offset within the arena
	words  int64
	level  chunklevel
	free   bool
}

// used portion accessor for block carving.
func (c *chunk) pointerat(off int64) Pointer {
	return Pointer{arena: c.arena.id, offset: c.offset + off}
}
