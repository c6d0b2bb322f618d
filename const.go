package metaspace

// Wordsize bytes per metadata word. All sizes inside the allocator are
// expressed in words; settings are expressed in bytes.
const Wordsize = int64(8)

// Minblockwords smallest allocatable block, also the granularity every
// request is rounded up to. Freed fragments below this size become
// dark matter.
const Minblockwords = int64(4)

// Smallblockmax blocks at or below this word size recycle through
// exact-size free lists; larger blocks go through the size-keyed
// dictionary.
const Smallblockmax = int64(16)

// Maxwastemultiplier a dictionary block more than this many times the
// requested size is rejected rather than split.
const Maxwastemultiplier = int64(4)

// Smallchunklimit number of small chunks an allocation context
// consumes before switching permanently to medium chunks.
const Smallchunklimit = int64(4)

// Anonchunklimit number of specialized chunks an anonymous context
// consumes before following the regular stepping.
const Anonchunklimit = int64(4)

// Kind tells which metadata space an operation applies to. Class kind
// exists only when the compressed-pointer space is enabled.
type Kind byte

const (
	// NonClass ordinary metadata: constant pools, bytecode, tables.
	NonClass Kind = iota
	// Class compressed-pointer metadata: the type descriptors
	// themselves.
	Class
)

func (kind Kind) String() string {
	if kind == Class {
		return "class"
	}
	return "nonclass"
}

// chunk size classes, aka levels. humongous chunks have no fixed size,
// only a granularity.
type chunklevel byte

const (
	specializedlevel chunklevel = iota
	smalllevel
	mediumlevel
	humongouslevel
)

func (lvl chunklevel) String() string {
	switch lvl {
	case specializedlevel:
		return "specialized"
	case smalllevel:
		return "small"
	case mediumlevel:
		return "medium"
	}
	return "humongous"
}

// chunk geometry in words, per kind. class-kind chunks are smaller to
// cut waste for loaders with few classes.
var chunkgeometry = [2][3]int64{
	NonClass: {128, 512, 8192},
	Class:    {128, 256, 4096},
}

func chunkwords(kind Kind, lvl chunklevel) int64 {
	return chunkgeometry[kind][lvl]
}

// levelfor smallest fixed level whose chunk holds `words`, or
// humongouslevel when words exceed the medium size.
func levelfor(kind Kind, words int64) chunklevel {
	for lvl := specializedlevel; lvl <= mediumlevel; lvl++ {
		if words <= chunkgeometry[kind][lvl] {
			return lvl
		}
	}
	return humongouslevel
}

// humongouswords exact-fit size for an oversized request, always a
// multiple of the specialized size.
func humongouswords(kind Kind, words int64) int64 {
	return roundup(words, chunkwords(kind, specializedlevel))
}
