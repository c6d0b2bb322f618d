package metaspace

// vmem is a reserved stretch of address space with a committed prefix.
// reserve/commit/release live in the platform files. Offsets and sizes
// are in words; only the committed prefix may be touched.
type vmem struct {
	buf       []byte
	reserved  int64 // words
	committed int64 // words
}

// slice a word range out of the committed prefix.
func (vm *vmem) slice(off, words int64) []byte {
	if off+words > vm.committed {
		panicerr("vmem.slice: {%v %v} beyond committed %v",
			off, words, vm.committed)
	}
	from := wordstobytes(off)
	return vm.buf[from : from+wordstobytes(words)]
}
