//go:build !unix

package metaspace

// Fallback without address-space games: the reservation is a plain
// heap buffer and commit is pure bookkeeping.

func vmreserve(words int64) *vmem {
	return &vmem{buf: make([]byte, wordstobytes(words)), reserved: words}
}

func (vm *vmem) committo(words int64) bool {
	if words > vm.reserved {
		return false
	} else if words > vm.committed {
		vm.committed = words
	}
	return true
}

func (vm *vmem) release() {
	vm.buf, vm.reserved, vm.committed = nil, 0, 0
}
