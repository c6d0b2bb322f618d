//go:build unix

package metaspace

import "golang.org/x/sys/unix"

// vmreserve maps `words` of address space without committing any of
// it. Returns nil if the OS denies the mapping; callers treat that as
// fatal for growth, not for the process.
func vmreserve(words int64) *vmem {
	size := int(wordstobytes(words))
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, flags)
	if err != nil {
		errorf("metaspace vmreserve(%v): %v\n", size, err)
		return nil
	}
	return &vmem{buf: buf, reserved: words}
}

// committo extend the committed prefix up to `words`, a granule
// multiple. Returns false if the reservation cannot hold it.
func (vm *vmem) committo(words int64) bool {
	if words > vm.reserved {
		return false
	} else if words <= vm.committed {
		return true
	}
	from, till := wordstobytes(vm.committed), wordstobytes(words)
	prot := unix.PROT_READ | unix.PROT_WRITE
	if err := unix.Mprotect(vm.buf[from:till], prot); err != nil {
		errorf("metaspace committo(%v): %v\n", words, err)
		return false
	}
	vm.committed = words
	return true
}

// release the whole reservation back to the OS.
func (vm *vmem) release() {
	if vm.buf != nil {
		if err := unix.Munmap(vm.buf); err != nil {
			errorf("metaspace vmem release: %v\n", err)
		}
	}
	vm.buf, vm.reserved, vm.committed = nil, 0, 0
}
