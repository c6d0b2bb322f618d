package metaspace

// arena owns a contiguous reserved region and bump-carves chunks from
// its committed prefix. top only ever advances. Methods are not thread
// safe, callers hold the global lock.
type arena struct {
	id         int32
	kind       Kind
	vm         *vmem
	top        int64 // words carved so far
	livechunks int64 // chunks carved and not parked free in the pool
}

func newarena(id int32, kind Kind, reservewords int64) *arena {
	vm := vmreserve(reservewords)
	if vm == nil {
		return nil
	}
	return &arena{id: id, kind: kind, vm: vm}
}

func (a *arena) reservedwords() int64 {
	return a.vm.reserved
}

func (a *arena) committedwords() int64 {
	return a.vm.committed
}

// words committed but not yet carved.
func (a *arena) available() int64 {
	return a.vm.committed - a.top
}

// carve a chunk off the committed prefix, nil when it does not fit.
func (a *arena) carve(words int64, lvl chunklevel) *chunk {
	if words > a.available() {
		return nil
	}
	c := &chunk{arena: a, offset: a.top, words: words, level: lvl}
	a.top += words
	a.livechunks++
	return c
}

// expandby commit at least minwords more, preferably preferwords, in
// granule increments. False when the reservation is exhausted; commit
// failure at the OS level also reports false.
func (a *arena) expandby(minwords, preferwords, granule int64) bool {
	atleast := roundup(a.vm.committed+minwords, granule)
	if atleast > a.vm.reserved {
		return false
	}
	target := roundup(a.vm.committed+maxint64(minwords, preferwords), granule)
	if target > a.vm.reserved {
		target = roundup(a.vm.reserved, granule)
		if target > a.vm.reserved {
			target = atleast
		}
	}
	return a.vm.committo(target)
}

// retire the arena: split the committed-but-uncarved tail into free
// chunks, largest class first, and donate them to the pool. The sub-
// specialized remainder is wasted until the arena is purged.
func (a *arena) retire(pool *chunkpool) (nchunks, donated int64) {
	chunks := []*chunk{}
	for a.available() >= chunkwords(a.kind, specializedlevel) {
		for lvl := mediumlevel; ; lvl-- {
			if cw := chunkwords(a.kind, lvl); cw <= a.available() {
				chunks = append(chunks, a.carve(cw, lvl))
				break
			}
			if lvl == specializedlevel {
				break
			}
		}
	}
	a.top = a.vm.committed // waste the remainder
	for _, c := range chunks {
		nchunks, donated = nchunks+1, donated+c.words
	}
	pool.returnchunklist(chunks)
	return nchunks, donated
}

func (a *arena) release() {
	a.vm.release()
}
