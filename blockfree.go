package metaspace

// blockfreelist recycles deallocated blocks inside one allocation
// context. Blocks at or below Smallblockmax words sit on exact-size
// lists, larger blocks in a size-keyed best-fit dictionary. Blocks
// never travel back to the chunk pool. Methods are not thread safe,
// the owning context's lock covers them.
type blockfreelist struct {
	bins  [Smallblockmax + 1][]Pointer
	large *freemap[Pointer]
	words int64 // words parked across bins and dictionary
	dark  int64 // words discarded as dark matter
}

func newblockfreelist() *blockfreelist {
	return &blockfreelist{large: newfreemap[Pointer]()}
}

// getblock reuse a freed block of exactly `words`, already rounded to
// Minblockwords. Small sizes hit their exact bin; larger sizes do a
// best-fit lookup, rejecting blocks more than Maxwastemultiplier times
// the request and splitting otherwise. Split remainders too small to
// store become dark matter.
func (bf *blockfreelist) getblock(words int64) (Pointer, bool) {
	if words <= Smallblockmax {
		bin := bf.bins[words]
		if len(bin) == 0 {
			return Pointer{}, false
		}
		ptr := bin[len(bin)-1]
		bf.bins[words] = bin[:len(bin)-1]
		bf.words -= words
		return ptr, true
	}
	ptr, got, ok := bf.large.bestfit(words)
	if ok == false {
		return Pointer{}, false
	}
	if got > words*Maxwastemultiplier {
		bf.large.insert(got, ptr) // too wasteful, put it back
		return Pointer{}, false
	}
	bf.words -= got
	if remainder := got - words; remainder >= Minblockwords {
		rest := Pointer{arena: ptr.arena, offset: ptr.offset + words}
		bf.returnblock(rest, remainder)
	} else if remainder > 0 {
		bf.dark += remainder
	}
	return ptr, true
}

func (bf *blockfreelist) returnblock(ptr Pointer, words int64) {
	if words < Minblockwords {
		panicerr("blockfreelist.returnblock: %v words", words)
	}
	if words <= Smallblockmax {
		bf.bins[words] = append(bf.bins[words], ptr)
	} else {
		bf.large.insert(words, ptr)
	}
	bf.words += words
}

func (bf *blockfreelist) totalwords() int64 {
	return bf.words
}

func (bf *blockfreelist) darkwords() int64 {
	return bf.dark
}
