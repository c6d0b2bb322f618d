package metaspace

import "sync"

// spaceman is the allocation context for one metadata kind of one
// class-loading context: it owns the chunks on its in-use lists,
// bump-allocates blocks from the current chunk and recycles freed
// blocks through its block free list. Guarded by its own lock, block
// traffic of one loader never blocks another's.
type spaceman struct {
	ms        *Metaspace
	kind      Kind
	name      string
	anonymous bool

	mu       sync.Mutex
	inuse    [4][]*chunk
	current  *chunk
	top      int64 // words consumed within the current chunk
	freelist *blockfreelist
	nchunks  int64
	nsmall   int64 // small chunks consumed so far
	medium   bool  // switched permanently to medium chunks
	used     int64 // net block words handed out
	capacity int64 // sum of in-use chunk words
	released bool
}

func newspaceman(ms *Metaspace, kind Kind, name string, anon bool) *spaceman {
	return &spaceman{
		ms: ms, kind: kind, name: name, anonymous: anon,
		freelist: newblockfreelist(),
	}
}

// allocate a block of `words`, rounded up to Minblockwords. Returns
// the nil Pointer on chunk-acquisition failure, the facade owns the
// retry ladder.
func (sm *spaceman) allocate(words int64) Pointer {
	return sm.allocwith(words, false)
}

// fallback path: smallest chunk class that fits, bypassing the stepped
// policy, to salvage memory fragmented into many small chunks.
func (sm *spaceman) allocatefallback(words int64) Pointer {
	return sm.allocwith(words, true)
}

func (sm *spaceman) allocwith(words int64, smallonly bool) Pointer {
	words = roundup(words, Minblockwords)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.released {
		panicerr("spaceman.allocate: %q already released", sm.name)
	}
	if ptr, ok := sm.freelist.getblock(words); ok {
		sm.adjustused(words)
		return ptr
	}
	if ptr, ok := sm.bump(words); ok {
		sm.adjustused(words)
		return ptr
	}
	if sm.acquirechunk(words, smallonly) == false {
		return Pointer{}
	}
	ptr, _ := sm.bump(words)
	sm.adjustused(words)
	return ptr
}

// deallocate push the block onto the free list. Deallocation cannot
// fail and never touches the chunk pool.
func (sm *spaceman) deallocate(ptr Pointer, words int64) {
	words = roundup(words, Minblockwords)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.released {
		panicerr("spaceman.deallocate: %q already released", sm.name)
	}
	sm.freelist.returnblock(ptr, words)
	sm.adjustused(-words)
}

func (sm *spaceman) bump(words int64) (Pointer, bool) {
	if sm.current == nil || sm.top+words > sm.current.words {
		return Pointer{}, false
	}
	ptr := sm.current.pointerat(sm.top)
	sm.top += words
	return ptr, true
}

// acquirechunk fetch the next chunk from the pool or the registry and
// make it current. The old current chunk's unused remainder goes to
// the block free list instead of being wasted.
func (sm *spaceman) acquirechunk(words int64, smallonly bool) bool {
	lvl, cwords := sm.nextchunk(words, smallonly)
	c := sm.ms.fetchchunk(sm.kind, lvl, cwords)
	if c == nil {
		return false
	}
	if cur := sm.current; cur != nil {
		if remainder := cur.words - sm.top; remainder >= Minblockwords {
			sm.freelist.returnblock(cur.pointerat(sm.top), remainder)
		}
	}
	sm.inuse[c.level] = append(sm.inuse[c.level], c)
	sm.current, sm.top = c, 0
	sm.nchunks++
	if c.level == smalllevel {
		sm.nsmall++
	} else if c.level == mediumlevel {
		sm.medium = true
	}
	sm.capacity += c.words
	sm.ms.adjustcapacity(sm.kind, c.words)
	return true
}

// nextchunk stepped chunk-size policy. Oversized requests always get
// an exact-fit humongous chunk. Anonymous contexts start on
// specialized chunks, everyone else consumes up to the configured
// count of small chunks and then switches permanently to medium.
func (sm *spaceman) nextchunk(words int64, smallonly bool) (chunklevel, int64) {
	if words > chunkwords(sm.kind, mediumlevel) {
		return humongouslevel, humongouswords(sm.kind, words)
	}
	minlvl := levelfor(sm.kind, words)
	if smallonly {
		return minlvl, chunkwords(sm.kind, minlvl)
	}
	lvl := smalllevel
	if sm.medium || sm.nsmall >= sm.ms.cf.smallchunks {
		lvl = mediumlevel
	} else if sm.anonymous && sm.nchunks < Anonchunklimit {
		lvl = specializedlevel
	}
	if minlvl > lvl {
		lvl = minlvl
	}
	return lvl, chunkwords(sm.kind, lvl)
}

func (sm *spaceman) adjustused(words int64) {
	sm.used += words
	sm.ms.adjustused(sm.kind, words)
}

// release hand every in-use chunk back to the chunk pool and subtract
// the running totals from the global counters. The spaceman is dead
// afterwards.
func (sm *spaceman) release() (nchunks, words int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.released {
		return 0, 0
	}
	chunks := make([]*chunk, 0, sm.nchunks)
	for lvl := range sm.inuse {
		chunks = append(chunks, sm.inuse[lvl]...)
		sm.inuse[lvl] = nil
	}
	for _, c := range chunks {
		nchunks, words = nchunks+1, words+c.words
	}
	sm.ms.parkchunks(sm.kind, chunks)
	sm.ms.adjustused(sm.kind, -sm.used)
	sm.ms.adjustcapacity(sm.kind, -sm.capacity)
	sm.current, sm.top, sm.released = nil, 0, true
	sm.used, sm.capacity = 0, 0
	return nchunks, words
}

func (sm *spaceman) stats(stats map[string]interface{}) map[string]interface{} {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	prefix := sm.kind.String() + "."
	stats[prefix+"n_usedwords"] = sm.used
	stats[prefix+"n_capacitywords"] = sm.capacity
	stats[prefix+"n_chunks"] = sm.nchunks
	stats[prefix+"n_freeblockwords"] = sm.freelist.totalwords()
	stats[prefix+"n_darkwords"] = sm.freelist.darkwords()
	return stats
}
