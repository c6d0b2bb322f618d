package metaspace

// chunkpool parks free chunks of one metadata kind: a LIFO free list
// per fixed size class and a size-keyed dictionary for humongous
// chunks. Fixed classes never interoperate, a request for one class is
// never satisfied by splitting another. Methods are not thread safe,
// callers hold the global lock.
type chunkpool struct {
	kind       Kind
	freelists  [3][]*chunk
	humongous  *freemap[*chunk]
	freechunks int64
	freewords  int64
}

func newchunkpool(kind Kind) *chunkpool {
	pool := &chunkpool{kind: kind, humongous: newfreemap[*chunk]()}
	for lvl := specializedlevel; lvl <= mediumlevel; lvl++ {
		pool.freelists[lvl] = make([]*chunk, 0, 16)
	}
	return pool
}

// allocate a free chunk able to hold `words` at the given level. For
// fixed levels this pops the head of that level's list, for humongous
// it is a best-fit lookup which may return a chunk larger than asked.
// Returns nil on a pool miss.
func (pool *chunkpool) allocate(lvl chunklevel, words int64) *chunk {
	var c *chunk
	if lvl == humongouslevel {
		if got, _, ok := pool.humongous.bestfit(words); ok {
			c = got
		}
	} else if fl := pool.freelists[lvl]; len(fl) > 0 {
		c, pool.freelists[lvl] = fl[len(fl)-1], fl[:len(fl)-1]
	}
	if c == nil {
		return nil
	}
	c.free = false
	c.arena.livechunks++
	pool.freechunks--
	pool.freewords -= c.words
	return c
}

// returnchunk park a chunk in the matching free structure. Adjacent
// chunks are never coalesced.
func (pool *chunkpool) returnchunk(c *chunk) {
	if c.free {
		panicerr("chunkpool.returnchunk: %v chunk already free", c.level)
	}
	c.free = true
	c.arena.livechunks--
	if c.level == humongouslevel {
		pool.humongous.insert(c.words, c)
	} else {
		pool.freelists[c.level] = append(pool.freelists[c.level], c)
	}
	pool.freechunks++
	pool.freewords += c.words
}

func (pool *chunkpool) returnchunklist(chunks []*chunk) {
	for _, c := range chunks {
		pool.returnchunk(c)
	}
}

// removearena drop every free chunk living in arena `a`, part of the
// safepoint purge.
func (pool *chunkpool) removearena(a *arena) (nchunks, words int64) {
	for lvl := specializedlevel; lvl <= mediumlevel; lvl++ {
		fl, kept := pool.freelists[lvl], pool.freelists[lvl][:0]
		for _, c := range fl {
			if c.arena == a {
				nchunks, words = nchunks+1, words+c.words
			} else {
				kept = append(kept, c)
			}
		}
		pool.freelists[lvl] = kept
	}
	dropped, dwords := pool.humongous.filter(func(_ int64, c *chunk) bool {
		return c.arena != a
	})
	nchunks, words = nchunks+int64(len(dropped)), words+dwords
	pool.freechunks -= nchunks
	pool.freewords -= words
	return nchunks, words
}

// audit recount the free structures and verify the running counters.
// O(n), meant for Validate() and tests.
func (pool *chunkpool) audit() {
	nchunks, words := pool.humongous.len(), pool.humongous.totalwords()
	for lvl := specializedlevel; lvl <= mediumlevel; lvl++ {
		for _, c := range pool.freelists[lvl] {
			if c.free == false {
				panicerr("chunkpool.audit: in-use chunk on %v list", lvl)
			} else if c.words != chunkwords(pool.kind, lvl) {
				panicerr("chunkpool.audit: %v words on %v list", c.words, lvl)
			}
			nchunks, words = nchunks+1, words+c.words
		}
	}
	if nchunks != pool.freechunks {
		panicerr("chunkpool.audit: freechunks %v, counted %v",
			pool.freechunks, nchunks)
	} else if words != pool.freewords {
		panicerr("chunkpool.audit: freewords %v, counted %v",
			pool.freewords, words)
	}
}

func (pool *chunkpool) stats(stats map[string]interface{}) map[string]interface{} {
	prefix := pool.kind.String() + "."
	stats[prefix+"n_freechunks"] = pool.freechunks
	stats[prefix+"n_freewords"] = pool.freewords
	for lvl := specializedlevel; lvl <= mediumlevel; lvl++ {
		key := prefix + "n_free." + lvl.String()
		stats[key] = int64(len(pool.freelists[lvl]))
	}
	stats[prefix+"n_free.humongous"] = pool.humongous.len()
	return stats
}
