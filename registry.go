package metaspace

// registry is the ordered collection of arenas for one metadata kind.
// It grows the address space by committing more of the current arena
// or reserving a fresh one, and reclaims empty arenas during purge.
// Methods are not thread safe, callers hold the global lock.
type registry struct {
	kind        Kind
	cf          config
	ms          *Metaspace
	arenas      []*arena
	current     *arena
	nextreserve int64 // doubling-ish reservation heuristic
	committed   int64 // words committed across arenas
	reserved    int64 // words reserved across arenas
}

func newregistry(kind Kind, cf config, ms *Metaspace) *registry {
	return &registry{
		kind:        kind,
		cf:          cf,
		ms:          ms,
		arenas:      make([]*arena, 0, 8),
		nextreserve: cf.arenawords,
	}
}

// getchunk carve a fresh chunk of `words`. room bounds how many more
// words may be committed, the capacity policy's ceiling minus what is
// committed already. Returns nil when address space or room runs out;
// the failure travels up by value, never as an error.
func (r *registry) getchunk(
	words int64, lvl chunklevel, room int64, pool *chunkpool) *chunk {

	granule := r.cf.granulewords
	if a := r.current; a != nil {
		if c := a.carve(words, lvl); c != nil {
			return c
		}
		// commit more of the current reservation.
		need := words - a.available()
		delta := roundup(a.committedwords()+need, granule) - a.committedwords()
		if delta > room {
			return nil // growing past the ceiling needs a collection
		}
		if before := a.committedwords(); a.expandby(need, need, granule) {
			r.committed += a.committedwords() - before
			return a.carve(words, lvl)
		}
		// reservation exhausted, retire it and move on.
		nchunks, donated := a.retire(pool)
		debugf("%v registry retired arena-%v, donated %v chunks %v words\n",
			r.kind, a.id, nchunks, donated)
		r.current = nil
	}

	initial := roundup(words, granule)
	if initial > room {
		return nil
	}
	reservewords := maxint64(r.nextreserve, initial)
	a := newarena(r.ms.issuearenaid(), r.kind, reservewords)
	if a == nil {
		return nil
	}
	if a.vm.committo(initial) == false {
		a.release()
		return nil
	}
	r.arenas = append(r.arenas, a)
	r.current = a
	r.ms.registerarena(a)
	r.reserved += reservewords
	r.committed += initial
	r.nextreserve = minint64(r.nextreserve*2, 16*r.cf.arenawords)
	infof("%v registry added arena-%v reserved %v committed %v words\n",
		r.kind, a.id, reservewords, initial)
	return a.carve(words, lvl)
}

// purge unmap arenas holding no live chunks, dropping their parked
// chunks from the pool. Must run with exclusive access, raw handles
// into a purged arena would otherwise dangle.
func (r *registry) purge(pool *chunkpool) (narenas, words int64) {
	kept := r.arenas[:0]
	for _, a := range r.arenas {
		if a == r.current || a.livechunks > 0 {
			kept = append(kept, a)
			continue
		}
		pool.removearena(a)
		r.committed -= a.committedwords()
		r.reserved -= a.reservedwords()
		narenas, words = narenas+1, words+a.committedwords()
		r.ms.unregisterarena(a)
		a.release()
	}
	r.arenas = kept
	return narenas, words
}

// carvedwords words handed out as chunks, live or parked.
func (r *registry) carvedwords() int64 {
	carved := int64(0)
	for _, a := range r.arenas {
		carved += a.top
	}
	return carved
}

func (r *registry) release() {
	for _, a := range r.arenas {
		r.ms.unregisterarena(a)
		a.release()
	}
	r.arenas, r.current = nil, nil
	r.committed, r.reserved = 0, 0
}

func (r *registry) stats(stats map[string]interface{}) map[string]interface{} {
	prefix := r.kind.String() + "."
	stats[prefix+"n_arenas"] = int64(len(r.arenas))
	stats[prefix+"n_reservedwords"] = r.reserved
	stats[prefix+"n_committedwords"] = r.committed
	stats[prefix+"n_carvedwords"] = r.carvedwords()
	return stats
}
