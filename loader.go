package metaspace

import "sync/atomic"

// Loader is the per-class-loading-context facade and the only entry
// point the rest of the runtime uses. It owns one allocation context
// for ordinary metadata and, when the compressed-pointer space is
// enabled, a second one for class metadata.
type Loader struct {
	ms        *Metaspace
	name      string
	logprefix string
	spaces    [2]*spaceman
	dead      int64
}

// Alloc a metadata block of `words`. On failure the facade climbs a
// retry ladder: request a collection and retry once, then a
// small-chunk fallback to salvage fragmented memory, then give up with
// an OutofMemory error. The returned Pointer is nil exactly when the
// error is non-nil.
func (ld *Loader) Alloc(words int64, kind Kind) (Pointer, error) {
	if words <= 0 {
		panicerr("%v Alloc(%v)", ld.logprefix, words)
	} else if atomic.LoadInt64(&ld.dead) == 1 {
		return Pointer{}, ErrorReleased
	}
	sm := ld.spaces[kind]
	if sm == nil {
		return Pointer{}, ErrorClassSpaceDisabled
	}

	if ptr := sm.allocate(words); ptr.IsNil() == false {
		return ptr, nil
	}
	// before bootstrap completes there is nothing to collect.
	if ld.ms.isready() && ld.ms.collect != nil {
		ld.ms.collect(words)
		if ptr := sm.allocate(words); ptr.IsNil() == false {
			return ptr, nil
		}
	}
	if ptr := sm.allocatefallback(words); ptr.IsNil() == false {
		return ptr, nil
	}
	err := &OutofMemory{Loader: ld.name, Kind: kind, Words: words}
	errorf("%v %v\n", ld.logprefix, err)
	return Pointer{}, err
}

// Free return a block to the loader's block free list. Cannot fail,
// needs no retry semantics.
func (ld *Loader) Free(ptr Pointer, words int64, kind Kind) {
	if ptr.IsNil() {
		panicerr("%v Free(nil)", ld.logprefix)
	}
	sm := ld.spaces[kind]
	if sm == nil {
		panicerr("%v Free: class space disabled", ld.logprefix)
	}
	sm.deallocate(ptr, words)
}

// Bytes resolve a block allocated by this loader into its backing
// memory.
func (ld *Loader) Bytes(ptr Pointer, words int64) []byte {
	return ld.ms.Bytes(ptr, words)
}

// Release tear down the loading context, returning every chunk it
// owns to the chunk pool. Outstanding Pointers are invalid afterwards.
func (ld *Loader) Release() {
	if atomic.SwapInt64(&ld.dead, 1) == 1 {
		return
	}
	nchunks, words := int64(0), int64(0)
	for _, sm := range ld.spaces {
		if sm != nil {
			n, w := sm.release()
			nchunks, words = nchunks+n, words+w
		}
	}
	atomic.AddInt64(&ld.ms.n_loaders, -1)
	debugf("%v released %v chunks, %v words\n", ld.logprefix, nchunks, words)
}

// Stats per-loader counters, keyed by kind.
func (ld *Loader) Stats() map[string]interface{} {
	stats := map[string]interface{}{}
	for _, sm := range ld.spaces {
		if sm != nil {
			stats = sm.stats(stats)
		}
	}
	return stats
}
