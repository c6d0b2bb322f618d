package metaspace

import "fmt"
import "sync"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Collector callback through which the allocator asks the embedding
// runtime for a stop-the-world collection before retrying a failed
// allocation. requestwords is the allocation that could not be
// satisfied. The runtime is expected to collect and then call
// ComputeNewSize at the safepoint.
type Collector func(requestwords int64)

// Metaspace manage a single instance of the class-metadata allocator:
// per-kind arena registries and chunk pools, the capacity policy and
// the global accounting. There are no package-level singletons, the
// embedding runtime owns the instance and hands it to every loader.
type Metaspace struct {
	// 64-bit aligned stats
	usedwords     [2]int64
	capacitywords [2]int64
	n_loaders     int64
	n_collects    int64

	name      string
	logprefix string
	setts     s.Settings
	cf        config

	rw           sync.RWMutex // coarse lock: registries, pools, policy
	regs         [2]*registry
	pools        [2]*chunkpool
	policy       *capacitypolicy
	arenaindex   map[int32]*arena
	nextarenaid  int32
	classenabled bool
	collect      Collector
	ready        int64 // runtime initialization complete
	dead         bool
}

// NewMetaspace create a new metadata-space instance. Inconsistent
// settings panic, the allocator never starts with them.
func NewMetaspace(name string, setts s.Settings) *Metaspace {
	ms := &Metaspace{name: name}
	ms.logprefix = fmt.Sprintf("Metaspace [%s]", name)

	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	ms.cf = readsettings(setts)
	ms.setts = setts
	ms.classenabled = ms.cf.classcapacity > 0

	ms.arenaindex = make(map[int32]*arena)
	ms.nextarenaid = 1
	ms.regs[NonClass] = newregistry(NonClass, ms.cf, ms)
	ms.pools[NonClass] = newchunkpool(NonClass)
	if ms.classenabled {
		ms.regs[Class] = newregistry(Class, ms.cf, ms)
		ms.pools[Class] = newchunkpool(Class)
	}
	ms.policy = newcapacitypolicy(ms.cf)

	infof("%v started ...\n", ms.logprefix)
	ms.logsettings()
	return ms
}

func (ms *Metaspace) logsettings() {
	cap := humanize.Bytes(uint64(wordstobytes(ms.cf.capacity)))
	maxcap := humanize.Bytes(uint64(wordstobytes(ms.cf.maxcapacity)))
	arena := humanize.Bytes(uint64(wordstobytes(ms.cf.arenawords)))
	fmsg := "%v ceiling %v, limit %v, arena %v, classspace %v\n"
	infof(fmsg, ms.logprefix, cap, maxcap, arena, ms.classenabled)
}

// NewLoader create the facade for a class-loading context. Anonymous
// contexts are expected to stay small and begin on specialized chunks.
func (ms *Metaspace) NewLoader(name string, anonymous bool) *Loader {
	if ms.dead {
		panicerr("%v NewLoader on released instance", ms.logprefix)
	}
	ld := &Loader{ms: ms, name: name}
	ld.logprefix = fmt.Sprintf("%v loader %q", ms.logprefix, name)
	ld.spaces[NonClass] = newspaceman(ms, NonClass, name, anonymous)
	if ms.classenabled {
		ld.spaces[Class] = newspaceman(ms, Class, name, anonymous)
	}
	atomic.AddInt64(&ms.n_loaders, 1)
	return ld
}

// SetCollector register the collection callback. Without one the
// facade skips straight to the small-chunk fallback on failure.
func (ms *Metaspace) SetCollector(fn Collector) {
	ms.collect = fn
}

// Bootstrapped mark runtime initialization complete. Until then
// allocation failures never request a collection.
func (ms *Metaspace) Bootstrapped() {
	atomic.StoreInt64(&ms.ready, 1)
}

func (ms *Metaspace) isready() bool {
	return atomic.LoadInt64(&ms.ready) == 1
}

//---- chunk traffic, on behalf of allocation contexts.

// fetchchunk chunk pool first, arena registry on a pool miss. Growth
// is bounded by the capacity ceiling. Returns nil when neither can
// serve, the facade escalates from there.
func (ms *Metaspace) fetchchunk(kind Kind, lvl chunklevel, words int64) *chunk {
	ms.rw.Lock()
	defer ms.rw.Unlock()

	if c := ms.pools[kind].allocate(lvl, words); c != nil {
		return c
	}
	// room bounds how much more may be committed; carving space that
	// is committed already stays legal even at the ceiling.
	room := minint64(ms.policy.ceiling, ms.cf.maxcapacity) - ms.committedlocked()
	if kind == Class {
		room = minint64(room, ms.cf.classcapacity-ms.regs[Class].committed)
	}
	return ms.regs[kind].getchunk(words, lvl, maxint64(room, 0), ms.pools[kind])
}

func (ms *Metaspace) parkchunks(kind Kind, chunks []*chunk) {
	ms.rw.Lock()
	defer ms.rw.Unlock()
	ms.pools[kind].returnchunklist(chunks)
}

func (ms *Metaspace) adjustused(kind Kind, words int64) {
	atomic.AddInt64(&ms.usedwords[kind], words)
}

func (ms *Metaspace) adjustcapacity(kind Kind, words int64) {
	atomic.AddInt64(&ms.capacitywords[kind], words)
}

// registerarena/unregisterarena keep the pointer-resolution index,
// called by registries under the global lock.
func (ms *Metaspace) registerarena(a *arena) {
	ms.arenaindex[a.id] = a
}

func (ms *Metaspace) unregisterarena(a *arena) {
	delete(ms.arenaindex, a.id)
}

func (ms *Metaspace) issuearenaid() int32 {
	id := ms.nextarenaid
	ms.nextarenaid++
	return id
}

func (ms *Metaspace) committedlocked() int64 {
	committed := ms.regs[NonClass].committed
	if ms.classenabled {
		committed += ms.regs[Class].committed
	}
	return committed
}

// Bytes resolve a block into its backing memory. The slice stays valid
// until the owning loader is released or the instance purged.
func (ms *Metaspace) Bytes(ptr Pointer, words int64) []byte {
	ms.rw.RLock()
	defer ms.rw.RUnlock()

	a, ok := ms.arenaindex[ptr.arena]
	if ok == false {
		panicerr("%v Bytes: unknown arena %v", ms.logprefix, ptr.arena)
	}
	return a.vm.slice(ptr.offset, words)
}

//---- safepoint operations.

// WithExclusiveAccess run fn while holding the global lock. The
// embedding runtime must additionally guarantee no mutator thread is
// allocating, this only serializes against chunk-level traffic and
// diagnostic readers.
func (ms *Metaspace) WithExclusiveAccess(fn func()) {
	ms.rw.Lock()
	defer ms.rw.Unlock()
	fn()
}

// ComputeNewSize recompute the capacity ceiling after a full
// collection. requestwords is the allocation that forced the
// collection, zero for periodic collections. Returns the signed
// ceiling delta in words.
func (ms *Metaspace) ComputeNewSize(requestwords int64) (delta int64) {
	ms.WithExclusiveAccess(func() {
		used := atomic.LoadInt64(&ms.usedwords[NonClass])
		if ms.classenabled {
			used += atomic.LoadInt64(&ms.usedwords[Class])
		}
		delta = ms.policy.computenewsize(used, requestwords)
		atomic.AddInt64(&ms.n_collects, 1)
	})
	if delta > 0 {
		infof("%v ceiling grown by %v words\n", ms.logprefix, delta)
	} else if delta < 0 {
		infof("%v ceiling shrunk by %v words\n", ms.logprefix, -delta)
	}
	return delta
}

// Purge unmap arenas that hold no live chunks, dropping their parked
// chunks from the pools. Must run at a safepoint, raw handles into a
// purged arena would otherwise dangle.
func (ms *Metaspace) Purge() (narenas int64) {
	ms.WithExclusiveAccess(func() {
		for _, kind := range ms.kinds() {
			n, words := ms.regs[kind].purge(ms.pools[kind])
			if n > 0 {
				fmsg := "%v purged %v %v arenas, %v words\n"
				infof(fmsg, ms.logprefix, n, kind, words)
			}
			narenas += n
		}
	})
	return narenas
}

//---- statistics and maintenance.

// Ceiling current high-water mark, in bytes.
func (ms *Metaspace) Ceiling() int64 {
	ms.rw.RLock()
	defer ms.rw.RUnlock()
	return wordstobytes(ms.policy.ceiling)
}

// Committed bytes committed across arenas, both kinds.
func (ms *Metaspace) Committed() int64 {
	ms.rw.RLock()
	defer ms.rw.RUnlock()
	return wordstobytes(ms.committedlocked())
}

// Used net bytes handed out as blocks, both kinds.
func (ms *Metaspace) Used() int64 {
	used := atomic.LoadInt64(&ms.usedwords[NonClass])
	if ms.classenabled {
		used += atomic.LoadInt64(&ms.usedwords[Class])
	}
	return wordstobytes(used)
}

// Stats read-only counters for the statistics sampler and diagnostic
// dumps: reserved, committed, carved, free-chunk words, per-class
// chunk counts, loader counts.
func (ms *Metaspace) Stats() map[string]interface{} {
	ms.rw.RLock()
	defer ms.rw.RUnlock()

	stats := map[string]interface{}{}
	for _, kind := range ms.kinds() {
		stats = ms.regs[kind].stats(stats)
		stats = ms.pools[kind].stats(stats)
		prefix := kind.String() + "."
		stats[prefix+"n_usedwords"] = atomic.LoadInt64(&ms.usedwords[kind])
		key := prefix + "n_contextwords"
		stats[key] = atomic.LoadInt64(&ms.capacitywords[kind])
	}
	stats["n_loaders"] = atomic.LoadInt64(&ms.n_loaders)
	stats["n_collects"] = atomic.LoadInt64(&ms.n_collects)
	stats["n_ceilingwords"] = ms.policy.ceiling
	stats["n_shrinkstep"] = int64(ms.policy.shrinkstep)
	return stats
}

// Log dump the counters via the configured logger, humanized when
// asked for.
func (ms *Metaspace) Log(human bool) {
	stats := ms.Stats()
	dohumanize := func(key string) interface{} {
		val := wordstobytes(stats[key].(int64))
		if human {
			return humanize.Bytes(uint64(val))
		}
		return val
	}
	for _, kind := range ms.kinds() {
		prefix := kind.String() + "."
		committed := dohumanize(prefix + "n_committedwords")
		used := dohumanize(prefix + "n_usedwords")
		free := dohumanize(prefix + "n_freewords")
		fmsg := "%v %v committed %v, used %v, pooled %v\n"
		infof(fmsg, ms.logprefix, kind, committed, used, free)
	}
	ceiling := dohumanize("n_ceilingwords")
	fmsg := "%v ceiling %v, loaders %v, collections %v\n"
	infof(fmsg, ms.logprefix, ceiling,
		stats["n_loaders"], stats["n_collects"])
}

// Validate audit pool accounting and the conservation invariant: for
// every kind, carved words == pooled free words + context-owned words.
// Panics on mismatch, these are allocator bugs, not runtime
// conditions. O(n) over the free structures.
func (ms *Metaspace) Validate() {
	ms.rw.RLock()
	defer ms.rw.RUnlock()

	for _, kind := range ms.kinds() {
		pool, reg := ms.pools[kind], ms.regs[kind]
		pool.audit()
		carved := reg.carvedwords()
		incontexts := atomic.LoadInt64(&ms.capacitywords[kind])
		if carved != pool.freewords+incontexts {
			fmsg := "%v validate: %v carved %v != free %v + in-use %v"
			panicerr(fmsg, ms.logprefix, kind, carved,
				pool.freewords, incontexts)
		}
		if reg.committed < carved {
			fmsg := "%v validate: %v committed %v < carved %v"
			panicerr(fmsg, ms.logprefix, kind, reg.committed, carved)
		}
	}
}

// Release unmap every arena and drop the instance. All loaders must
// have been released already.
func (ms *Metaspace) Release() {
	ms.rw.Lock()
	defer ms.rw.Unlock()

	if ms.dead {
		return
	}
	for _, kind := range ms.kinds() {
		if words := atomic.LoadInt64(&ms.capacitywords[kind]); words > 0 {
			warnf("%v Release with %v %v words still in contexts\n",
				ms.logprefix, words, kind)
		}
		ms.regs[kind].release()
	}
	ms.arenaindex = map[int32]*arena{}
	ms.dead = true
	infof("%v released\n", ms.logprefix)
}

func (ms *Metaspace) kinds() []Kind {
	if ms.classenabled {
		return []Kind{NonClass, Class}
	}
	return []Kind{NonClass}
}
