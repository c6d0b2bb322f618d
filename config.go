package metaspace

import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"

// Defaultsettings for a metaspace instance. All sizes are in bytes.
//
// "capacity" (int64, default: 16MB)
//	Initial ceiling on committed metadata memory. The capacity
//	policy never shrinks the ceiling below this.
//
// "maxcapacity" (int64, default: freeRAM/4)
//	Hard limit on committed metadata memory. The capacity policy
//	never grows the ceiling above this.
//
// "classcapacity" (int64, default: 0)
//	Capacity of the compressed-pointer metadata space. Zero keeps
//	the class space disabled and loaders carry a single allocation
//	context.
//
// "arenasize" (int64, default: 4MB)
//	Address-space reservation of a single arena. Oversized requests
//	reserve bigger arenas as needed.
//
// "commitgranule" (int64, default: 64KB)
//	Granularity of commits within an arena's reservation. Must be a
//	multiple of the OS page size.
//
// "expansion.min" (int64, default: 256KB)
//	Minimum step while growing the ceiling.
//
// "expansion.max" (int64, default: 4MB)
//	Maximum step while growing the ceiling.
//
// "freeratio.min" (int64, default: 40)
//	Grow the ceiling when committed-but-free memory drops below this
//	percentage after a collection.
//
// "freeratio.max" (int64, default: 70)
//	Shrink the ceiling when committed-but-free memory exceeds this
//	percentage after a collection.
//
// "smallchunks" (int64, default: 4)
//	Number of small chunks an allocation context consumes before
//	switching permanently to medium chunks.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	maxcapacity := int64(free / 4)
	if minimum := int64(64 * 1024 * 1024); maxcapacity < minimum {
		maxcapacity = minimum
	}
	return s.Settings{
		"capacity":      int64(16 * 1024 * 1024),
		"maxcapacity":   maxcapacity,
		"classcapacity": int64(0),
		"arenasize":     int64(4 * 1024 * 1024),
		"commitgranule": int64(64 * 1024),
		"expansion.min": int64(256 * 1024),
		"expansion.max": int64(4 * 1024 * 1024),
		"freeratio.min": int64(40),
		"freeratio.max": int64(70),
		"smallchunks":   Smallchunklimit,
	}
}

// Dampingschedule successive discounts, in percent, applied to
// computed shrink amounts. Advances one entry per shrink opportunity
// and resets to the first entry whenever the ceiling grows. Tuned
// empirically, preserved as a knob.
var Dampingschedule = []int64{0, 10, 40, 100}

const ospagesize = int64(4 * 1024)

// runtime configuration, in words.
type config struct {
	capacity      int64
	maxcapacity   int64
	classcapacity int64
	arenawords    int64
	granulewords  int64
	minstep       int64
	maxstep       int64
	minfreeratio  int64
	maxfreeratio  int64
	smallchunks   int64
}

// validate and convert settings. Inconsistent settings are fatal at
// startup, the allocator never starts with them.
func readsettings(setts s.Settings) config {
	cf := config{
		capacity:      bytestowords(setts.Int64("capacity")),
		maxcapacity:   bytestowords(setts.Int64("maxcapacity")),
		classcapacity: bytestowords(setts.Int64("classcapacity")),
		arenawords:    bytestowords(setts.Int64("arenasize")),
		granulewords:  bytestowords(setts.Int64("commitgranule")),
		minstep:       bytestowords(setts.Int64("expansion.min")),
		maxstep:       bytestowords(setts.Int64("expansion.max")),
		minfreeratio:  setts.Int64("freeratio.min"),
		maxfreeratio:  setts.Int64("freeratio.max"),
		smallchunks:   setts.Int64("smallchunks"),
	}
	if cf.capacity <= 0 {
		panicerr("capacity should be positive")
	} else if cf.maxcapacity < cf.capacity {
		panicerr("maxcapacity %v < capacity %v", cf.maxcapacity, cf.capacity)
	} else if cf.minstep <= 0 || cf.maxstep < cf.minstep {
		panicerr("expansion steps {%v %v} invalid", cf.minstep, cf.maxstep)
	} else if cf.minfreeratio < 0 || cf.maxfreeratio > 100 {
		panicerr("freeratios {%v %v} outside [0,100]",
			cf.minfreeratio, cf.maxfreeratio)
	} else if cf.minfreeratio >= cf.maxfreeratio {
		panicerr("freeratio.min %v >= freeratio.max %v",
			cf.minfreeratio, cf.maxfreeratio)
	} else if cf.smallchunks <= 0 {
		panicerr("smallchunks should be positive")
	}
	if wordstobytes(cf.granulewords)%ospagesize != 0 {
		panicerr("commitgranule not a multiple of page size")
	}
	cf.arenawords = roundup(cf.arenawords, cf.granulewords)
	cf.capacity = roundup(cf.capacity, cf.granulewords)
	return cf
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
