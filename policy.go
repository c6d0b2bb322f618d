package metaspace

// capacitypolicy controls the ceiling on committed metadata memory,
// the only component allowed to move it. Recomputation happens at a
// safepoint after a full collection; everybody else just reads the
// ceiling to bound growth. Not thread safe, callers hold exclusive
// access.
type capacitypolicy struct {
	ceiling      int64 // words
	floor        int64 // initial capacity, the ceiling never drops below
	maxcapacity  int64
	minstep      int64
	maxstep      int64
	minfreeratio int64
	maxfreeratio int64
	shrinkstep   int // index into Dampingschedule
}

func newcapacitypolicy(cf config) *capacitypolicy {
	return &capacitypolicy{
		ceiling:      cf.capacity,
		floor:        cf.capacity,
		maxcapacity:  cf.maxcapacity,
		minstep:      cf.minstep,
		maxstep:      cf.maxstep,
		minfreeratio: cf.minfreeratio,
		maxfreeratio: cf.maxfreeratio,
	}
}

// computenewsize adjust the ceiling for `used` committed words in
// service, with `request` the pending allocation that forced the
// collection, zero otherwise. Returns the signed ceiling delta.
//
// Growth is clamped between minstep and maxstep; a wanted delta beyond
// maxstep collapses to request+minstep so the very next allocation
// does not retrigger growth. Shrink amounts are damped by an
// escalating schedule, reset on every growth, so alternating request
// patterns cannot thrash the ceiling.
func (p *capacitypolicy) computenewsize(used, request int64) int64 {
	mindesired := p.desired(used, p.minfreeratio)
	if p.ceiling < mindesired {
		delta := maxint64(mindesired-p.ceiling, request)
		if delta < p.minstep {
			delta = p.minstep
		} else if delta > p.maxstep {
			delta = request + p.minstep
		}
		delta = minint64(delta, p.maxcapacity-p.ceiling)
		if delta <= 0 {
			return 0
		}
		p.ceiling += delta
		p.shrinkstep = 0
		return delta
	}

	maxdesired := p.desired(used, p.maxfreeratio)
	if p.ceiling <= maxdesired {
		return 0
	}
	excess := p.ceiling - maxdesired
	factor := Dampingschedule[p.shrinkstep]
	if p.shrinkstep < len(Dampingschedule)-1 {
		p.shrinkstep++
	}
	shrink := excess * factor / 100
	if shrink < p.minstep {
		return 0
	}
	shrink = minint64(shrink, p.ceiling-p.floor)
	if shrink <= 0 {
		return 0
	}
	p.ceiling -= shrink
	return -shrink
}

// desired capacity keeping `ratio` percent of it free above `used`.
func (p *capacitypolicy) desired(used, ratio int64) int64 {
	if ratio >= 100 {
		return p.maxcapacity
	}
	return maxint64(p.floor, used*100/(100-ratio))
}
