package metaspace

import "sort"

// freemap is a size-keyed multimap of free entries: a sorted slice of
// sizes kept beside a map of per-size FIFO lists. Best-fit lookups
// return the smallest entry at least as large as the request, ties
// broken by insertion order. Methods are not thread safe.
type freemap[T any] struct {
	sizes []int64
	m     map[int64][]T
	count int64
	words int64
}

func newfreemap[T any]() *freemap[T] {
	return &freemap[T]{sizes: make([]int64, 0, 8), m: make(map[int64][]T)}
}

func (fm *freemap[T]) insert(size int64, v T) {
	vs, ok := fm.m[size]
	if !ok {
		n := sort.Search(len(fm.sizes), func(i int) bool {
			return fm.sizes[i] >= size
		})
		fm.sizes = append(fm.sizes, 0)
		copy(fm.sizes[n+1:], fm.sizes[n:])
		fm.sizes[n] = size
	}
	fm.m[size] = append(vs, v)
	fm.count, fm.words = fm.count+1, fm.words+size
}

// bestfit remove and return the smallest entry >= size.
func (fm *freemap[T]) bestfit(size int64) (v T, got int64, ok bool) {
	n := sort.Search(len(fm.sizes), func(i int) bool {
		return fm.sizes[i] >= size
	})
	if n == len(fm.sizes) {
		return v, 0, false
	}
	got = fm.sizes[n]
	vs := fm.m[got]
	v, vs = vs[0], vs[1:]
	if len(vs) == 0 {
		delete(fm.m, got)
		fm.sizes = append(fm.sizes[:n], fm.sizes[n+1:]...)
	} else {
		fm.m[got] = vs
	}
	fm.count, fm.words = fm.count-1, fm.words-got
	return v, got, true
}

// filter drop entries rejected by keep, returning what was dropped.
func (fm *freemap[T]) filter(
	keep func(size int64, v T) bool) (dropped []T, droppedwords int64) {

	sizes := fm.sizes[:0]
	for _, size := range append([]int64{}, fm.sizes...) {
		vs, kept := fm.m[size], fm.m[size][:0]
		for _, v := range vs {
			if keep(size, v) {
				kept = append(kept, v)
			} else {
				dropped = append(dropped, v)
				droppedwords += size
				fm.count, fm.words = fm.count-1, fm.words-size
			}
		}
		if len(kept) == 0 {
			delete(fm.m, size)
		} else {
			fm.m[size], sizes = kept, append(sizes, size)
		}
	}
	fm.sizes = sizes
	return dropped, droppedwords
}

func (fm *freemap[T]) len() int64 {
	return fm.count
}

func (fm *freemap[T]) totalwords() int64 {
	return fm.words
}
