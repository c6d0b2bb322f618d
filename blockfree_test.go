package metaspace

import "testing"
import "math/rand"

func TestBlockfreeBins(t *testing.T) {
	bf := newblockfreelist()
	ptr1 := Pointer{arena: 1, offset: 0}
	ptr2 := Pointer{arena: 1, offset: 8}

	bf.returnblock(ptr1, 8)
	bf.returnblock(ptr2, 8)
	if x, y := bf.totalwords(), int64(16); x != y {
		t.Errorf("expected %v, got %v", y, x)
	}
	// exact-size bins are LIFO.
	if ptr, ok := bf.getblock(8); !ok || ptr != ptr2 {
		t.Errorf("unexpected %v %v", ptr, ok)
	}
	if ptr, ok := bf.getblock(8); !ok || ptr != ptr1 {
		t.Errorf("unexpected %v %v", ptr, ok)
	}
	// bins are exact, a 4-word request does not touch the 8-word bin.
	bf.returnblock(ptr1, 8)
	if _, ok := bf.getblock(4); ok {
		t.Errorf("expected a miss")
	}
}

func TestBlockfreeBestfit(t *testing.T) {
	bf := newblockfreelist()
	bf.returnblock(Pointer{arena: 1, offset: 0}, 100)

	// more than 4x the request is rejected, not split.
	if _, ok := bf.getblock(20); ok {
		t.Errorf("expected a miss")
	}
	if x, y := bf.totalwords(), int64(100); x != y {
		t.Errorf("expected %v, got %v", y, x)
	}
	// within the waste cap the block splits and the remainder is kept.
	ptr, ok := bf.getblock(28)
	if !ok || ptr.offset != 0 {
		t.Errorf("unexpected %v %v", ptr, ok)
	}
	if x, y := bf.totalwords(), int64(72); x != y {
		t.Errorf("expected %v, got %v", y, x)
	}
	if rest, ok := bf.getblock(72); !ok || rest.offset != 28 {
		t.Errorf("unexpected %v %v", rest, ok)
	}
}

func TestBlockfreeDarkmatter(t *testing.T) {
	bf := newblockfreelist()
	bf.returnblock(Pointer{arena: 1, offset: 0}, 20)
	if _, ok := bf.getblock(18); !ok {
		t.Errorf("expected a hit")
	}
	// the 2-word remainder is below Minblockwords, gone for good.
	if x, y := bf.darkwords(), int64(2); x != y {
		t.Errorf("expected %v, got %v", y, x)
	}
	if x, y := bf.totalwords(), int64(0); x != y {
		t.Errorf("expected %v, got %v", y, x)
	}
}

func TestBlockfreeRoundtrip(t *testing.T) {
	bf := newblockfreelist()
	sizes := []int64{}
	offset, total := int64(0), int64(0)
	for i := 0; i < 1024; i++ {
		words := roundup(int64(rand.Intn(200)+1), Minblockwords)
		sizes = append(sizes, words)
		offset += words
		total += words
	}
	// return every block, in random order.
	offsets := make([]int64, len(sizes))
	off := int64(0)
	for i, words := range sizes {
		offsets[i] = off
		off += words
	}
	for _, i := range rand.Perm(len(sizes)) {
		bf.returnblock(Pointer{arena: 1, offset: offsets[i]}, sizes[i])
	}
	if x := bf.totalwords(); x != total {
		t.Errorf("expected %v, got %v", total, x)
	}
	// drain with the same sizes, largest first so best-fit always
	// lands within the waste cap.
	for _, i := range sortedbysize(sizes) {
		if _, ok := bf.getblock(sizes[i]); !ok {
			t.Errorf("unexpected miss for %v words", sizes[i])
		}
	}
	if x := bf.totalwords() + bf.darkwords(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
}

// indexes of sizes, largest size first.
func sortedbysize(sizes []int64) []int {
	idxs := make([]int, len(sizes))
	for i := range idxs {
		idxs[i] = i
	}
	for i := 0; i < len(idxs); i++ {
		for j := i + 1; j < len(idxs); j++ {
			if sizes[idxs[j]] > sizes[idxs[i]] {
				idxs[i], idxs[j] = idxs[j], idxs[i]
			}
		}
	}
	return idxs
}
