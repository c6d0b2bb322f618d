package metaspace

import "errors"
import "testing"
import "math/rand"

import s "github.com/bnclabs/gosettings"

func TestNewMetaspace(t *testing.T) {
	ms := NewMetaspace("new", s.Settings{})
	defer ms.Release()

	if ms.classenabled {
		t.Errorf("expected class space disabled")
	}
	if x := ms.Ceiling(); x != wordstobytes(ms.cf.capacity) {
		t.Errorf("expected %v, got %v", wordstobytes(ms.cf.capacity), x)
	}
	if x := ms.Committed(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	ms.Validate()

	// panic cases
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewMetaspace("bad", s.Settings{
			"capacity": int64(1024 * 1024), "maxcapacity": int64(1024),
		})
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewMetaspace("bad", s.Settings{
			"freeratio.min": int64(80), "freeratio.max": int64(70),
		})
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewMetaspace("bad", s.Settings{"commitgranule": int64(1000)})
	}()
}

func TestChunkStepping(t *testing.T) {
	ms := NewMetaspace("stepping", s.Settings{})
	defer ms.Release()
	ld := ms.NewLoader("app", false)
	defer ld.Release()

	for i := 0; i < 4; i++ {
		if _, err := ld.Alloc(500, NonClass); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
	sm := ld.spaces[NonClass]
	if x := len(sm.inuse[smalllevel]); x != 4 {
		t.Errorf("expected %v, got %v", 4, x)
	}
	// the 5th chunk is medium even for a 4000-word request.
	if _, err := ld.Alloc(4000, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if x := len(sm.inuse[mediumlevel]); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	if x := sm.current.words; x != 8192 {
		t.Errorf("expected %v, got %v", 8192, x)
	}
	ms.Validate()
}

func TestAnonymousStepping(t *testing.T) {
	ms := NewMetaspace("anon", s.Settings{})
	defer ms.Release()
	ld := ms.NewLoader("lambda", true)
	defer ld.Release()

	for i := 0; i < 4; i++ {
		if _, err := ld.Alloc(100, NonClass); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
	sm := ld.spaces[NonClass]
	if x := len(sm.inuse[specializedlevel]); x != 4 {
		t.Errorf("expected %v, got %v", 4, x)
	}
	if _, err := ld.Alloc(100, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if x := len(sm.inuse[smalllevel]); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	ms.Validate()
}

func TestHumongousAlloc(t *testing.T) {
	ms := NewMetaspace("humongous", s.Settings{})
	defer ms.Release()
	ld := ms.NewLoader("app", false)
	defer ld.Release()

	if _, err := ld.Alloc(10000, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	sm := ld.spaces[NonClass]
	c := sm.inuse[humongouslevel][0]
	if c.words < 10000 {
		t.Errorf("expected >= %v, got %v", 10000, c.words)
	}
	if c.words%chunkwords(NonClass, specializedlevel) != 0 {
		t.Errorf("humongous chunk %v not specialized aligned", c.words)
	}
	if c.words != 10112 { // exact fit, alignment rounded
		t.Errorf("expected %v, got %v", 10112, c.words)
	}
	ms.Validate()
}

func TestLoaderFreeUsed(t *testing.T) {
	ms := NewMetaspace("freeused", s.Settings{})
	defer ms.Release()
	ld := ms.NewLoader("app", false)
	defer ld.Release()

	ptrs, sizes := []Pointer{}, []int64{}
	for i := 0; i < 256; i++ {
		words := int64(rand.Intn(100) + 1)
		ptr, err := ld.Alloc(words, NonClass)
		if err != nil {
			t.Fatalf("unexpected %v", err)
		}
		ptrs, sizes = append(ptrs, ptr), append(sizes, words)
	}
	if x := ms.Used(); x <= 0 {
		t.Errorf("expected used > 0, got %v", x)
	}
	for _, i := range rand.Perm(len(ptrs)) {
		ld.Free(ptrs[i], sizes[i], NonClass)
	}
	if x := ms.Used(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	stats := ld.Stats()
	if x := stats["nonclass.n_usedwords"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := stats["nonclass.n_freeblockwords"].(int64); x <= 0 {
		t.Errorf("expected free blocks, got %v", x)
	}
	ms.Validate()
}

func TestLoaderTeardown(t *testing.T) {
	ms := NewMetaspace("teardown", s.Settings{})
	ld := ms.NewLoader("app", false)

	for i := 0; i < 4; i++ {
		ld.Alloc(500, NonClass)
	}
	ld.Alloc(4000, NonClass) // 4 smalls + 1 medium = 10240 words
	ld.Release()

	stats := ms.Stats()
	if x := stats["nonclass.n_freewords"].(int64); x != 10240 {
		t.Errorf("expected %v, got %v", 10240, x)
	}
	if x := stats["nonclass.n_freechunks"].(int64); x != 5 {
		t.Errorf("expected %v, got %v", 5, x)
	}
	if x := stats["nonclass.n_contextwords"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := stats["nonclass.n_usedwords"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	ms.Validate()

	// a new loader recycles pooled chunks instead of growing.
	ld2 := ms.NewLoader("app2", false)
	ld2.Alloc(500, NonClass)
	stats = ms.Stats()
	if x := stats["nonclass.n_freechunks"].(int64); x != 4 {
		t.Errorf("expected %v, got %v", 4, x)
	}
	ld2.Release()
	ms.Validate()
	ms.Release()
}

func TestPurge(t *testing.T) {
	setts := s.Settings{
		"capacity":  int64(4 * 1024 * 1024),
		"arenasize": int64(128 * 1024),
	}
	ms := NewMetaspace("purge", setts)
	defer ms.Release()
	ld := ms.NewLoader("app", false)

	for i := 0; i < 6; i++ {
		if _, err := ld.Alloc(8000, NonClass); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
	stats := ms.Stats()
	if x := stats["nonclass.n_arenas"].(int64); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	}
	ld.Release()
	stats = ms.Stats()
	if x := stats["nonclass.n_freechunks"].(int64); x != 6 {
		t.Errorf("expected %v, got %v", 6, x)
	}

	// the exhausted arena unmaps, the current one stays.
	if x := ms.Purge(); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	stats = ms.Stats()
	if x := stats["nonclass.n_arenas"].(int64); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	if x := stats["nonclass.n_freechunks"].(int64); x != 4 {
		t.Errorf("expected %v, got %v", 4, x)
	}
	ms.Validate()
}

func TestOutofMemory(t *testing.T) {
	setts := s.Settings{
		"capacity":    int64(128 * 1024),
		"maxcapacity": int64(128 * 1024),
	}
	ms := NewMetaspace("oom", setts)
	defer ms.Release()
	ld := ms.NewLoader("app", false)
	defer ld.Release()

	var err error
	var ptr Pointer
	for i := 0; i < 8; i++ {
		if ptr, err = ld.Alloc(8000, NonClass); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected allocation failure")
	}
	if ptr.IsNil() == false {
		t.Errorf("expected nil pointer with error")
	}
	oom, ok := err.(*OutofMemory)
	if !ok {
		t.Fatalf("unexpected %T", err)
	}
	if oom.Words != 8000 || oom.Kind != NonClass || oom.Loader != "app" {
		t.Errorf("unexpected %+v", oom)
	}
	if errors.Is(err, ErrorOutofMemory) == false {
		t.Errorf("expected ErrorOutofMemory")
	}
	ms.Validate()
}

func TestSmallChunkFallback(t *testing.T) {
	setts := s.Settings{
		"capacity":    int64(64 * 1024),
		"maxcapacity": int64(64 * 1024),
	}
	ms := NewMetaspace("fallback", setts)
	defer ms.Release()

	// first loader fragments committed memory into small chunks.
	ld1 := ms.NewLoader("one", false)
	for i := 0; i < 4; i++ {
		if _, err := ld1.Alloc(500, NonClass); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
	ld1.Release()

	// second loader drains the pooled smalls, then the stepped policy
	// wants a medium chunk the ceiling cannot commit. The fallback
	// salvages a small chunk instead.
	ld2 := ms.NewLoader("two", false)
	defer ld2.Release()
	for i := 0; i < 4; i++ {
		if _, err := ld2.Alloc(500, NonClass); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
	if _, err := ld2.Alloc(500, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	sm := ld2.spaces[NonClass]
	if x := len(sm.inuse[smalllevel]); x != 5 {
		t.Errorf("expected %v, got %v", 5, x)
	}
	if x := len(sm.inuse[mediumlevel]); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	ms.Validate()
}

func TestCollectorRetry(t *testing.T) {
	setts := s.Settings{
		"capacity":    int64(64 * 1024),
		"maxcapacity": int64(16 * 1024 * 1024),
	}
	ms := NewMetaspace("collector", setts)
	defer ms.Release()

	collected := 0
	ms.SetCollector(func(requestwords int64) {
		collected++
		ms.ComputeNewSize(requestwords)
	})
	ms.Bootstrapped()

	ld := ms.NewLoader("app", false)
	defer ld.Release()
	if _, err := ld.Alloc(8000, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	// the second medium chunk does not fit under the initial ceiling;
	// the collection grows it and the retry succeeds.
	if _, err := ld.Alloc(8000, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if collected != 1 {
		t.Errorf("expected %v, got %v", 1, collected)
	}
	if x := ms.Ceiling(); x <= wordstobytes(8192) {
		t.Errorf("expected grown ceiling, got %v", x)
	}
	ms.Validate()
}

func TestClassSpace(t *testing.T) {
	ms := NewMetaspace("classspace", s.Settings{
		"classcapacity": int64(1024 * 1024),
	})
	defer ms.Release()
	ld := ms.NewLoader("app", false)
	defer ld.Release()

	if _, err := ld.Alloc(100, Class); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if x := ld.spaces[Class].current.words; x != 256 {
		t.Errorf("expected %v, got %v", 256, x)
	}
	if _, err := ld.Alloc(100, NonClass); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if x := ld.spaces[NonClass].current.words; x != 512 {
		t.Errorf("expected %v, got %v", 512, x)
	}
	ms.Validate()

	// class kind without a class space.
	ms2 := NewMetaspace("noclass", s.Settings{})
	defer ms2.Release()
	ld2 := ms2.NewLoader("app", false)
	defer ld2.Release()
	if _, err := ld2.Alloc(100, Class); err != ErrorClassSpaceDisabled {
		t.Errorf("unexpected %v", err)
	}
}

func TestBytes(t *testing.T) {
	ms := NewMetaspace("bytes", s.Settings{})
	defer ms.Release()
	ld := ms.NewLoader("app", false)
	defer ld.Release()

	ptr1, _ := ld.Alloc(16, NonClass)
	ptr2, _ := ld.Alloc(16, NonClass)
	buf1, buf2 := ld.Bytes(ptr1, 16), ld.Bytes(ptr2, 16)
	if len(buf1) != 128 {
		t.Errorf("expected %v, got %v", 128, len(buf1))
	}
	for i := range buf1 {
		buf1[i], buf2[i] = 0x11, 0x22
	}
	for i := range buf1 {
		if buf1[i] != 0x11 || buf2[i] != 0x22 {
			t.Fatalf("blocks overlap at %v", i)
		}
	}
}

func TestConservation(t *testing.T) {
	ms := NewMetaspace("conserve", s.Settings{
		"capacity":    int64(64 * 1024 * 1024),
		"maxcapacity": int64(256 * 1024 * 1024),
	})
	defer ms.Release()

	loaders := []*Loader{}
	for i := 0; i < 3; i++ {
		loaders = append(loaders, ms.NewLoader("app", i == 1))
	}
	live := map[int][]Pointer{}
	livesz := map[int][]int64{}
	for i := 0; i < 2048; i++ {
		n := rand.Intn(len(loaders))
		if len(live[n]) > 0 && rand.Intn(3) == 0 {
			last := len(live[n]) - 1
			loaders[n].Free(live[n][last], livesz[n][last], NonClass)
			live[n], livesz[n] = live[n][:last], livesz[n][:last]
		} else {
			words := int64(rand.Intn(3000) + 1)
			ptr, err := loaders[n].Alloc(words, NonClass)
			if err != nil {
				t.Fatalf("unexpected %v", err)
			}
			live[n] = append(live[n], ptr)
			livesz[n] = append(livesz[n], words)
		}
		if i%256 == 0 {
			ms.Validate()
		}
	}
	ms.Validate()
	for _, ld := range loaders {
		ld.Release()
	}
	ms.Validate()
	ms.Purge()
	ms.Validate()
	ms.Log(true)
}
