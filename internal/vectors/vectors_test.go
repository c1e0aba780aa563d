package vectors

import (
	"errors"
	"path/filepath"
	"testing"
)

func testEmbeddings() map[int][]float32 {
	return map[int][]float32{
		0: {1, 0, 0, 0},
		1: {0, 1, 0, 0},
		2: {0.9, 0.1, 0, 0},
	}
}

func TestShard_SearchRanksBySimilarity(t *testing.T) {
	shard := Build(testEmbeddings())

	hits, err := shard.Search([]float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].FrameIndex != 0 {
		t.Errorf("expected frame 0 first, got %d", hits[0].FrameIndex)
	}
	if hits[0].Similarity < 0.999 {
		t.Errorf("identical vector should score ~1.0, got %v", hits[0].Similarity)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Error("hits should be ordered best first")
	}
}

func TestShard_SkipsEmptyEmbeddings(t *testing.T) {
	shard := Build(map[int][]float32{
		0: {1, 0},
		1: nil,
	})
	if shard.Len() != 1 {
		t.Errorf("empty embedding should be skipped, len %d", shard.Len())
	}
}

func TestShard_SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := ShardPath(dir, "m-1")

	shard := Build(testEmbeddings())
	if err := shard.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	hits, err := loaded.Search([]float32{0, 1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search after load: %v", err)
	}
	if len(hits) != 1 || hits[0].FrameIndex != 1 {
		t.Errorf("expected frame 1, got %+v", hits)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.shard")); err == nil {
		t.Error("expected an error for a missing shard file")
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"mismatched length", []float32{1, 0}, []float32{1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if got < tc.want-1e-6 || got > tc.want+1e-6 {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	loads := map[string]int{}
	cache := NewCache(2, func(mediaID string) (*Shard, error) {
		loads[mediaID]++
		return Build(map[int][]float32{0: {1, 0}}), nil
	})

	for _, id := range []string{"a", "b", "a", "c"} {
		if _, err := cache.Get(id); err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
	}
	// "b" is the oldest and should have been evicted by "c".
	if _, err := cache.Get("b"); err != nil {
		t.Fatalf("get b: %v", err)
	}
	if loads["a"] != 1 {
		t.Errorf("a should load once, loaded %d times", loads["a"])
	}
	if loads["b"] != 2 {
		t.Errorf("b should reload after eviction, loaded %d times", loads["b"])
	}
	if cache.Len() != 2 {
		t.Errorf("cache should hold 2 shards, got %d", cache.Len())
	}
}

func TestCache_LoadErrorNotCached(t *testing.T) {
	calls := 0
	wantErr := errors.New("no shard")
	cache := NewCache(2, func(string) (*Shard, error) {
		calls++
		return nil, wantErr
	})

	for i := 0; i < 2; i++ {
		if _, err := cache.Get("a"); !errors.Is(err, wantErr) {
			t.Fatalf("expected load error, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("failed loads must not be cached, got %d calls", calls)
	}
	if cache.Len() != 0 {
		t.Errorf("cache should stay empty, got %d", cache.Len())
	}
}

func TestCache_InvalidateAndResize(t *testing.T) {
	cache := NewCache(4, func(string) (*Shard, error) {
		return Build(map[int][]float32{0: {1, 0}}), nil
	})
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := cache.Get(id); err != nil {
			t.Fatalf("get: %v", err)
		}
	}

	cache.Invalidate("a")
	if cache.Len() != 3 {
		t.Errorf("expected 3 after invalidate, got %d", cache.Len())
	}

	cache.Resize(1)
	if cache.Len() != 1 {
		t.Errorf("resize should evict down to 1, got %d", cache.Len())
	}
}
