package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type artifact struct {
	Center string
	Cells  []int32
}

func openTest(t *testing.T, root string, opts Options) *Map[*artifact] {
	t.Helper()
	m, err := Open[*artifact](root, "gradients", opts)
	require.NoError(t, err)
	return m
}

func TestMap_PutGet_ReturnsStoredValue(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 4})
	v := &artifact{Center: "home", Cells: []int32{1, 2, 3}}

	require.NoError(t, m.Put("home", v))

	got, ok, err := m.Get("home")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, got)
	assert.FileExists(t, filepath.Join(m.dir, "home.data"))
}

func TestMap_Get_UnknownKey_Absent(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 4})
	got, ok, err := m.Get("nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMap_Put_ExistingKey_NotOverwritten(t *testing.T) {
	// GIVEN a stored value
	root := t.TempDir()
	m := openTest(t, root, Options{Capacity: 4})
	require.NoError(t, m.Put("k", &artifact{Center: "first"}))

	// WHEN the same key is put again with another value
	require.NoError(t, m.Put("k", &artifact{Center: "second"}))

	// THEN the first value survives, in memory and on disk
	got, _, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Center)

	reopened := openTest(t, root, Options{Capacity: 4})
	got, _, err = reopened.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Center)
}

func TestMap_Size_CountsPersistedKeysRegardlessOfCapacity(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 1})
	for _, k := range []string{"a", "b", "c", "a"} {
		require.NoError(t, m.Put(k, &artifact{Center: k}))
	}
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, 1, m.ResidentCount())

	_, found, err := m.Remove("b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, m.Size())
	assert.False(t, m.ContainsKey("b"))
}

func TestMap_Eviction_LeastRecentlyTouchedLeavesMemory(t *testing.T) {
	// GIVEN capacity 2 with a and b resident, a touched last
	m := openTest(t, t.TempDir(), Options{Capacity: 2})
	require.NoError(t, m.Put("a", &artifact{Center: "a"}))
	require.NoError(t, m.Put("b", &artifact{Center: "b"}))
	_, _, err := m.Get("a")
	require.NoError(t, err)

	// WHEN a third distinct key is touched
	require.NoError(t, m.Put("c", &artifact{Center: "c"}))

	// THEN exactly b is evicted from memory
	assert.True(t, m.Resident("a"))
	assert.False(t, m.Resident("b"))
	assert.True(t, m.Resident("c"))
	assert.Equal(t, 2, m.ResidentCount())

	// AND b is still retrievable from disk, which makes it most recent
	got, ok, err := m.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got.Center)
	assert.True(t, m.Resident("b"))
	assert.False(t, m.Resident("a"))
}

func TestMap_Put_RejectsInvalidEntries(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 4})
	tests := []struct {
		name string
		key  string
		val  *artifact
	}{
		{"empty key", "", &artifact{}},
		{"key over limit", strings.Repeat("k", MaxKeyLength+1), &artifact{}},
		{"nil value", "k", nil},
		{"path separator", "a/b", &artifact{}},
		{"parent dir", "..", &artifact{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Put(tt.key, tt.val), ErrValidation)
		})
	}
	assert.Equal(t, 0, m.Size())

	// a key of exactly the limit is fine
	assert.NoError(t, m.Put(strings.Repeat("k", MaxKeyLength), &artifact{}))
}

func TestOpen_RebuildsTOCFromDirectory(t *testing.T) {
	root := t.TempDir()
	m := openTest(t, root, Options{Capacity: 4})
	require.NoError(t, m.Put("x.y", &artifact{Center: "dotted"}))
	require.NoError(t, m.Put("z", &artifact{Center: "z"}))
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "junk.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "half.data.tmp"), []byte("debris"), 0o644))

	reopened := openTest(t, root, Options{Capacity: 4})

	assert.Equal(t, []string{"x.y", "z"}, reopened.Keys())
	assert.Equal(t, 0, reopened.ResidentCount())
	assert.NoFileExists(t, filepath.Join(m.dir, "half.data.tmp"))
}

type recordingObserver struct {
	started int
	loaded  []string
	ended   int
}

func (r *recordingObserver) PrefillStarted(total int) { r.started = total }
func (r *recordingObserver) ElementLoaded(key string) { r.loaded = append(r.loaded, key) }
func (r *recordingObserver) PrefillEnded()            { r.ended++ }

func TestOpen_Prefill_LoadsInTOCOrderAndReports(t *testing.T) {
	// GIVEN four persisted entries
	root := t.TempDir()
	m := openTest(t, root, Options{Capacity: 0})
	for _, k := range []string{"d", "b", "a", "c"} {
		require.NoError(t, m.Put(k, &artifact{Center: k}))
	}

	// WHEN reopened with prefill and capacity 3
	obs := &recordingObserver{}
	reopened := openTest(t, root, Options{Capacity: 3, Prefill: true, Observer: obs})

	// THEN the first three keys in TOC order are resident
	assert.Equal(t, 3, obs.started)
	assert.Equal(t, []string{"a", "b", "c"}, obs.loaded)
	assert.Equal(t, 1, obs.ended)
	assert.True(t, reopened.Resident("a"))
	assert.False(t, reopened.Resident("d"))
}

func TestMap_Get_MissingFile_SelfHeals(t *testing.T) {
	// GIVEN an entry evicted from memory whose file vanished
	m := openTest(t, t.TempDir(), Options{Capacity: 0})
	require.NoError(t, m.Put("gone", &artifact{Center: "gone"}))
	require.NoError(t, os.Remove(m.path("gone")))

	// WHEN loaded
	_, ok, err := m.Get("gone")

	// THEN the load fails once and the key is absent afterwards
	assert.ErrorIs(t, err, ErrStorage)
	assert.False(t, ok)
	assert.False(t, m.ContainsKey("gone"))
	_, ok, err = m.Get("gone")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMap_Get_CorruptBlob_StorageError(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 0})
	require.NoError(t, m.Put("bad", &artifact{Center: "bad"}))
	require.NoError(t, os.WriteFile(m.path("bad"), []byte("not gzip"), 0o644))

	_, _, err := m.Get("bad")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, 0, m.Size())
}

func TestMap_Remove_ReturnsPreviousAndErasesFile(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 0})
	require.NoError(t, m.Put("k", &artifact{Center: "v"}))

	prev, found, err := m.Remove("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", prev.Center)
	assert.NoFileExists(t, m.path("k"))

	_, found, err = m.Remove("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMap_Clear_EmptiesEveryTier(t *testing.T) {
	root := t.TempDir()
	m := openTest(t, root, Options{Capacity: 1})
	require.NoError(t, m.Put("a", &artifact{}))
	require.NoError(t, m.Put("b", &artifact{}))

	require.NoError(t, m.Clear())

	assert.Equal(t, 0, m.Size())
	assert.Equal(t, 0, m.ResidentCount())
	assert.Empty(t, openTest(t, root, Options{Capacity: 1}).Keys())
}

func TestMap_SetCapacity_ShrinkEvicts(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 3})
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(k, &artifact{Center: k}))
	}

	m.SetCapacity(1)

	assert.Equal(t, 1, m.ResidentCount())
	assert.True(t, m.Resident("c"))
	assert.Equal(t, 3, m.Size())
}

func TestMap_Prefill_RaisesCapacityToN(t *testing.T) {
	// GIVEN five persisted entries reopened with room for two
	root := t.TempDir()
	m := openTest(t, root, Options{Capacity: 5})
	for _, k := range []string{"e", "d", "c", "b", "a"} {
		require.NoError(t, m.Put(k, &artifact{Center: k}))
	}
	reopened := openTest(t, root, Options{Capacity: 2})

	// WHEN prefilled with five
	require.NoError(t, reopened.Prefill(5))

	// THEN the capacity follows and every entry is resident
	assert.Equal(t, 5, reopened.Capacity())
	assert.Equal(t, 5, reopened.ResidentCount())

	// AND prefilling fewer shrinks memory again
	require.NoError(t, reopened.Prefill(1))
	assert.Equal(t, 1, reopened.Capacity())
	assert.Equal(t, 1, reopened.ResidentCount())
	assert.Equal(t, 5, reopened.Size())
}

func TestMap_Stats_ReportsDiskUsage(t *testing.T) {
	m := openTest(t, t.TempDir(), Options{Capacity: 2})
	require.NoError(t, m.Put("a", &artifact{Cells: make([]int32, 64)}))

	s := m.Stats()
	assert.Equal(t, "gradients", s.Name)
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 1, s.Resident)
	assert.Positive(t, s.DiskBytes)
}
