// Package cache provides a persisted, capacity-bounded map for expensive
// computed artifacts such as movement gradients.
//
// Every entry lives in its own file under <root>/<name>/<key>.data. A
// table of contents (TOC) records which keys are persisted and is rebuilt
// from the directory listing at Open. A bounded subset of the values is kept
// in memory; a recency list orders the resident keys and the least recently
// touched one is evicted when the memory tier exceeds its capacity. Evicted
// values stay on disk and are reloaded transparently by Get.
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	// MaxKeyLength bounds keys, in characters.
	MaxKeyLength = 250

	fileSuffix = ".data"
	tmpSuffix  = ".tmp"
)

var (
	// ErrValidation rejects a bad key or value on write.
	ErrValidation = errors.New("cache: invalid entry")
	// ErrStorage reports a failed file operation. The failed operation is
	// not retried.
	ErrStorage = errors.New("cache: storage failure")
)

// Options configures Open.
type Options struct {
	// Capacity bounds the number of values held in memory.
	Capacity int
	// Prefill loads up to Capacity entries eagerly at Open.
	Prefill bool
	// Observer receives prefill progress. Nil means NopObserver.
	Observer Observer
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Stats is a point-in-time summary of a Map.
type Stats struct {
	Name      string
	Dir       string
	Entries   int
	Resident  int
	Capacity  int
	DiskBytes int64
}

// Map is a two-tier string-keyed store. Values are never overwritten in
// place: Put on an existing key is a no-op, and callers that need to update
// must Remove first.
type Map[V any] struct {
	mu       sync.Mutex
	name     string
	dir      string
	capacity int
	observer Observer
	log      logrus.FieldLogger

	toc  map[string]struct{}
	mem  map[string]V
	lru  *list.List // front is least recently touched
	lidx map[string]*list.Element
}

// Open prepares the map directory under root, rebuilds the TOC from it and
// optionally prefills the memory tier.
func Open[V any](root, name string, opts Options) (*Map[V], error) {
	if err := checkKey(name); err != nil {
		return nil, fmt.Errorf("map name: %w", err)
	}
	m := &Map[V]{
		name:     name,
		dir:      filepath.Join(root, name),
		capacity: max(opts.Capacity, 0),
		observer: opts.Observer,
		log:      opts.Logger,
		toc:      make(map[string]struct{}),
		mem:      make(map[string]V),
		lru:      list.New(),
		lidx:     make(map[string]*list.Element),
	}
	if m.observer == nil {
		m.observer = NopObserver{}
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorage, m.dir, err)
	}
	if err := m.rebuildTOC(); err != nil {
		return nil, err
	}
	m.log.Debugf("[cache %s] opened %s with %d entries", name, m.dir, len(m.toc))
	if opts.Prefill {
		if err := m.Prefill(m.capacity); err != nil {
			m.log.WithError(err).Warnf("[cache %s] prefill skipped unreadable entries", name)
		}
	}
	return m, nil
}

func (m *Map[V]) rebuildTOC() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("%w: list %s: %w", ErrStorage, m.dir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, tmpSuffix):
			// debris from an interrupted write
			_ = os.Remove(filepath.Join(m.dir, name))
		case strings.HasSuffix(name, fileSuffix):
			m.toc[strings.TrimSuffix(name, fileSuffix)] = struct{}{}
		}
	}
	return nil
}

func checkKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty key", ErrValidation)
	case utf8.RuneCountInString(key) > MaxKeyLength:
		return fmt.Errorf("%w: key longer than %d characters", ErrValidation, MaxKeyLength)
	case key == "." || key == "..",
		strings.ContainsAny(key, `/\`+"\x00"),
		strings.ContainsRune(key, filepath.Separator):
		return fmt.Errorf("%w: key %q is not a valid file name", ErrValidation, key)
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (m *Map[V]) path(key string) string {
	return filepath.Join(m.dir, key+fileSuffix)
}

// Put persists v under key unless the key already exists. The file is
// written before the TOC is updated, so a crash in between loses the entry
// rather than corrupting the map.
func (m *Map[V]) Put(key string, v V) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if isNil(v) {
		return fmt.Errorf("%w: nil value for %q", ErrValidation, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.toc[key]; ok {
		return nil
	}
	if err := writeBlob(m.path(key), v); err != nil {
		return fmt.Errorf("%w: persist %q: %w", ErrStorage, key, err)
	}
	m.toc[key] = struct{}{}
	m.remember(key, v)
	return nil
}

// Get returns the value for key. A value not resident in memory is loaded
// from disk. Any successful Get makes key the most recently used.
//
// A value that cannot be loaded is dropped from the TOC and reported as
// ErrStorage; later calls see the key as absent.
func (m *Map[V]) Get(key string) (V, bool, error) {
	var zero V
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.toc[key]; !ok {
		return zero, false, nil
	}
	if v, ok := m.mem[key]; ok {
		m.touch(key)
		return v, true, nil
	}
	v, err := m.load(key)
	if err != nil {
		return zero, false, err
	}
	m.remember(key, v)
	return v, true, nil
}

// Remove deletes key from disk and memory and returns the previous value.
func (m *Map[V]) Remove(key string) (V, bool, error) {
	var zero V
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.toc[key]; !ok {
		return zero, false, nil
	}
	prev, found := m.mem[key]
	if !found {
		// an unreadable blob is still erased below
		if v, err := m.load(key); err == nil {
			prev, found = v, true
		}
	}
	if err := os.Remove(m.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zero, false, fmt.Errorf("%w: erase %q: %w", ErrStorage, key, err)
	}
	m.forget(key)
	return prev, found, nil
}

// Clear erases every persisted entry. Entries whose files cannot be erased
// stay in the TOC.
func (m *Map[V]) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for key := range m.toc {
		if err := os.Remove(m.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		m.forget(key)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: clear %s: %w", ErrStorage, m.name, errors.Join(errs...))
	}
	return nil
}

// Size is the number of persisted keys, resident or not.
func (m *Map[V]) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toc)
}

func (m *Map[V]) ContainsKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.toc[key]
	return ok
}

// Keys returns the persisted keys in TOC order.
func (m *Map[V]) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedKeys()
}

func (m *Map[V]) sortedKeys() []string {
	keys := make([]string, 0, len(m.toc))
	for k := range m.toc {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Resident reports whether key is currently held in memory.
func (m *Map[V]) Resident(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mem[key]
	return ok
}

func (m *Map[V]) ResidentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mem)
}

func (m *Map[V]) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity
}

// SetCapacity changes the memory bound, evicting immediately on shrink.
func (m *Map[V]) SetCapacity(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = max(n, 0)
	m.evict()
}

// Prefill sets the capacity to n and loads keys in TOC order until n
// values are resident or the TOC runs out. Unreadable entries are skipped
// (and dropped from the TOC); their errors are joined into the result.
func (m *Map[V]) Prefill(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = max(n, 0)
	m.evict()
	target := min(m.capacity, len(m.toc))
	m.observer.PrefillStarted(target)
	defer m.observer.PrefillEnded()

	var errs []error
	for _, key := range m.sortedKeys() {
		if len(m.mem) >= target {
			break
		}
		if _, ok := m.mem[key]; ok {
			continue
		}
		v, err := m.load(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.remember(key, v)
		m.observer.ElementLoaded(key)
	}
	return errors.Join(errs...)
}

// Stats summarizes the map, including the bytes its files use on disk.
func (m *Map[V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Name: m.name, Dir: m.dir, Entries: len(m.toc), Resident: len(m.mem), Capacity: m.capacity}
	for key := range m.toc {
		if fi, err := os.Stat(m.path(key)); err == nil {
			s.DiskBytes += fi.Size()
		}
	}
	return s
}

// === recency bookkeeping; callers hold m.mu ===

func (m *Map[V]) load(key string) (V, error) {
	var v V
	if err := readBlob(m.path(key), &v); err != nil {
		m.forget(key)
		m.log.WithError(err).Warnf("[cache %s] dropped unreadable entry %q", m.name, key)
		return v, fmt.Errorf("%w: load %q: %w", ErrStorage, key, err)
	}
	return v, nil
}

func (m *Map[V]) remember(key string, v V) {
	m.mem[key] = v
	m.touch(key)
	m.evict()
}

func (m *Map[V]) touch(key string) {
	if el := m.lidx[key]; el != nil {
		m.lru.MoveToBack(el)
		return
	}
	m.lidx[key] = m.lru.PushBack(key)
}

func (m *Map[V]) evict() {
	for len(m.mem) > m.capacity {
		el := m.lru.Front()
		if el == nil {
			return
		}
		key := el.Value.(string)
		m.lru.Remove(el)
		delete(m.lidx, key)
		delete(m.mem, key)
		m.log.Debugf("[cache %s] evicted %q from memory", m.name, key)
	}
}

func (m *Map[V]) forget(key string) {
	delete(m.toc, key)
	delete(m.mem, key)
	if el := m.lidx[key]; el != nil {
		m.lru.Remove(el)
		delete(m.lidx, key)
	}
}
