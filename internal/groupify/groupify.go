package groupify

import (
	"encoding/binary"
	"sort"

	"github.com/spaolacci/murmur3"
)

// hashSeed fixes the bucket hash so class iteration and collision behavior do
// not depend on process-level randomization.
const hashSeed uint32 = 0x9747b28c

// Distribution counts sensitive values within one equivalence class.
type Distribution struct {
	counts map[int]int
	total  int
}

// NewDistribution creates an empty distribution
func NewDistribution() *Distribution {
	return &Distribution{counts: make(map[int]int)}
}

// Add records one occurrence of a sensitive value code
func (d *Distribution) Add(value int) {
	d.counts[value]++
	d.total++
}

// AddCount records several occurrences of a sensitive value code
func (d *Distribution) AddCount(value, count int) {
	d.counts[value] += count
	d.total += count
}

// Merge folds another distribution into this one
func (d *Distribution) Merge(other *Distribution) {
	for v, c := range other.counts {
		d.counts[v] += c
	}
	d.total += other.total
}

// Distinct returns the number of distinct sensitive values
func (d *Distribution) Distinct() int { return len(d.counts) }

// Total returns the number of recorded occurrences
func (d *Distribution) Total() int { return d.total }

// Count returns the occurrences of a specific value code
func (d *Distribution) Count(value int) int { return d.counts[value] }

// Values returns the distinct value codes in ascending order. Reductions over
// distributions iterate this order so floating-point sums are reproducible.
func (d *Distribution) Values() []int {
	values := make([]int, 0, len(d.counts))
	for v := range d.counts {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

// Clone returns a deep copy
func (d *Distribution) Clone() *Distribution {
	c := &Distribution{counts: make(map[int]int, len(d.counts)), total: d.total}
	for v, n := range d.counts {
		c.counts[v] = n
	}
	return c
}

// Entry is one equivalence class: a generalized key, its sample count, an
// optional population count, per-sensitive-attribute distributions, and the
// outlier mark assigned during analysis. NextOrdered threads the classes in
// first-seen order.
type Entry struct {
	Key           []int
	Count         int
	PCount        int
	IsNotOutlier  bool
	Distributions []*Distribution

	hash        uint32
	next        *Entry
	NextOrdered *Entry
}

// HashGroupify partitions rows into equivalence classes by their generalized
// quasi-identifier tuple. The bucket array is reused across node checks via
// Reset.
type HashGroupify struct {
	buckets []*Entry
	mask    uint32

	first *Entry
	last  *Entry

	classes      int
	rows         int
	numSensitive int

	scratch []byte
}

// New creates a groupifier with capacity for the expected number of classes
func New(capacity, numSensitive int) *HashGroupify {
	size := 1
	for size < capacity {
		size <<= 1
	}
	if size < 16 {
		size = 16
	}
	return &HashGroupify{
		buckets:      make([]*Entry, size),
		mask:         uint32(size - 1),
		numSensitive: numSensitive,
	}
}

// Reset clears all classes while keeping the bucket array allocated
func (h *HashGroupify) Reset() {
	for i := range h.buckets {
		h.buckets[i] = nil
	}
	h.first = nil
	h.last = nil
	h.classes = 0
	h.rows = 0
}

// Classes returns the number of equivalence classes
func (h *HashGroupify) Classes() int { return h.classes }

// Rows returns the number of rows added
func (h *HashGroupify) Rows() int { return h.rows }

// First returns the head of the insertion-ordered class list
func (h *HashGroupify) First() *Entry { return h.first }

// AddRow inserts one row with the given generalized key. The key slice is
// copied on first insertion. sensitive carries one value code per sensitive
// attribute; pcount is the row's population frequency (zero when unknown).
func (h *HashGroupify) AddRow(key []int, pcount int, sensitive []int) *Entry {
	e := h.findOrCreate(key)
	e.Count++
	e.PCount += pcount
	for i, v := range sensitive {
		e.Distributions[i].Add(v)
	}
	h.rows++
	return e
}

// AddClass merges a whole class, typically replayed from a snapshot.
func (h *HashGroupify) AddClass(key []int, count, pcount int, distributions []*Distribution) *Entry {
	e := h.findOrCreate(key)
	e.Count += count
	e.PCount += pcount
	for i, d := range distributions {
		e.Distributions[i].Merge(d)
	}
	h.rows += count
	return e
}

// Get returns the class with the given key, or nil
func (h *HashGroupify) Get(key []int) *Entry {
	hash := h.hashKey(key)
	for e := h.buckets[hash&h.mask]; e != nil; e = e.next {
		if e.hash == hash && equalKeys(e.Key, key) {
			return e
		}
	}
	return nil
}

func (h *HashGroupify) findOrCreate(key []int) *Entry {
	hash := h.hashKey(key)
	slot := hash & h.mask
	for e := h.buckets[slot]; e != nil; e = e.next {
		if e.hash == hash && equalKeys(e.Key, key) {
			return e
		}
	}

	e := &Entry{
		Key:          append([]int(nil), key...),
		IsNotOutlier: true,
		hash:         hash,
		next:         h.buckets[slot],
	}
	e.Distributions = make([]*Distribution, h.numSensitive)
	for i := range e.Distributions {
		e.Distributions[i] = NewDistribution()
	}
	h.buckets[slot] = e

	if h.first == nil {
		h.first = e
	} else {
		h.last.NextOrdered = e
	}
	h.last = e
	h.classes++
	return e
}

func (h *HashGroupify) hashKey(key []int) uint32 {
	if cap(h.scratch) < len(key)*4 {
		h.scratch = make([]byte, len(key)*4)
	}
	buf := h.scratch[:len(key)*4]
	for i, v := range key {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return murmur3.Sum32WithSeed(buf, hashSeed)
}

func equalKeys(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
