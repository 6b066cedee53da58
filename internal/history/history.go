package history

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/lattice"
)

// SnapshotEntry is one serialized equivalence class.
type SnapshotEntry struct {
	Key           []int
	Count         int
	PCount        int
	Distributions []*groupify.Distribution
}

// Snapshot is the compact serialization of a checked node's class list. A
// descendant node can be groupified from it by re-applying the per-dimension
// generalization from the snapshot's levels to its own.
type Snapshot struct {
	Node    int64
	Levels  []int
	Entries []SnapshotEntry
}

// Classes returns the number of classes captured by the snapshot
func (s *Snapshot) Classes() int { return len(s.Entries) }

// History caches snapshots of checked nodes with LRU eviction. Admission is
// gated by two relative size thresholds: against the dataset and, when the
// snapshot was itself derived from a snapshot, against its source.
type History struct {
	cache                *lru.Cache[int64, *Snapshot]
	rows                 int
	snapshotSizeDataset  float64
	snapshotSizeSnapshot float64
	logger               *logrus.Logger
}

// New creates a history holding at most size snapshots.
func New(size, rows int, snapshotSizeDataset, snapshotSizeSnapshot float64, logger *logrus.Logger) (*History, error) {
	if logger == nil {
		logger = logrus.New()
	}
	capacity := size
	if capacity <= 0 {
		capacity = 1
	}
	cache, err := lru.New[int64, *Snapshot](capacity)
	if err != nil {
		return nil, err
	}
	return &History{
		cache:                cache,
		rows:                 rows,
		snapshotSizeDataset:  snapshotSizeDataset,
		snapshotSizeSnapshot: snapshotSizeSnapshot,
		logger:               logger,
	}, nil
}

// Store captures a snapshot of the given groupification if the admission
// policy allows it. source is the snapshot the groupification was derived
// from, or nil when it was built from the base data. force bypasses the
// admission thresholds.
func (h *History) Store(node int64, levels []int, g *groupify.HashGroupify, source *Snapshot, force bool) bool {
	classes := g.Classes()
	if !force {
		if float64(classes) > h.snapshotSizeDataset*float64(h.rows) {
			return false
		}
		if source != nil && float64(classes) > h.snapshotSizeSnapshot*float64(source.Classes()) {
			return false
		}
	}

	snapshot := &Snapshot{
		Node:    node,
		Levels:  append([]int(nil), levels...),
		Entries: make([]SnapshotEntry, 0, classes),
	}
	for e := g.First(); e != nil; e = e.NextOrdered {
		dists := make([]*groupify.Distribution, len(e.Distributions))
		for i, d := range e.Distributions {
			dists[i] = d.Clone()
		}
		snapshot.Entries = append(snapshot.Entries, SnapshotEntry{
			Key:           append([]int(nil), e.Key...),
			Count:         e.Count,
			PCount:        e.PCount,
			Distributions: dists,
		})
	}
	h.cache.Add(node, snapshot)

	h.logger.WithFields(logrus.Fields{
		"node":    node,
		"classes": classes,
	}).Debug("Snapshot stored")
	return true
}

// Find returns the best snapshot usable for the target node: the cached
// ancestor with the highest level, so the replayed class list is as small as
// possible. Ties break on the lower node id for deterministic behavior.
func (h *History) Find(space *lattice.SolutionSpace, target int64) *Snapshot {
	var best *Snapshot
	bestLevel := -1
	for _, node := range h.cache.Keys() {
		if node == target || !space.IsParentChildOrEqual(target, node) {
			continue
		}
		level := space.Level(node)
		if level > bestLevel || (level == bestLevel && best != nil && node < best.Node) {
			if s, ok := h.cache.Peek(node); ok {
				best = s
				bestLevel = level
			}
		}
	}
	if best != nil {
		h.cache.Get(best.Node) // refresh recency
	}
	return best
}

// Len returns the number of cached snapshots
func (h *History) Len() int { return h.cache.Len() }
