package check

import (
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonymizer/internal/criteria"
	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/internal/history"
	"github.com/inferloop/anonymizer/internal/lattice"
	"github.com/inferloop/anonymizer/internal/metric"
	"github.com/inferloop/anonymizer/internal/observability"
	"github.com/inferloop/anonymizer/pkg/models"
)

// Result is the verdict of a node check.
type Result struct {
	Anonymous  bool
	KAnonymous bool
	Loss       float64
	Bound      float64
	Suppressed int
}

// NodeChecker materializes a candidate transformation's equivalence classes,
// evaluates the privacy criteria under the outlier budget, computes the
// metric, and records the resulting properties on the lattice node.
type NodeChecker struct {
	ds          *models.Dataset
	hierarchies []*hierarchy.Hierarchy
	space       *lattice.SolutionSpace
	history     *history.History
	metric      metric.Metric
	criteria    []criteria.Criterion

	k               int
	allowedOutliers int

	groupify *groupify.HashGroupify
	key      []int
	sens     []int

	checkedCount int64

	logger  *logrus.Logger
	metrics *observability.Metrics
}

// NewNodeChecker wires a checker over the given data, hierarchies and search
// state. allowedOutliers is the relative suppression limit from the
// configuration; the k of a configured k-anonymity criterion drives the
// distinct-direction k pruning (k=1 when absent).
func NewNodeChecker(
	ds *models.Dataset,
	hierarchies []*hierarchy.Hierarchy,
	space *lattice.SolutionSpace,
	hist *history.History,
	m metric.Metric,
	crits []criteria.Criterion,
	allowedOutliers float64,
	logger *logrus.Logger,
	metrics *observability.Metrics,
) *NodeChecker {
	if logger == nil {
		logger = logrus.New()
	}
	k := 1
	for _, c := range crits {
		if ka, ok := c.(*criteria.KAnonymity); ok {
			k = ka.K
		}
	}
	return &NodeChecker{
		ds:              ds,
		hierarchies:     hierarchies,
		space:           space,
		history:         hist,
		metric:          m,
		criteria:        crits,
		k:               k,
		allowedOutliers: int(allowedOutliers * float64(ds.Rows())),
		groupify:        groupify.New(ds.Rows(), len(ds.SensitiveIndices())),
		key:             make([]int, len(ds.QIIndices())),
		sens:            make([]int, len(ds.SensitiveIndices())),
		logger:          logger,
		metrics:         metrics,
	}
}

// CheckedCount returns the number of node checks performed
func (c *NodeChecker) CheckedCount() int64 { return c.checkedCount }

// Check evaluates the node with the given identifier and records its
// properties and loss on the lattice.
func (c *NodeChecker) Check(id int64) *Result {
	c.checkedCount++
	if c.metrics != nil {
		c.metrics.NodesChecked.Inc()
	}
	levels := c.space.Levels(id)

	// Groupify from the best cached ancestor, or from the base data
	source := c.history.Find(c.space, id)
	c.groupify.Reset()
	if source != nil {
		c.groupifyFromSnapshot(levels, source)
		if c.metrics != nil {
			c.metrics.SnapshotHits.Inc()
		}
	} else {
		c.groupifyFromData(levels)
		if c.metrics != nil {
			c.metrics.SnapshotMisses.Inc()
		}
	}

	result := c.analyze()
	wb := c.metric.Loss(levels, c.groupify)
	result.Loss = wb.Loss
	result.Bound = wb.Bound

	// Record properties; k-anonymity is tagged independently to drive
	// distinct-direction pruning
	c.space.PutProperty(id, lattice.PropertyChecked)
	if result.Anonymous {
		c.space.PutProperty(id, lattice.PropertyAnonymous)
	} else {
		c.space.PutProperty(id, lattice.PropertyNotAnonymous)
	}
	if result.KAnonymous {
		c.space.PutProperty(id, lattice.PropertyKAnonymous)
	} else {
		c.space.PutProperty(id, lattice.PropertyNotKAnonymous)
	}
	c.space.SetLoss(id, wb.Loss, wb.Bound)

	force := c.space.HasProperty(id, lattice.PropertyForceSnapshot)
	c.history.Store(id, levels, c.groupify, source, force)

	if c.metrics != nil && result.Suppressed > 0 {
		c.metrics.RowsSuppressed.Add(float64(result.Suppressed))
	}
	return result
}

// Groupify materializes the class list for the given levels without
// evaluating criteria. Used for output rendering and tests.
func (c *NodeChecker) Groupify(levels []int) *groupify.HashGroupify {
	c.groupify.Reset()
	c.groupifyFromData(levels)
	return c.groupify
}

func (c *NodeChecker) groupifyFromData(levels []int) {
	qi := c.ds.QIIndices()
	sensitive := c.ds.SensitiveIndices()
	for row := 0; row < c.ds.Rows(); row++ {
		for d, col := range qi {
			c.key[d] = c.hierarchies[d].Map(c.ds.Value(row, col), levels[d])
		}
		for i, col := range sensitive {
			c.sens[i] = c.ds.Value(row, col)
		}
		c.groupify.AddRow(c.key, c.ds.PopulationCount(row), c.sens)
	}
}

func (c *NodeChecker) groupifyFromSnapshot(levels []int, snapshot *history.Snapshot) {
	for i := range snapshot.Entries {
		e := &snapshot.Entries[i]
		for d := range c.key {
			c.key[d] = c.hierarchies[d].Map(e.Key[d], levels[d])
		}
		c.groupify.AddClass(c.key, e.Count, e.PCount, e.Distributions)
	}
}

// analyze applies the privacy criteria class by class in insertion order.
// Classes failing a criterion are marked as outliers until the suppression
// budget is exhausted; any further failure renders the node not anonymous.
func (c *NodeChecker) analyze() *Result {
	result := &Result{Anonymous: true, KAnonymous: true}

	suppressed := 0
	kSuppressed := 0
	for e := c.groupify.First(); e != nil; e = e.NextOrdered {
		if e.Count == 0 {
			continue
		}
		if e.Count < c.k {
			kSuppressed += e.Count
		}

		e.IsNotOutlier = true
		ok := true
		for _, crit := range c.criteria {
			if !crit.IsAnonymous(e) {
				ok = false
				break
			}
		}
		if ok {
			continue
		}
		if suppressed+e.Count <= c.allowedOutliers {
			e.IsNotOutlier = false
			suppressed += e.Count
		} else {
			result.Anonymous = false
		}
	}
	result.KAnonymous = kSuppressed <= c.allowedOutliers
	result.Suppressed = suppressed

	return result
}
