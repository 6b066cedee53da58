package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonymizer/internal/algorithm"
	"github.com/inferloop/anonymizer/internal/check"
	"github.com/inferloop/anonymizer/internal/criteria"
	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/internal/history"
	"github.com/inferloop/anonymizer/internal/lattice"
	"github.com/inferloop/anonymizer/internal/metric"
	"github.com/inferloop/anonymizer/internal/observability"
	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

// maxQuasiIdentifiers caps the lattice dimensionality
const maxQuasiIdentifiers = 15

// Request bundles everything one anonymization run needs. Criteria and
// Metric may be provided programmatically; when nil they are assembled from
// the declarative configuration.
type Request struct {
	Dataset              *models.Dataset
	Hierarchies          []*hierarchy.Hierarchy
	SensitiveHierarchies map[int]*hierarchy.Hierarchy
	Config               *models.Configuration
	Criteria             []criteria.Criterion
	Metric               metric.Metric
	Sink                 algorithm.ProgressSink
}

// Result exposes the outcome of a run: the chosen transformation (if any),
// its loss, the search state, and access to the transformed output.
type Result struct {
	RunID          string
	Found          bool
	Transformation []int
	OptimumID      int64
	Loss           float64
	Bound          float64
	Elapsed        time.Duration
	CheckedNodes   int64

	Space *lattice.SolutionSpace

	dataset     *models.Dataset
	hierarchies []*hierarchy.Hierarchy
	partition   *groupify.HashGroupify
	marker      string
}

// Anonymizer runs the lattice search for a privacy-preserving transformation.
type Anonymizer struct {
	logger  *logrus.Logger
	metrics *observability.Metrics
}

// NewAnonymizer creates an engine with the given logger (nil for a default).
func NewAnonymizer(logger *logrus.Logger) *Anonymizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Anonymizer{
		logger:  logger,
		metrics: observability.NewMetrics(nil),
	}
}

// Metrics returns the engine's observability counters
func (a *Anonymizer) Metrics() *observability.Metrics { return a.metrics }

// Anonymize validates the request, builds the search state and traverses the
// solution space. All invariant violations are reported here, before any
// search work is done.
func (a *Anonymizer) Anonymize(req *Request) (*Result, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = models.DefaultConfiguration()
	}
	if err := a.validate(req, cfg); err != nil {
		return nil, err
	}

	crits := req.Criteria
	if crits == nil {
		var err error
		crits, err = criteria.FromSpecs(cfg.Criteria, req.Dataset, req.SensitiveHierarchies)
		if err != nil {
			return nil, err
		}
	}
	m := req.Metric
	if m == nil {
		var err error
		m, err = metric.FromConfiguration(cfg)
		if err != nil {
			return nil, err
		}
	}
	if err := a.validateCriteria(req, crits); err != nil {
		return nil, err
	}

	minLevels, maxLevels := a.levelBounds(req, cfg)
	space, err := lattice.NewSolutionSpace(minLevels, maxLevels, cfg.Monotonicity, a.logger)
	if err != nil {
		return nil, err
	}
	hist, err := history.New(cfg.HistorySize, req.Dataset.Rows(),
		cfg.SnapshotSizeDataset, cfg.SnapshotSizeSnapshot, a.logger)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, "HISTORY_INIT", "cannot create snapshot history")
	}
	if err := m.Initialize(req.Hierarchies, req.Dataset.Rows()); err != nil {
		return nil, err
	}

	checker := check.NewNodeChecker(req.Dataset, req.Hierarchies, space, hist,
		m, crits, cfg.AllowedOutliers, a.logger, a.metrics)
	strategy := algorithm.NewStrategy(space, req.Hierarchies)
	flash := algorithm.NewFLASH(space, checker, strategy, req.Sink, a.logger)

	a.logger.WithFields(logrus.Fields{
		"rows":       req.Dataset.Rows(),
		"dimensions": space.Dimensions(),
		"nodes":      space.Size(),
		"metric":     m.Name(),
	}).Info("Starting lattice search")

	start := time.Now()
	optimum := flash.Traverse()
	elapsed := time.Since(start)
	a.metrics.SearchDuration.Set(elapsed.Seconds())

	result := &Result{
		RunID:        uuid.NewString(),
		Found:        optimum.Found,
		Elapsed:      elapsed,
		CheckedNodes: checker.CheckedCount(),
		Space:        space,
		dataset:      req.Dataset,
		hierarchies:  req.Hierarchies,
		marker:       cfg.SuppressionMarker,
	}
	if optimum.Found {
		result.OptimumID = optimum.ID
		result.Transformation = space.Levels(optimum.ID)
		result.Loss = optimum.Loss
		if bound, ok := space.LowerBound(optimum.ID); ok {
			result.Bound = bound
		}
		// Re-materialize the winning partition for output rendering; the
		// analysis re-marks the outlier rows.
		result.partition = checker.Groupify(result.Transformation)
		a.remarkOutliers(result.partition, crits, cfg, req.Dataset.Rows())
	}

	a.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"found":   result.Found,
		"checked": result.CheckedNodes,
		"elapsed": elapsed,
	}).Info("Lattice search finished")
	return result, nil
}

// remarkOutliers replays the outlier-budget analysis on a freshly built
// partition so the output rows can be suppressed consistently.
func (a *Anonymizer) remarkOutliers(g *groupify.HashGroupify, crits []criteria.Criterion, cfg *models.Configuration, rows int) {
	allowed := int(cfg.AllowedOutliers * float64(rows))
	suppressed := 0
	for e := g.First(); e != nil; e = e.NextOrdered {
		if e.Count == 0 {
			continue
		}
		ok := true
		for _, crit := range crits {
			if !crit.IsAnonymous(e) {
				ok = false
				break
			}
		}
		if !ok && suppressed+e.Count <= allowed {
			e.IsNotOutlier = false
			suppressed += e.Count
		}
	}
}

func (a *Anonymizer) validate(req *Request, cfg *models.Configuration) error {
	ds := req.Dataset
	if ds == nil {
		return errors.NewConfigurationError("DATA_MISSING", "dataset cannot be nil")
	}
	qis := len(ds.QIIndices())
	if qis == 0 {
		return errors.WrapError(errors.ErrNoQuasiIdentifiers,
			errors.ErrorTypeConfiguration, "NO_QUASI_IDENTIFIERS",
			"you need to specify at least one quasi-identifier")
	}
	if qis > maxQuasiIdentifiers {
		return errors.WrapError(errors.ErrTooManyQuasiIdentifiers,
			errors.ErrorTypeConfiguration, "TOO_MANY_QUASI_IDENTIFIERS",
			fmt.Sprintf("the curse of dimensionality strikes: %d quasi-identifiers", qis))
	}
	if len(req.Hierarchies) != qis {
		return errors.NewConfigurationError("HIERARCHY_COUNT",
			fmt.Sprintf("%d hierarchies provided for %d quasi-identifiers", len(req.Hierarchies), qis))
	}
	if cfg.AllowedOutliers < 0 || cfg.AllowedOutliers >= 1 {
		return errors.WrapError(errors.ErrInvalidSuppressionRate,
			errors.ErrorTypeConfiguration, "SUPPRESSION_RATE",
			fmt.Sprintf("suppression rate %g must be in [0,1)", cfg.AllowedOutliers))
	}
	if cfg.HistorySize < 0 {
		return errors.WrapError(errors.ErrInvalidHistorySize,
			errors.ErrorTypeConfiguration, "HISTORY_SIZE",
			fmt.Sprintf("history size %d", cfg.HistorySize))
	}
	if cfg.SnapshotSizeDataset <= 0 || cfg.SnapshotSizeDataset >= 1 {
		return errors.WrapError(errors.ErrInvalidSnapshotSize,
			errors.ErrorTypeConfiguration, "SNAPSHOT_SIZE_DATASET",
			fmt.Sprintf("snapshotSizeDataset %g", cfg.SnapshotSizeDataset))
	}
	if cfg.SnapshotSizeSnapshot <= 0 || cfg.SnapshotSizeSnapshot >= 1 {
		return errors.WrapError(errors.ErrInvalidSnapshotSize,
			errors.ErrorTypeConfiguration, "SNAPSHOT_SIZE_SNAPSHOT",
			fmt.Sprintf("snapshotSizeSnapshot %g", cfg.SnapshotSizeSnapshot))
	}

	minLevels, maxLevels := a.levelBounds(req, cfg)
	for d, h := range req.Hierarchies {
		if minLevels[d] < 0 || minLevels[d] > h.Height()-1 ||
			maxLevels[d] > h.Height()-1 || maxLevels[d] < minLevels[d] {
			return errors.WrapError(errors.ErrInvalidLevelRange,
				errors.ErrorTypeConfiguration, "LEVEL_RANGE",
				fmt.Sprintf("attribute '%s': min=%d max=%d height=%d",
					h.Name(), minLevels[d], maxLevels[d], h.Height()))
		}
	}
	return nil
}

func (a *Anonymizer) validateCriteria(req *Request, crits []criteria.Criterion) error {
	rows := req.Dataset.Rows()
	for _, c := range crits {
		switch crit := c.(type) {
		case *criteria.KAnonymity:
			if crit.K < 1 || crit.K > rows {
				return errors.WrapError(errors.ErrInvalidGroupSize,
					errors.ErrorTypeConfiguration, "K_RANGE",
					fmt.Sprintf("group size k=%d must be positive and at most the number of rows %d", crit.K, rows))
			}
		case *criteria.DistinctLDiversity:
			if crit.L < 1 || crit.L > rows {
				return errors.WrapError(errors.ErrInvalidGroupSize,
					errors.ErrorTypeConfiguration, "L_RANGE",
					fmt.Sprintf("group size l=%d must be positive and at most the number of rows %d", crit.L, rows))
			}
		}
		if c != nil && len(req.Dataset.SensitiveIndices()) == 0 {
			switch c.(type) {
			case *criteria.DistinctLDiversity, *criteria.EntropyLDiversity,
				*criteria.RecursiveCLDiversity, *criteria.EqualTCloseness,
				*criteria.HierarchicalTCloseness:
				return errors.WrapError(errors.ErrMissingSensitive,
					errors.ErrorTypeConfiguration, "SENSITIVE_REQUIRED",
					"diversity and closeness criteria require a sensitive attribute")
			}
		}
	}
	return nil
}

func (a *Anonymizer) levelBounds(req *Request, cfg *models.Configuration) ([]int, []int) {
	dims := len(req.Hierarchies)
	minLevels := cfg.MinLevels
	if len(minLevels) == 0 {
		minLevels = make([]int, dims)
	}
	maxLevels := cfg.MaxLevels
	if len(maxLevels) == 0 {
		maxLevels = make([]int, dims)
		for d, h := range req.Hierarchies {
			maxLevels[d] = h.Height() - 1
		}
	}
	return minLevels, maxLevels
}
