package risk

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

// Estimator computes disclosure-risk measures for a micro-dataset from the
// equivalence-class partitioning over its quasi-identifiers.
type Estimator struct {
	histogram        classHistogram
	rows             int
	samplingFraction float64
	cMin             int
	cMax             int
	excludeSNB       bool
	logger           *logrus.Logger
}

// NewEstimator builds the class-size histogram for the dataset's
// quasi-identifiers. samplingFraction is the ratio of sample to population
// size; values outside (0, 1] fall back to the default of 0.1.
func NewEstimator(ds *models.Dataset, samplingFraction float64, logger *logrus.Logger) *Estimator {
	if logger == nil {
		logger = logrus.New()
	}
	if samplingFraction <= 0 || samplingFraction > 1 {
		samplingFraction = 0.1
	}

	qi := ds.QIIndices()
	g := groupify.New(ds.Rows(), 0)
	key := make([]int, len(qi))
	for row := 0; row < ds.Rows(); row++ {
		for d, col := range qi {
			key[d] = ds.Value(row, col)
		}
		g.AddRow(key, 0, nil)
	}

	histogram := make(classHistogram)
	for e := g.First(); e != nil; e = e.NextOrdered {
		histogram[e.Count]++
	}

	est := &Estimator{
		histogram:        histogram,
		rows:             ds.Rows(),
		samplingFraction: samplingFraction,
		excludeSNB:       true,
		logger:           logger,
	}
	est.initialize()

	logger.WithFields(logrus.Fields{
		"rows":    ds.Rows(),
		"classes": histogram.classes(),
		"c_min":   est.cMin,
		"c_max":   est.cMax,
	}).Debug("Risk estimator initialized")
	return est
}

func (e *Estimator) initialize() {
	e.cMin = math.MaxInt
	e.cMax = 0
	for size := range e.histogram {
		if size < e.cMin {
			e.cMin = size
		}
		if size > e.cMax {
			e.cMax = size
		}
	}
	if e.cMin == math.MaxInt {
		e.cMin = 0
	}
}

// SetExcludeSNB controls whether the SNB model participates in the
// population-uniques selection rule.
func (e *Estimator) SetExcludeSNB(exclude bool) { e.excludeSNB = exclude }

// MinimalClassSize returns the size of the smallest equivalence class
func (e *Estimator) MinimalClassSize() int { return e.cMin }

// MaximalClassSize returns the size of the largest equivalence class
func (e *Estimator) MaximalClassSize() int { return e.cMax }

// EquivalenceClassRisk returns the dataset-average re-identification risk:
// the mean over records of one over their class size, which equals the class
// count divided by the record count.
func (e *Estimator) EquivalenceClassRisk() float64 {
	if e.rows == 0 {
		return 0
	}
	sizes := make([]int, 0, len(e.histogram))
	for size := range e.histogram {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	risks := make([]float64, 0, len(sizes))
	weights := make([]float64, 0, len(sizes))
	for _, size := range sizes {
		risks = append(risks, 1/float64(size))
		weights = append(weights, float64(size*e.histogram[size]))
	}
	return stat.Mean(risks, weights)
}

// HighestIndividualRisk returns the risk of the most exposed record
func (e *Estimator) HighestIndividualRisk() float64 {
	if e.cMin == 0 {
		return math.NaN()
	}
	return 1 / float64(e.cMin)
}

// HighestRiskAffected returns the number of classes at the highest risk
func (e *Estimator) HighestRiskAffected() float64 {
	if e.cMin == 0 {
		return math.NaN()
	}
	return float64(e.histogram[e.cMin])
}

// SampleUniquesRisk returns the fraction of records unique in the sample
func (e *Estimator) SampleUniquesRisk() float64 {
	if e.rows == 0 {
		return 0
	}
	return float64(e.histogram[1]) / float64(e.rows)
}

// PopulationUniquesRisk estimates the fraction of population uniques using
// the model-selection rule of Dankar et al.: Zayatz when the sample has
// uniques but no doubletons; otherwise Pitman then Zayatz for sampling
// fractions up to 0.1, and Zayatz then Pitman for larger fractions, with SNB
// tried last in either case unless excluded. In the chain the first finite
// estimate wins and NaN is returned when every model diverges; the Zayatz-only
// case returns its estimate as is.
func (e *Estimator) PopulationUniquesRisk() (float64, error) {
	if e.histogram[1] == 0 {
		return 0, errors.WrapError(errors.ErrNoSampleUniques,
			errors.ErrorTypePrecondition, "NO_SAMPLE_UNIQUES",
			"population uniqueness requires at least one sample unique")
	}

	pitman := &modelPitman{samplingFraction: e.samplingFraction, histogram: e.histogram}
	zayatz := &modelZayatz{samplingFraction: e.samplingFraction, histogram: e.histogram}
	snb := &modelSNB{samplingFraction: e.samplingFraction, histogram: e.histogram}

	if e.histogram[2] == 0 {
		return zayatz.risk(), nil
	}

	var chain []func() float64
	if e.samplingFraction <= 0.1 {
		chain = []func() float64{pitman.risk, zayatz.risk}
	} else {
		chain = []func() float64{zayatz.risk, pitman.risk}
	}
	if !e.excludeSNB {
		chain = append(chain, snb.risk)
	}

	for i, model := range chain {
		result := model()
		if !math.IsNaN(result) {
			if i > 0 {
				e.logger.WithField("fallbacks", i).Debug("Population-uniques model fallback used")
			}
			return result, nil
		}
	}
	return math.NaN(), nil
}
