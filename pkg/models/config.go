package models

// Monotonicity describes how the combined privacy model behaves along
// lattice ascents. With full monotonicity the aggregate anonymity verdict can
// be propagated to ancestors/descendants; otherwise it only binds the node.
type Monotonicity string

const (
	MonotonicityFull    Monotonicity = "full"
	MonotonicityPartial Monotonicity = "partial"
	MonotonicityNone    Monotonicity = "none"
)

// AttackerModel selects the adversary assumption for risk-aware metrics.
type AttackerModel string

const (
	AttackerProsecutor AttackerModel = "prosecutor"
	AttackerJournalist AttackerModel = "journalist"
)

// CriterionKind names a privacy criterion in declarative configuration.
type CriterionKind string

const (
	CriterionKAnonymity         CriterionKind = "k_anonymity"
	CriterionDistinctLDiversity CriterionKind = "distinct_l_diversity"
	CriterionEntropyLDiversity  CriterionKind = "entropy_l_diversity"
	CriterionRecursiveDiversity CriterionKind = "recursive_cl_diversity"
	CriterionEqualTCloseness    CriterionKind = "equal_t_closeness"
	CriterionHierarchicalTCloseness CriterionKind = "hierarchical_t_closeness"
)

// MetricKind names a utility metric in declarative configuration.
type MetricKind string

const (
	MetricEntropyLoss     MetricKind = "entropy_loss"
	MetricPublisherPayout MetricKind = "publisher_payout"
)

// CriterionSpec declares a single privacy criterion. SensitiveIndex refers to
// a column position for the diversity and closeness criteria.
type CriterionSpec struct {
	Kind           CriterionKind `json:"kind"`
	K              int           `json:"k,omitempty"`
	L              int           `json:"l,omitempty"`
	C              float64       `json:"c,omitempty"`
	T              float64       `json:"t,omitempty"`
	SensitiveIndex int           `json:"sensitive_index,omitempty"`
}

// Configuration carries all plain-value parameters of an anonymization run.
// Criteria and the metric are assembled from the declarative specs by the
// engine; programmatic callers may bypass the specs entirely.
type Configuration struct {
	AllowedOutliers      float64         `json:"allowed_outliers"`
	Criteria             []CriterionSpec `json:"criteria"`
	Metric               MetricKind      `json:"metric"`
	Monotonicity         Monotonicity    `json:"monotonicity"`
	AttackerModel        AttackerModel   `json:"attacker_model"`
	PublisherBenefit     float64         `json:"publisher_benefit"`
	AttackerCost         float64         `json:"attacker_cost"`
	GSFactor             float64         `json:"gs_factor"`
	MinLevels            []int           `json:"min_levels,omitempty"`
	MaxLevels            []int           `json:"max_levels,omitempty"`
	HistorySize          int             `json:"history_size"`
	SnapshotSizeDataset  float64         `json:"snapshot_size_dataset"`
	SnapshotSizeSnapshot float64         `json:"snapshot_size_snapshot"`
	SuppressionMarker    string          `json:"suppression_marker"`
}

// DefaultConfiguration returns a configuration with the engine defaults.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		AllowedOutliers:      0.0,
		Metric:               MetricEntropyLoss,
		Monotonicity:         MonotonicityFull,
		AttackerModel:        AttackerProsecutor,
		PublisherBenefit:     1200,
		AttackerCost:         4,
		GSFactor:             0.5,
		HistorySize:          200,
		SnapshotSizeDataset:  0.2,
		SnapshotSizeSnapshot: 0.8,
		SuppressionMarker:    "*",
	}
}
