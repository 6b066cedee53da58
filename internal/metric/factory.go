package metric

import (
	"fmt"

	"github.com/inferloop/anonymizer/internal/risk"
	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

// FromConfiguration assembles the configured metric instance.
func FromConfiguration(cfg *models.Configuration) (Metric, error) {
	switch cfg.Metric {
	case models.MetricEntropyLoss, "":
		return NewEntropyLoss(cfg.GSFactor), nil
	case models.MetricPublisherPayout:
		model := risk.NewStackelbergModel(cfg.PublisherBenefit, cfg.AttackerCost)
		return NewPublisherPayout(cfg.AttackerModel, model, cfg.GSFactor), nil
	default:
		return nil, errors.NewConfigurationError("METRIC_UNKNOWN",
			fmt.Sprintf("unknown metric kind '%s'", cfg.Metric))
	}
}
