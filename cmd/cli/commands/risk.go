package commands

import (
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/anonymizer/internal/dataset"
	"github.com/inferloop/anonymizer/internal/risk"
	pkgerrors "github.com/inferloop/anonymizer/pkg/errors"
)

type RiskOptions struct {
	DataFile         string
	QI               []string
	SamplingFraction float64
	IncludeSNB       bool
}

func NewRiskCmd() *cobra.Command {
	opts := &RiskOptions{}

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Estimate re-identification risk of a CSV micro-dataset",
		Long: `Compute sample-based disclosure-risk measures over the equivalence
classes induced by the declared quasi-identifiers, including an estimate of
the population-unique fraction.`,
		Example: `  anonymizer-cli risk --data patients.csv --qi age,zipcode --pi 0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRisk(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DataFile, "data", "d", "", "Input CSV file with a header row")
	cmd.Flags().StringSliceVar(&opts.QI, "qi", nil, "Quasi-identifying column names")
	cmd.Flags().Float64Var(&opts.SamplingFraction, "pi", 0.1, "Sampling fraction (sample size over population size)")
	cmd.Flags().BoolVar(&opts.IncludeSNB, "include-snb", false, "Include the SNB model in population-uniques estimation")

	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("qi")

	return cmd
}

func runRisk(opts *RiskOptions) error {
	logger := logrus.New()

	loader := dataset.NewLoader(logger)
	table, err := loader.LoadTable(opts.DataFile)
	if err != nil {
		return err
	}
	columnIndex := make(map[string]int, len(table.Header))
	for i, name := range table.Header {
		columnIndex[name] = i
	}
	qiIndices, err := resolveColumns(columnIndex, opts.QI)
	if err != nil {
		return err
	}
	ds, _, err := loader.Encode(table, qiIndices, nil)
	if err != nil {
		return err
	}

	estimator := risk.NewEstimator(ds, opts.SamplingFraction, logger)
	estimator.SetExcludeSNB(!opts.IncludeSNB)

	fmt.Printf("Records:                  %d\n", ds.Rows())
	fmt.Printf("Smallest class:           %d\n", estimator.MinimalClassSize())
	fmt.Printf("Largest class:            %d\n", estimator.MaximalClassSize())
	fmt.Printf("Average class risk:       %.6f\n", estimator.EquivalenceClassRisk())
	fmt.Printf("Highest individual risk:  %.6f\n", estimator.HighestIndividualRisk())
	fmt.Printf("Sample uniques:           %.6f\n", estimator.SampleUniquesRisk())

	population, err := estimator.PopulationUniquesRisk()
	switch {
	case pkgerrors.IsPreconditionError(err):
		fmt.Fprintln(os.Stderr, "Population uniques: not computable, the sample has no uniques")
	case err != nil:
		return err
	case math.IsNaN(population):
		fmt.Fprintln(os.Stderr, "Population uniques: no model converged")
	default:
		fmt.Printf("Population uniques:       %.6f\n", population)
	}
	return nil
}
