package commands

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/anonymizer/internal/dataset"
	"github.com/inferloop/anonymizer/internal/engine"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/pkg/models"
)

type AnonymizeOptions struct {
	DataFile    string
	Hierarchies []string
	QI          []string
	Sensitive   []string
	K           int
	L           int
	T           float64
	Suppression float64
	Metric      string
	GSFactor    float64
	Attacker    string
	Benefit     float64
	Cost        float64
	HistorySize int
	OutputFile  string
	LatticeFile string
}

func NewAnonymizeCmd() *cobra.Command {
	opts := &AnonymizeOptions{}

	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Anonymize a CSV micro-dataset",
		Long: `Search the generalization lattice of the declared quasi-identifiers for
a transformation that satisfies the configured privacy criteria with minimal
information loss, and write the transformed table.`,
		Example: `  # 2-anonymize a dataset on age and zip
  anonymizer-cli anonymize --data patients.csv --qi age,zipcode \
    --hierarchy age=age_hierarchy.csv --hierarchy zipcode=zip_hierarchy.csv --k 2

  # Publisher-payout metric with 5% suppression
  anonymizer-cli anonymize --data patients.csv --qi age,zipcode \
    --hierarchy age=age.csv --hierarchy zipcode=zip.csv \
    --k 2 --suppression 0.05 --metric publisher_payout --benefit 1200 --cost 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnonymize(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DataFile, "data", "d", "", "Input CSV file with a header row")
	cmd.Flags().StringArrayVar(&opts.Hierarchies, "hierarchy", nil, "Hierarchy file per QI as name=path (repeatable)")
	cmd.Flags().StringSliceVar(&opts.QI, "qi", nil, "Quasi-identifying column names")
	cmd.Flags().StringSliceVar(&opts.Sensitive, "sensitive", nil, "Sensitive column names")
	cmd.Flags().IntVar(&opts.K, "k", 2, "k for k-anonymity")
	cmd.Flags().IntVar(&opts.L, "l", 0, "l for distinct l-diversity (0 disables)")
	cmd.Flags().Float64Var(&opts.T, "t", 0, "t for equal-distance t-closeness (0 disables)")
	cmd.Flags().Float64Var(&opts.Suppression, "suppression", 0, "Allowed outlier fraction in [0,1)")
	cmd.Flags().StringVar(&opts.Metric, "metric", "entropy_loss", "Utility metric (entropy_loss, publisher_payout)")
	cmd.Flags().Float64Var(&opts.GSFactor, "gs-factor", 0.5, "Generalization/suppression factor in [0,1]")
	cmd.Flags().StringVar(&opts.Attacker, "attacker", "prosecutor", "Attacker model (prosecutor, journalist)")
	cmd.Flags().Float64Var(&opts.Benefit, "benefit", 1200, "Publisher benefit per record")
	cmd.Flags().Float64Var(&opts.Cost, "cost", 4, "Attacker cost per attack")
	cmd.Flags().IntVar(&opts.HistorySize, "history-size", 200, "Snapshot history size")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().StringVar(&opts.LatticeFile, "save-lattice", "", "Write the checked lattice records to this file")

	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("qi")
	cmd.MarkFlagRequired("hierarchy")

	return cmd
}

func runAnonymize(opts *AnonymizeOptions) error {
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
	sensitiveIndices, err := resolveColumns(columnIndex, opts.Sensitive)
	if err != nil {
		return err
	}

	ds, dict, err := loader.Encode(table, qiIndices, sensitiveIndices)
	if err != nil {
		return err
	}

	hierarchyPaths := make(map[string]string, len(opts.Hierarchies))
	for _, spec := range opts.Hierarchies {
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid hierarchy spec '%s', expected name=path", spec)
		}
		hierarchyPaths[parts[0]] = parts[1]
	}
	hierarchies := make([]*hierarchy.Hierarchy, len(qiIndices))
	for d, name := range opts.QI {
		path, ok := hierarchyPaths[name]
		if !ok {
			return fmt.Errorf("no hierarchy provided for quasi-identifier '%s'", name)
		}
		h, err := loader.LoadHierarchy(path, qiIndices[d], dict, name)
		if err != nil {
			return err
		}
		hierarchies[d] = h
	}

	cfg := models.DefaultConfiguration()
	cfg.AllowedOutliers = opts.Suppression
	cfg.Metric = models.MetricKind(opts.Metric)
	cfg.GSFactor = opts.GSFactor
	cfg.AttackerModel = models.AttackerModel(opts.Attacker)
	cfg.PublisherBenefit = opts.Benefit
	cfg.AttackerCost = opts.Cost
	cfg.HistorySize = opts.HistorySize
	cfg.Criteria = []models.CriterionSpec{{Kind: models.CriterionKAnonymity, K: opts.K}}
	if opts.L > 0 {
		if len(sensitiveIndices) == 0 {
			return fmt.Errorf("l-diversity requires a sensitive column")
		}
		cfg.Criteria = append(cfg.Criteria, models.CriterionSpec{
			Kind: models.CriterionDistinctLDiversity, L: opts.L, SensitiveIndex: sensitiveIndices[0],
		})
	}
	if opts.T > 0 {
		if len(sensitiveIndices) == 0 {
			return fmt.Errorf("t-closeness requires a sensitive column")
		}
		cfg.Criteria = append(cfg.Criteria, models.CriterionSpec{
			Kind: models.CriterionEqualTCloseness, T: opts.T, SensitiveIndex: sensitiveIndices[0],
		})
	}

	anonymizer := engine.NewAnonymizer(logger)
	result, err := anonymizer.Anonymize(&engine.Request{
		Dataset:     ds,
		Hierarchies: hierarchies,
		Config:      cfg,
	})
	if err != nil {
		return err
	}

	if !result.Found {
		fmt.Fprintln(os.Stderr, "No transformation satisfies the privacy criteria")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Run %s: transformation %v, loss %g, %d nodes checked in %s\n",
		result.RunID, result.Transformation, result.Loss, result.CheckedNodes, result.Elapsed)

	rows := result.TransformedRows(dict.Decode)
	out := os.Stdout
	if opts.OutputFile != "-" && opts.OutputFile != "" {
		f, err := os.Create(opts.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer := csv.NewWriter(out)
	if err := writer.Write(table.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	if opts.LatticeFile != "" {
		f, err := os.Create(opts.LatticeFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := engine.WriteLattice(f, result.Space); err != nil {
			return err
		}
	}
	return nil
}

func resolveColumns(index map[string]int, names []string) ([]int, error) {
	result := make([]int, 0, len(names))
	for _, name := range names {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("unknown column '%s'", name)
		}
		result = append(result, col)
	}
	return result, nil
}
