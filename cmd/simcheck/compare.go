package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/config"
	"github.com/kailas-cloud/simcheck/internal/domain"
	domanalysis "github.com/kailas-cloud/simcheck/internal/domain/analysis"
	logpkg "github.com/kailas-cloud/simcheck/internal/logger"
	analysisuc "github.com/kailas-cloud/simcheck/internal/usecase/analysis"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9567E3")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	cloneStyle  = cellStyle.Foreground(lipgloss.Color("#E36767")).Bold(true)
	selfStyle   = cellStyle.Foreground(lipgloss.Color("#666666"))
)

type compareOptions struct {
	provider  string
	threshold *float64 // nil keeps analysis.similarity_threshold
	asJSON    bool
}

// compareReport is the --json output of compare.
type compareReport struct {
	Files     []string                `json:"files"`
	Threshold float64                 `json:"threshold"`
	Matrix    domanalysis.Matrix      `json:"matrix"`
	Clones    []domanalysis.ClonePair `json:"clones"`
}

func newCompareCommand(configPath *string) *cobra.Command {
	var (
		opts      compareOptions
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "compare FILE...",
		Short: "Compare text files and print the similarity matrix",
		Long: "Embed each file as one text, print the pairwise similarity matrix as a table " +
			"and list the pairs at or above the clone threshold.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("threshold") {
				opts.threshold = &threshold
			}
			return runCompare(cmd.Context(), cmd.OutOrStdout(), *configPath, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "",
		"Embedding provider override: ollama, openai or local")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", config.DefaultSimilarityThreshold,
		"Clone threshold in percent (default: analysis.similarity_threshold)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func runCompare(ctx context.Context, out io.Writer, configPath string, files []string, opts compareOptions) error {
	cfg, err := compareConfig(configPath, opts.provider)
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(logpkg.EnvCLI)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	texts, err := readFiles(files)
	if err != nil {
		return err
	}

	budget := newBudgetTracker(ctx, cfg.Embedding, nil, logger)
	embedder, err := buildEmbedder(cfg.Embedding, budget, logger)
	if err != nil {
		return err
	}

	svc := analysisuc.New(embedder).
		WithThreshold(cfg.Analysis.Threshold()).
		WithMaxBatchSize(max(cfg.Analysis.MaxBatchSize, len(texts))).
		WithMaxTextBytes(cfg.Analysis.MaxTextBytes).
		WithDimensions(cfg.Embedding.Dimensions)

	threshold := svc.Threshold()
	var callOpts []analysisuc.Option
	if opts.threshold != nil {
		threshold = *opts.threshold
		callOpts = append(callOpts, analysisuc.OverrideThreshold(threshold))
	}

	ctx = logpkg.WithLogger(ctx, logger)
	result, err := svc.Analyze(ctx, texts, callOpts...)
	if err != nil {
		return describeFileError(err, files)
	}

	if opts.asJSON {
		clones := result.Clones
		if clones == nil {
			clones = []domanalysis.ClonePair{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(compareReport{
			Files:     files,
			Threshold: threshold,
			Matrix:    result.Matrix,
			Clones:    clones,
		}); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	}

	fmt.Fprintln(out, renderMatrix(files, result.Matrix, threshold))
	fmt.Fprint(out, renderClones(files, result.Clones, threshold))
	return nil
}

// compareConfig loads the configuration, falling back to defaults for the local provider
// so that compare works without a config file.
func compareConfig(configPath, provider string) (config.Config, error) {
	cfg, err := loadConfig(configPath, config.GetEnv())
	if err != nil {
		if provider != domain.ProviderLocal {
			return config.Config{}, err
		}
		cfg = config.Config{}
	}
	if provider != "" {
		cfg.Embedding.Provider = provider
	}
	if cfg.Embedding.Provider == domain.ProviderLocal && cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFiles(files []string) ([]string, error) {
	texts := make([]string, len(files))
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		texts[i] = string(data)
	}
	return texts, nil
}

// describeFileError names the file behind an invalid input error.
func describeFileError(err error, files []string) error {
	var iie *domain.InvalidInputError
	if errors.As(err, &iie) && iie.Index >= 0 && iie.Index < len(files) {
		return fmt.Errorf("%s: %w", files[iie.Index], err)
	}
	return err
}

func renderMatrix(files []string, m domanalysis.Matrix, threshold float64) string {
	headers := make([]string, 0, len(files)+1)
	headers = append(headers, "")
	for i := range files {
		headers = append(headers, strconv.Itoa(i))
	}

	rows := make([][]string, len(m))
	for i, row := range m {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, fmt.Sprintf("%d %s", i, filepath.Base(files[i])))
		for _, v := range row {
			cells = append(cells, strconv.FormatFloat(v, 'f', 2, 64))
		}
		rows[i] = cells
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return headerStyle.Align(lipgloss.Left)
			case row == col-1:
				return selfStyle
			case m[row][col-1] >= threshold:
				return cloneStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func renderClones(files []string, clones []domanalysis.ClonePair, threshold float64) string {
	if len(clones) == 0 {
		return fmt.Sprintf("No clones at %.2f%%.\n", threshold)
	}
	s := fmt.Sprintf("Clones at %.2f%%:\n", threshold)
	for _, p := range clones {
		s += fmt.Sprintf("  [%d, %d] %s <-> %s\n", p.A, p.B, files[p.A], files[p.B])
	}
	return s
}
