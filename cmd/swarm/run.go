package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evolving-machines-lab/evolve-sub003/internal/config"
	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/observability"
	"github.com/evolving-machines-lab/evolve-sub003/internal/pipeline"
	"github.com/evolving-machines-lab/evolve-sub003/internal/swarm"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

var (
	pipelinePath string
	outputDir    string
	concurrency  int
)

var runCmd = &cobra.Command{
	Use:   "run [input-dir]",
	Short: "Run a pipeline over a directory of input items",
	Long: `Run executes the pipeline declared in the definition file over the
items found in input-dir. Each immediate subdirectory of input-dir is one
item; a directory with no subdirectories is treated as a single item.
Results are written under the output directory per item.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&pipelinePath, "file", "f", "", "Pipeline definition file (required)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "swarm-out", "Directory to write results to")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override the configured worker concurrency")
	_ = runCmd.MarkFlagRequired("file")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadWithDefaults(settingsPath)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Engine.Concurrency = concurrency
	}

	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	provider, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.ShutdownTracing(context.Background(), provider); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	defData, err := os.ReadFile(pipelinePath)
	if err != nil {
		return fmt.Errorf("reading pipeline definition: %w", err)
	}
	def, err := config.ParsePipeline(defData)
	if err != nil {
		return err
	}

	inputDir := "."
	if len(args) == 1 {
		inputDir = args[0]
	}
	items, err := loadItems(inputDir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no input items found under %s", inputDir)
	}

	model, err := executor.NewModel(cfg.Agent.Provider, cfg.Agent.APIKey, cfg.Agent.Model, "")
	if err != nil {
		return err
	}
	exec := executor.NewLLMExecutor(model,
		executor.WithLogger(logger),
		executor.WithDefaultTimeout(cfg.Engine.Timeout),
		executor.WithModelResolver(executor.ResolverForProvider(cfg.Agent.APIKey, "")),
	)

	sw := swarm.New(exec,
		swarm.WithConcurrency(cfg.Engine.Concurrency),
		swarm.WithLogger(logger),
		swarm.WithTracer(observability.Tracer(provider)),
	)

	p, err := def.Compile(pipeline.New(sw,
		pipeline.WithLogger(logger),
		pipeline.WithTracer(observability.Tracer(provider)),
		pipeline.WithEventSink(consoleSink(cmd.OutOrStdout())),
	))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(fmt.Sprintf("Running %s (%d steps, %d items)",
		def.Name, p.Len(), len(items))))

	result, err := p.Run(ctx, items)
	if err != nil {
		return err
	}

	if err := writeResults(outputDir, result); err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), result, outputDir)
	return nil
}

// loadItems reads input items from dir: one item per immediate
// subdirectory, or the whole directory as a single item when it holds
// only files.
func loadItems(dir string) ([]types.FileMap, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var items []types.FileMap
	for _, entry := range entries {
		if entry.IsDir() {
			files, err := readTree(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			if len(files) > 0 {
				items = append(items, files)
			}
		}
	}
	if len(items) > 0 {
		return items, nil
	}

	files, err := readTree(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return []types.FileMap{files}, nil
}

// readTree collects all regular files under root, keyed by their path
// relative to root.
func readTree(root string) (types.FileMap, error) {
	files := types.NewFileMap()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading item %s: %w", root, err)
	}
	return files, nil
}

// writeResults lays the final results out on disk: item_N/ directories
// for batch output, reduced/ for a terminal reduce.
func writeResults(dir string, result *pipeline.RunResult) error {
	if result.Reduced != nil {
		return writeFiles(filepath.Join(dir, "reduced"), result.Reduced.Files)
	}
	for _, r := range result.Output {
		target := filepath.Join(dir, fmt.Sprintf("item_%d", r.Meta.ItemIndex))
		if err := writeFiles(target, r.Files); err != nil {
			return err
		}
	}
	return nil
}

func writeFiles(dir string, files types.FileMap) error {
	for _, path := range files.Paths() {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, files[path], 0o644); err != nil {
			return err
		}
	}
	return nil
}
