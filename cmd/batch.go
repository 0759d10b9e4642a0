package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/batch"
	"github.com/ziadkadry99/tikzstudio/internal/progress"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

var batchCmd = &cobra.Command{
	Use:   "batch <pattern>...",
	Short: "Generate figures for every prompt, image and TikZ file matching the patterns",
	Long: `Expands the glob patterns (** is supported) under --root and makes one model
call per file: .txt and other text files are prompts, .png/.jpg/.gif/.webp files
are diagrams to reconstruct, and .tex/.tikz files are previewed. Results are
written to --out-dir with the input layout preserved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().String("root", ".", "directory the patterns are relative to")
	batchCmd.Flags().String("out-dir", "tikz-out", "directory to write results to")
	batchCmd.Flags().StringSlice("exclude", nil, "patterns of files to skip")
	batchCmd.Flags().String("mode", string(prompts.ModeFigure), "mode for prompt files: figure, variation_table or function_graph")
	batchCmd.Flags().Int("concurrency", 4, "max parallel model calls")
	batchCmd.Flags().Bool("png", false, "also rasterize every preview to PNG")
	batchCmd.Flags().Bool("dry-run", false, "list the files that would be processed without calling the model")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	start := time.Now()

	root, _ := cmd.Flags().GetString("root")
	outDir, _ := cmd.Flags().GetString("out-dir")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	modeStr, _ := cmd.Flags().GetString("mode")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	withPNG, _ := cmd.Flags().GetBool("png")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	mode, err := prompts.ParseMode(modeStr)
	if err != nil {
		return err
	}
	if !mode.TakesText() {
		return fmt.Errorf("--mode %s is not a text mode", mode)
	}

	jobs, err := batch.Collect(root, args, exclude)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No files matched.")
		return nil
	}

	if dryRun {
		fmt.Printf("%d file(s) would be processed:\n", len(jobs))
		for _, j := range jobs {
			fmt.Printf("  %-7s %s\n", j.Kind, j.RelPath)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	resolver := newResolver(cfg)
	warnMissingCredential(cfg, resolver)
	gw := newGateway(cfg, resolver, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := progress.NewReporter()
	reporter.Start(len(jobs))
	runner := batch.NewRunner(gw, batch.Options{
		Mode:        mode,
		Concurrency: concurrency,
		OutDir:      outDir,
		PNG:         withPNG,
		Export:      exportOptions(cfg),
		OnProgress: func(done, total int, relPath string) {
			reporter.Update(done, relPath)
		},
	})
	report := runner.Run(ctx, jobs)
	reporter.Finish(report.Failed)

	for _, out := range report.Outcomes {
		if out.Err != nil {
			fmt.Fprintf(os.Stderr, "  FAILED %v\n", out.Err)
		} else if verbose {
			for _, f := range out.Files {
				fmt.Fprintf(os.Stderr, "  wrote %s\n", f)
			}
		}
	}

	fmt.Printf("Processed %d file(s) in %s, %d failed. Output in %s\n",
		len(jobs), time.Since(start).Round(time.Millisecond), report.Failed, outDir)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", report.Failed, len(jobs))
	}
	return nil
}
