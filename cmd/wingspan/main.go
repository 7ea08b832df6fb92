package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"wingspan/internal/attrset"
	"wingspan/internal/config"
	"wingspan/internal/crawler"
	"wingspan/internal/pipeline"
	"wingspan/internal/storage"
	"wingspan/internal/toolchain"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "wingspan",
		Short: "Compile C to LLVM IR, tag user functions and run the Wingspan passes",
	}
	configPath string
	dbPath     string
	quiet      bool

	pluginPath string
	keepIR     bool
	passes     []string
	reportPath string

	jsonOutput bool

	historyLimit int
	historyRun   int64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the run ledger database (SQLite); defaults to run.ledger from the config")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print warnings and errors")

	compileCmd.Flags().StringVarP(&pluginPath, "wingspan-plugin", "w", "", "Path to the Wingspan pass plugin")
	compileCmd.Flags().BoolVarP(&keepIR, "keep", "k", false, "Keep the unoptimized LLVM IR")
	compileCmd.Flags().StringSliceVar(&passes, "pass", nil, "Pass to run (repeatable or comma-separated)")
	compileCmd.Flags().StringVar(&reportPath, "report", "", "Write the run report as JSON to this path (a directory when compiling several files)")

	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().Int64Var(&historyRun, "run", 0, "Show one run and the functions it repointed")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file. An explicitly passed --config must exist.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.LoadConfig(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// initStore opens the run ledger named by --db or the config.
func initStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	path := dbPath
	if path == "" {
		path = cfg.Run.Ledger
	}
	return storage.NewSQLiteStore(path)
}

func newReconciler(cfg *config.Config) *pipeline.Reconciler {
	synth, err := attrset.NewSynthesizer(cfg.AttrSet)
	if err != nil {
		log.Fatalf("Invalid attribute set profile: %v", err)
	}
	r, err := pipeline.NewReconciler(synth)
	if err != nil {
		log.Fatalf("Failed to create reconciler: %v", err)
	}
	return r
}

var compileCmd = &cobra.Command{
	Use:   "compile <file.c|dir>...",
	Short: "Compile C files, tag their functions and optimize them with the Wingspan plugin",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig(cmd)

		if pluginPath != "" {
			cfg.Toolchain.Plugin = pluginPath
		}
		if keepIR {
			cfg.Run.KeepUnoptimized = true
		}
		if len(passes) > 0 {
			cfg.Toolchain.Passes = passes
		}

		sources, err := crawler.NewCrawler().Sources(args...)
		if err != nil {
			log.Fatalf("Failed to collect sources: %v", err)
		}
		if len(sources) == 0 {
			log.Fatalf("No C files found in %s", strings.Join(args, ", "))
		}

		progress := pipeline.NewProgress(os.Stdout, quiet)
		runner := &pipeline.Runner{
			Compiler:        toolchain.NewCompiler(cfg.Toolchain.Clang, cfg.Toolchain.ClangFlags, nil),
			Optimizer:       toolchain.NewOptimizer(cfg.Toolchain.Opt, cfg.Toolchain.Plugin, cfg.Toolchain.Passes, nil),
			Reconciler:      newReconciler(cfg),
			Progress:        progress,
			KeepUnoptimized: cfg.Run.KeepUnoptimized,
		}

		store, err := initStore(cfg)
		if err != nil {
			progress.Warn("Run ledger unavailable, continuing without it: %v", err)
		} else {
			defer store.Close()
			runner.Ledger = store
		}

		var failed []string
		for _, src := range sources {
			report, err := runner.Run(ctx, src)
			if reportPath != "" {
				if serr := report.Save(reportFile(src, len(sources) > 1)); serr != nil {
					progress.Warn("Failed to write report: %v", serr)
				}
			}
			if err != nil {
				if len(sources) == 1 {
					if store != nil {
						store.Close()
					}
					log.Fatalf("❌ %v", err)
				}
				log.Printf("❌ %v", err)
				failed = append(failed, src)
			}
		}

		if len(failed) > 0 {
			if store != nil {
				store.Close()
			}
			log.Fatalf("❌ %d of %d files failed: %s", len(failed), len(sources), strings.Join(failed, ", "))
		}
		if len(sources) > 1 {
			fmt.Printf("🎉 Compiled %d files.\n", len(sources))
		}
	},
}

// reportFile is --report itself for a single source, or a file named after
// the source inside the --report directory for several.
func reportFile(src string, many bool) string {
	if !many {
		return reportPath
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(reportPath, base+".json")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file.c> <file.ll>",
	Short: "Tag the functions of an existing IR file that are defined in the C source",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		progress := pipeline.NewProgress(os.Stdout, quiet)

		report := pipeline.NewReport(args[0])
		out, err := newReconciler(cfg).Reconcile(context.Background(), args[0], args[1], report)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		for _, s := range report.Signals {
			if s.Severity == "warning" {
				progress.Warn("%s", s.Message)
			}
		}
		progress.Reconcile("Tagged %d of %d IR functions with attribute set #%d in %s",
			len(out.Rewrite.Changes), len(out.Scan.Functions), out.Rewrite.Set.Index, args[1])
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.c> <file.ll>",
	Short: "Show what reconcile would change without writing anything",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		report := pipeline.NewReport(args[0])
		out, err := newReconciler(cfg).Plan(context.Background(), args[0], args[1], report)
		if err != nil {
			report.Fail(err)
		}
		report.Finalize()

		if jsonOutput {
			data, jerr := report.JSON()
			if jerr != nil {
				log.Fatalf("Failed to encode report: %v", jerr)
			}
			os.Stdout.Write(data)
			if err != nil {
				os.Exit(1)
			}
			return
		}
		if err != nil {
			log.Fatalf("❌ %v", err)
		}

		fmt.Printf("📄 Source functions: %s\n", joinNames(report.SourceFunctions))
		fmt.Printf("📎 Prototypes:       %s\n", joinNames(report.Prototypes))
		for _, u := range report.Units {
			fmt.Printf("  %d: %-9s %s  %s\n", u.StartLine, u.UnitType, u.Details.Signature, u.ID)
		}
		fmt.Printf("🧩 IR functions:     %s\n", joinNames(report.IRFunctions))
		fmt.Printf("✅ Eligible:         %s\n", joinNames(report.Eligible))
		fmt.Printf("⏭️  Skipped:          %s\n", joinNames(report.IROnly))
		fmt.Printf("🏷️  New attribute set (previous max %s):\n    %s\n", report.AttrSet.PreviousMax, report.AttrSet.Declaration)
		for _, c := range out.Rewrite.Changes {
			fmt.Printf("  %d: %s %s -> %s\n", c.Line, c.Function, c.OldRef, c.NewRef)
		}
		for _, s := range report.Signals {
			fmt.Printf("⚠️  [%s] %s\n", s.Severity, s.Message)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs recorded in the ledger",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig(cmd)

		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()

		if historyRun > 0 {
			run, err := store.GetRun(ctx, historyRun)
			if err != nil {
				log.Fatalf("Failed to load run: %v", err)
			}
			fmt.Fprintln(w, runHeader)
			printRun(w, run)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "LINE\tFUNCTION\tOLD\tNEW\tSYMBOL")
			for _, f := range run.Functions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", f.Line, f.Name, f.OldRef, f.NewRef, f.SymbolID)
			}
			return
		}

		runs, err := store.RecentRuns(ctx, historyLimit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}
		fmt.Fprintln(w, runHeader)
		for _, run := range runs {
			printRun(w, run)
		}
	},
}

const runHeader = "ID\tSTARTED\tSOURCE\tSTATUS\tATTRS\tOUTPUT"

func printRun(w *tabwriter.Writer, run *storage.Run) {
	status := run.Status
	if run.Stage != "" {
		status += " (" + run.Stage + ")"
	}
	attrs := "-"
	if run.AttrIndex >= 0 {
		attrs = fmt.Sprintf("#%d %s", run.AttrIndex, run.AttrProfile)
	}
	output := run.Optimized
	if output == "" {
		output = run.IR
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
		run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Source, status, attrs, output)
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
