package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"firestats/internal/batch"
	"firestats/internal/config"
	"firestats/internal/formatter"
	"firestats/internal/logger"
	"firestats/internal/mdm"
	"firestats/internal/models"
	"firestats/internal/pipeline"
	"firestats/internal/sink"
	"firestats/pkg/lineage"
)

// ErrBlocked is returned by a strict run with referential violations.
var ErrBlocked = errors.New("publish blocked by referential violations")

type runOptions struct {
	manifest string
	output   string
	format   string
	report   string
	strict   bool
	timeout  time.Duration
}

func createRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over a manifest of source files",
		Long: `Reads every source in the manifest, cleanses it, reconciles entities,
builds the Gold tables, validates them and writes tables plus the validation report.
With --strict, fact tables that fail validation are withheld and the command fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("strict") {
				cfg.Pipeline.Strict = opts.strict
			}

			if opts.output != "" {
				cfg.Output.Path = opts.output
			}

			if opts.format != "" {
				cfg.Output.Format = opts.format
			}

			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			return execute(ctx, cfg, log, opts)
		},
	}

	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Path to the source manifest (required)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output directory for json output")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: json or postgres")
	cmd.Flags().StringVar(&opts.report, "report", "", "Path of the Markdown report (defaults to report.md in the output directory)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Withhold failing fact tables and exit non-zero on violations")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort writing output after this long")

	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func execute(ctx context.Context, cfg *config.Config, log *logger.Logger, opts runOptions) error {
	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}

	manifest, err := batch.LoadManifest(opts.manifest)
	if err != nil {
		return err
	}

	batches, err := batch.Load(manifest)
	if err != nil {
		return err
	}

	var snapshots []mdm.Observation

	for _, path := range manifest.Snapshots {
		obs, err := batch.LoadSnapshots(manifest.Resolve(path))
		if err != nil {
			return err
		}

		snapshots = append(snapshots, obs...)
	}

	log.Info("inputs loaded", "batches", len(batches), "snapshots", len(snapshots))

	res, err := p.Run(pipeline.Input{Batches: batches, Snapshots: snapshots})
	if err != nil {
		return err
	}

	blocked := cfg.Pipeline.Strict && res.Report.HasBlockingViolations()
	tables := publishable(res, cfg.Pipeline.Strict, log)

	writer, err := openWriter(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	if err := writer.WriteTables(ctx, tables); err != nil {
		return err
	}

	if err := writer.WriteReport(ctx, res.Report, res.Lineage); err != nil {
		return err
	}

	if path := reportPath(cfg, opts); path != "" {
		doc := lineage.Sign(formatter.RenderReport(res.Report), res.RunID, !res.Report.HasBlockingViolations(), res.Report.GeneratedAt)
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		log.Info("report written", "path", path)
	}

	if blocked {
		return fmt.Errorf("%w: %d violations across %v", ErrBlocked, res.Report.TotalViolations(), res.Report.Tables())
	}

	return nil
}

// publishable drops fact tables with violations when strict.
func publishable(res *pipeline.Result, strict bool, log *logger.Logger) []models.Table {
	tables := res.Tables()
	if !strict {
		return tables
	}

	out := make([]models.Table, 0, len(tables))

	for _, t := range tables {
		if !res.Report.Publishable(t.Name) {
			log.Warn("withholding table", "table", t.Name)
			continue
		}

		out = append(out, t)
	}

	return out
}

func openWriter(ctx context.Context, cfg *config.Config) (sink.Writer, error) {
	switch cfg.Output.Format {
	case "json":
		return sink.NewJSONWriter(cfg.Output.Path, cfg.Output.PrettyPrint)
	case "postgres":
		return sink.NewPostgresWriter(ctx, sink.DSN(), cfg.Output.Schema)
	default:
		return nil, fmt.Errorf("%w: %s", sink.ErrUnknownFormat, cfg.Output.Format)
	}
}

func reportPath(cfg *config.Config, opts runOptions) string {
	if opts.report != "" {
		return opts.report
	}

	if cfg.Output.Format == "json" {
		return filepath.Join(cfg.Output.Path, "report.md")
	}

	return ""
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	return config.LoadConfig(path)
}
