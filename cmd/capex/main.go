// capex CLI - process plant equipment cost estimation
//
// Usage:
//
//	capex estimate --devices plant.yaml [options]
//	capex classify --devices plant.yaml --bkp plant.bkp
//	capex runs trend --project cumene --days 30
//	capex serve --port 8080
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"process-capex/api"
	"process-capex/db/runs"
	"process-capex/decision/blocks"
	"process-capex/decision/costing"
	"process-capex/decision/estimation"
	"process-capex/decision/policy"
	"process-capex/internal/acquisition"
	"process-capex/pkg/equipment"
	"process-capex/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := platform.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newApp(cfg).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env carries what the Before hook prepares for every command.
type env struct {
	cfg    *platform.Config
	logger zerolog.Logger
}

func newApp(cfg *platform.Config) *cli.App {
	e := &env{cfg: cfg, logger: zerolog.Nop()}

	return &cli.App{
		Name:    "capex",
		Usage:   "Equipment capital cost estimation from process simulation results",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: cfg.LogLevel,
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "log-pretty",
				Value: cfg.LogPretty,
				Usage: "Human readable logs on stderr",
			},
			&cli.StringFlag{
				Name:  "store",
				Value: cfg.Store,
				Usage: "Run store (none, clickhouse, postgres)",
			},
			&cli.StringFlag{
				Name:  "clickhouse-dsn",
				Value: cfg.ClickHouseDSN,
				Usage: "ClickHouse DSN; overrides the clickhouse-* settings",
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "capex",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:  "database-url",
				Value: cfg.DatabaseURL,
				Usage: "PostgreSQL connection string",
			},
		},

		Before: func(c *cli.Context) error {
			e.logger = platform.InitLogger(c.App.ErrWriter, c.String("log-level"), c.Bool("log-pretty"))
			return nil
		},

		Commands: []*cli.Command{
			e.estimateCommand(),
			e.previewCommand(),
			e.classifyCommand(),
			e.correlationsCommand(),
			e.cepciCommand(),
			e.policyCommand(),
			e.runsCommand(),
			e.serveCommand(),
		},
	}
}

// =============================================================================
// ESTIMATE COMMAND
// =============================================================================

func devicesFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "devices",
			Aliases:  []string{"d"},
			Usage:    "Path to the device file (YAML or JSON)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "bkp",
			Usage: "Simulator backup file supplying record types of unlabeled blocks",
		},
	}
}

func (e *env) estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate purchased and bare-module cost of every device",
		Flags: append(devicesFlags(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
			&cli.IntFlag{
				Name:    "base-year",
				Value:   e.cfg.BaseYear,
				Usage:   "CEPCI year of the correlations",
				EnvVars: []string{"CAPEX_BASE_YEAR"},
			},
			&cli.Float64Flag{
				Name:    "base-index",
				Value:   e.cfg.BaseIndex,
				Usage:   "CEPCI value of the correlations; wins over --base-year",
				EnvVars: []string{"CAPEX_BASE_INDEX"},
			},
			&cli.IntFlag{
				Name:    "target-year",
				Value:   e.cfg.TargetYear,
				Usage:   "CEPCI year to escalate to",
				EnvVars: []string{"CAPEX_TARGET_YEAR"},
			},
			&cli.Float64Flag{
				Name:    "target-index",
				Value:   e.cfg.TargetIndex,
				Usage:   "CEPCI value to escalate to; wins over --target-year",
				EnvVars: []string{"CAPEX_TARGET_INDEX"},
			},
			&cli.StringFlag{
				Name:    "material",
				Value:   e.cfg.DefaultMaterial,
				Usage:   "Default construction material",
				EnvVars: []string{"CAPEX_DEFAULT_MATERIAL"},
			},
			&cli.BoolFlag{
				Name:  "allow-below-minimum",
				Usage: "Extrapolate undersized devices instead of reporting them under limit",
			},
			&cli.BoolFlag{
				Name:  "include-formulas",
				Usage: "Include correlation formulas in output",
			},
			&cli.Float64Flag{
				Name:  "cost-limit",
				Usage: "Bare-module cost limit for policy check",
			},
			&cli.StringFlag{
				Name:  "policies",
				Usage: "YAML file with additional policies",
			},
			&cli.BoolFlag{
				Name:  "skip-policy",
				Usage: "Skip policy evaluation",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the run in the configured run store",
			},
		),
		Action: e.runEstimate,
	}
}

func (e *env) runEstimate(c *cli.Context) error {
	ctx := c.Context

	batch, err := e.loadBatch(c)
	if err != nil {
		return err
	}
	if c.IsSet("material") || batch.Request.DefaultMaterial == "" {
		m, err := equipment.ParseMaterial(c.String("material"))
		if err != nil {
			return err
		}
		batch.Request.DefaultMaterial = m
	}
	index, err := indexFromFlags(c, batch.Request.Index)
	if err != nil {
		return err
	}
	batch.Request.Index = index
	batch.Request.AllowBelowMinimum = c.Bool("allow-below-minimum")

	fmt.Fprintf(c.App.ErrWriter, "📊 %d devices to cost, %d blocks skipped\n",
		len(batch.Request.Devices), len(batch.Skipped))

	engine := estimation.NewEngine(
		costing.NewDefaultEvaluator(costing.WithLogger(e.logger)),
		estimation.WithLogger(e.logger))
	result, err := engine.Estimate(ctx, batch.Request)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	var policyResult *policy.EvaluationResult
	if !c.Bool("skip-policy") {
		policyEngine, err := policyEngineFromFlags(c)
		if err != nil {
			return err
		}
		policyResult = policyEngine.Evaluate(result)
	}

	if c.Bool("save") {
		rec, err := e.openRecorder(c)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("--save needs --store clickhouse or postgres")
		}
		defer rec.Close()
		saved, err := runs.Save(ctx, rec, batch.Project, result)
		if err != nil {
			return err
		}
		e.logger.Info().Str("run_id", saved.Run.ID.String()).Str("project", saved.Run.Project).Msg("Run stored")
		if saved.RerunOf != nil {
			e.logger.Info().
				Str("run_id", saved.Run.ID.String()).
				Str("previous_run", saved.RerunOf.ID.String()).
				Msg("Results identical to an earlier run of the project")
		}
	}

	out := report{
		Project:  batch.Project,
		Result:   result,
		Policy:   policyResult,
		Skipped:  batch.Skipped,
		Formulas: c.Bool("include-formulas"),
	}
	w := c.App.Writer
	switch c.String("format") {
	case "json":
		err = writeJSON(w, out)
	case "markdown":
		err = writeMarkdown(w, out)
	case "table":
		err = writeTable(w, out)
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}
	if err != nil {
		return err
	}

	if policyResult != nil && policyResult.Decision == policy.DecisionDeny {
		return cli.Exit("policy check denied the estimate", 2)
	}
	return nil
}

// loadBatch reads the device file, fills record types from a backup file
// when given and resolves the batch.
func (e *env) loadBatch(c *cli.Context) (*acquisition.Batch, error) {
	df, err := acquisition.Load(c.String("devices"))
	if err != nil {
		return nil, err
	}
	if path := c.String("bkp"); path != "" {
		if err := applyBackup(df, path); err != nil {
			return nil, err
		}
	}

	x := acquisition.NewExtractor(acquisition.NewFileSource(df),
		acquisition.WithCache(acquisition.NewCache()),
		acquisition.WithLogger(e.logger))
	return acquisition.Build(c.Context, df, x)
}

func applyBackup(df *acquisition.DeviceFile, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading backup file: %w", err)
	}
	defer f.Close()

	var names []string
	for _, d := range df.Devices {
		if d.Category == "" && d.RecordType == "" {
			names = append(names, d.Name)
		}
	}
	types, err := blocks.ParseBackupRecordTypes(f, names)
	if err != nil {
		return err
	}
	for i := range df.Devices {
		if rt := types[df.Devices[i].Name]; rt != "" {
			df.Devices[i].RecordType = rt
		}
	}
	return nil
}

// indexFromFlags layers explicitly set index flags over the file's index.
func indexFromFlags(c *cli.Context, file costing.CostIndexOptions) (costing.CostIndexOptions, error) {
	spec := acquisition.IndexSpec{
		BaseYear:    file.BaseYear,
		BaseIndex:   file.BaseIndex,
		TargetYear:  file.TargetYear,
		TargetIndex: file.TargetIndex,
	}
	if c.IsSet("base-year") {
		spec.BaseYear, spec.BaseIndex = c.Int("base-year"), 0
	}
	if c.IsSet("base-index") {
		spec.BaseIndex = c.Float64("base-index")
	}
	if c.IsSet("target-year") {
		spec.TargetYear, spec.TargetIndex = c.Int("target-year"), 0
	}
	if c.IsSet("target-index") {
		spec.TargetIndex = c.Float64("target-index")
	}
	return spec.Options()
}

func policyEngineFromFlags(c *cli.Context) (*policy.Engine, error) {
	engine := policy.NewEngine()
	if limit := c.Float64("cost-limit"); limit > 0 {
		engine.AddPolicy(policy.Policy{
			ID:        "cli-cost-limit",
			Name:      "Cost Limit",
			Type:      policy.PolicyTypeCostLimit,
			Severity:  policy.SeverityError,
			Threshold: limit,
			Enabled:   true,
		})
	}
	if path := c.String("policies"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading policy file: %w", err)
		}
		defer f.Close()
		ps, err := policy.LoadPolicies(f)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			engine.AddPolicy(p)
		}
	}
	return engine, nil
}

// =============================================================================
// PREVIEW AND CLASSIFY COMMANDS
// =============================================================================

func (e *env) previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Show the resolved type, subtype and material of every device without costing",
		Flags: devicesFlags(),
		Action: func(c *cli.Context) error {
			batch, err := e.loadBatch(c)
			if err != nil {
				return err
			}
			engine := estimation.NewEngine(costing.NewDefaultEvaluator())
			return writePreview(c.App.Writer, engine.Preview(batch.Request), batch)
		},
	}
}

func (e *env) classifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Classify simulator blocks into equipment kinds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "devices",
				Aliases: []string{"d"},
				Usage:   "Device file whose names and record types are classified",
			},
			&cli.StringFlag{
				Name:  "bkp",
				Usage: "Simulator backup file with record types",
			},
			&cli.StringSliceFlag{
				Name:  "name",
				Usage: "Block name to classify (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			bs, err := blocksFromFlags(c)
			if err != nil {
				return err
			}
			if len(bs) == 0 {
				return fmt.Errorf("no blocks given; use --devices or --name")
			}
			return writeDetections(c.App.Writer, blocks.ClassifyAll(bs))
		},
	}
}

func blocksFromFlags(c *cli.Context) ([]blocks.Block, error) {
	var bs []blocks.Block
	if path := c.String("devices"); path != "" {
		df, err := acquisition.Load(path)
		if err != nil {
			return nil, err
		}
		for _, d := range df.Devices {
			bs = append(bs, blocks.Block{Name: d.Name, RecordType: d.RecordType})
		}
	}
	for _, n := range c.StringSlice("name") {
		bs = append(bs, blocks.Block{Name: n})
	}

	if path := c.String("bkp"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading backup file: %w", err)
		}
		defer f.Close()
		names := make([]string, len(bs))
		for i, b := range bs {
			names[i] = b.Name
		}
		types, err := blocks.ParseBackupRecordTypes(f, names)
		if err != nil {
			return nil, err
		}
		for i := range bs {
			if bs[i].RecordType == "" {
				bs[i].RecordType = types[bs[i].Name]
			}
		}
	}
	return bs, nil
}

// =============================================================================
// REFERENCE DATA COMMANDS
// =============================================================================

func (e *env) correlationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "correlations",
		Usage: "List registered cost correlations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only this category",
			},
		},
		Action: func(c *cli.Context) error {
			var filter equipment.Category
			if s := c.String("category"); s != "" {
				cat, err := equipment.ParseCategory(s)
				if err != nil {
					return err
				}
				filter = cat
			}
			return writeCorrelations(c.App.Writer, costing.NewDefaultEvaluator().Registry().Entries(), filter)
		},
	}
}

func (e *env) cepciCommand() *cli.Command {
	return &cli.Command{
		Name:  "cepci",
		Usage: "Print the built-in CEPCI table",
		Action: func(c *cli.Context) error {
			return writeCEPCI(c.App.Writer, costing.CEPCIByYear)
		},
	}
}

// =============================================================================
// POLICY COMMAND
// =============================================================================

func (e *env) policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "Manage policies",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List default policies and those of an optional file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "policies",
						Usage: "YAML file with additional policies",
					},
				},
				Action: func(c *cli.Context) error {
					engine, err := policyEngineFromFlags(c)
					if err != nil {
						return err
					}
					return writePolicies(c.App.Writer, engine.Policies())
				},
			},
		},
	}
}

// =============================================================================
// RUNS COMMAND
// =============================================================================

func (e *env) runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect stored runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum runs"},
					&cli.StringFlag{Name: "project", Usage: "Only runs of this project"},
				},
				Action: func(c *cli.Context) error {
					rec, err := e.requireRecorder(c)
					if err != nil {
						return err
					}
					defer rec.Close()
					var list []runs.RunRecord
					if project := c.String("project"); project != "" {
						list, err = rec.ListProjectRuns(c.Context, project, c.Int("limit"))
					} else {
						list, err = rec.ListRuns(c.Context, c.Int("limit"))
					}
					if err != nil {
						return err
					}
					return writeRuns(c.App.Writer, list)
				},
			},
			{
				Name:  "trend",
				Usage: "Daily bare-module totals per category of a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true, Usage: "Project name"},
					&cli.IntFlag{Name: "days", Value: 30, Usage: "How many days back"},
				},
				Action: func(c *cli.Context) error {
					if c.Int("days") <= 0 {
						return fmt.Errorf("--days must be positive")
					}
					rec, err := e.requireRecorder(c)
					if err != nil {
						return err
					}
					defer rec.Close()
					since := time.Now().UTC().AddDate(0, 0, -c.Int("days"))
					trend, err := rec.CategoryTrend(c.Context, c.String("project"), since)
					if err != nil {
						return err
					}
					return writeTrend(c.App.Writer, trend)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one run with its devices",
				ArgsUsage: "<run-id>",
				Action: func(c *cli.Context) error {
					id, err := parseRunID(c.Args().First())
					if err != nil {
						return err
					}
					rec, err := e.requireRecorder(c)
					if err != nil {
						return err
					}
					defer rec.Close()
					run, err := rec.GetRun(c.Context, id)
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", id)
					}
					devices, err := rec.DeviceRows(c.Context, id)
					if err != nil {
						return err
					}
					return writeRun(c.App.Writer, *run, devices)
				},
			},
		},
	}
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func (e *env) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the estimation API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Value: e.cfg.Port,
				Usage: "API server port",
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"CAPEX_CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:  "api-key",
				Value: e.cfg.APIKey,
				Usage: "Shared key required in the X-API-Key header; empty disables the check",
			},
			&cli.StringFlag{
				Name:  "policies",
				Usage: "YAML file with additional policies",
			},
		},
		Action: e.runServe,
	}
}

func (e *env) runServe(c *cli.Context) error {
	rec, err := e.openRecorder(c)
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
	}

	policies, err := policyEngineFromFlags(c)
	if err != nil {
		return err
	}

	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.CORSOrigins = corsOrigins
	cfg.APIKey = c.String("api-key")
	cfg.Version = version

	engine := estimation.NewEngine(
		costing.NewDefaultEvaluator(costing.WithLogger(e.logger)),
		estimation.WithLogger(e.logger))
	opts := []api.Option{api.WithLogger(e.logger), api.WithPolicies(policies)}
	if rec != nil {
		opts = append(opts, api.WithRecorder(rec))
	}
	return api.NewServer(engine, cfg, opts...).StartWithGracefulShutdown()
}

func (e *env) requireRecorder(c *cli.Context) (runs.Recorder, error) {
	rec, err := e.openRecorder(c)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no run store configured; use --store clickhouse or postgres")
	}
	return rec, nil
}
