package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"risk-models/internal/apperr"
	"risk-models/internal/config"
	"risk-models/internal/db"
	"risk-models/internal/logger"
	"risk-models/internal/montecarlo"
	"risk-models/internal/observability"
	"risk-models/internal/portfolio"
	"risk-models/internal/randx"
	"risk-models/internal/risk"
)

var version = "dev"

const usage = `usage: risk-models [flags] <command> [args]

commands:
  simulate                run a Monte Carlo batch (-in file or -preset name)
  optimize                optimize a portfolio (-in file or -preset name)
  var                     estimate Value at Risk from a return series (-in file)
  presets list [kind]     list stored presets (kind: batch, portfolio)
  presets show <name>     print a stored preset
  presets delete <name>   remove a stored preset
  config show             print the effective configuration
  config set <key> <val>  persist a configuration override
  config save             persist the effective file/env configuration
  config reset            drop all persisted overrides

flags:
`

// app carries what every command needs.
type app struct {
	cfg     *config.Config
	store   *db.DB
	metrics *observability.Metrics
	out     io.Writer

	in     string
	preset string
	save   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logger.Error("CLI", err.Error())
		}
		logger.Close()
		if errors.Is(err, flag.ErrHelp) || apperr.IsInvalid(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	logger.Close()
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("risk-models", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (yaml, toml or json)")
	dbPath := fs.String("db", "", "sqlite database path (overrides db_path)")
	in := fs.String("in", "", "JSON input file")
	preset := fs.String("preset", "", "load input from a stored preset")
	save := fs.String("save", "", "store the input as a preset under this name")
	metricsOut := fs.String("metrics-out", "", "write Prometheus metrics to this textfile")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return apperr.Invalid("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	slog.SetDefault(logger.Get())
	logger.Banner(version)

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Persisted overrides sit between the file/env layer and the command.
	if cfg, err = store.LoadConfig(cfg); err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	reg := prometheus.NewRegistry()
	a := &app{
		cfg:     cfg,
		store:   store,
		metrics: observability.NewMetrics(reg),
		out:     out,
		in:      *in,
		preset:  *preset,
		save:    *save,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "simulate":
		err = a.simulate(ctx)
	case "optimize":
		err = a.optimize()
	case "var":
		err = a.valueAtRisk()
	case "presets":
		err = a.presets(rest)
	case "config":
		err = a.config(rest)
	default:
		err = apperr.Invalid("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	if *metricsOut != "" {
		if err := prometheus.WriteToTextfile(*metricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Success("CLI", fmt.Sprintf("Metrics written to %s", *metricsOut))
	}
	return nil
}

func (a *app) emit(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Invalid("decode %s: %v", path, err)
	}
	return nil
}

func (a *app) needInput() error {
	if (a.in == "") == (a.preset == "") {
		return apperr.Invalid("exactly one of -in or -preset is required")
	}
	return nil
}

func (a *app) simulate(ctx context.Context) error {
	if err := a.needInput(); err != nil {
		return err
	}
	var batch montecarlo.Batch
	if a.preset != "" {
		b, err := a.store.LoadBatch(a.preset)
		if err != nil {
			return err
		}
		batch = *b
	} else if err := readJSON(a.in, &batch); err != nil {
		return err
	}
	if batch.Trials == 0 {
		batch.Trials = a.cfg.Simulation.Trials
	}

	engine := montecarlo.NewEngine(randx.New(a.cfg.Simulation.Seed), a.cfg.Simulation.Workers, a.metrics)
	outcome, err := engine.Run(ctx, batch)
	if err != nil {
		return err
	}
	// Only inputs that produced a result are stored.
	if a.save != "" {
		if err := a.store.SaveBatch(a.save, batch); err != nil {
			return err
		}
		logger.Success("DB", fmt.Sprintf("Saved batch preset %s", a.save))
	}

	st := outcome.Statistics
	logger.Section("Simulation")
	logger.Stats("Trials", st.Trials)
	logger.Stats("Mean", fmt.Sprintf("%.4f", st.Mean))
	logger.Stats("Std dev", fmt.Sprintf("%.4f", st.StdDev))
	logger.Stats("P5 / P50 / P95", fmt.Sprintf("%.4f / %.4f / %.4f", st.P5, st.P50, st.P95))
	logger.Stats("P(negative)", fmt.Sprintf("%.2f%%", st.ProbNegative))
	return a.emit(outcome)
}

// optimizeInput leaves the risk-free rate optional so the configured
// rate applies when the file omits it.
type optimizeInput struct {
	Assets       []portfolio.Asset `json:"assets"`
	Correlation  [][]float64       `json:"correlation"`
	RiskFreeRate *float64          `json:"risk_free_rate"`
}

func (a *app) optimize() error {
	if err := a.needInput(); err != nil {
		return err
	}
	var prob portfolio.Problem
	if a.preset != "" {
		p, err := a.store.LoadPortfolio(a.preset)
		if err != nil {
			return err
		}
		prob = *p
	} else {
		var in optimizeInput
		if err := readJSON(a.in, &in); err != nil {
			return err
		}
		prob = portfolio.Problem{Assets: in.Assets, Correlation: in.Correlation, RiskFreeRate: a.cfg.Optimizer.RiskFreeRate}
		if in.RiskFreeRate != nil {
			prob.RiskFreeRate = *in.RiskFreeRate
		}
	}
	oc := a.cfg.Optimizer
	res, err := portfolio.Optimize(prob.Assets, prob.Correlation, prob.RiskFreeRate, portfolio.Options{
		Method:            portfolio.Method(oc.Method),
		Iterations:        oc.Iterations,
		FrontierPoints:    oc.FrontierPoints,
		FrontierDraws:     oc.FrontierDraws,
		FrontierTolerance: oc.FrontierTolerance,
		Source:            randx.New(a.cfg.Simulation.Seed),
		Metrics:           a.metrics,
	})
	if err != nil {
		return err
	}
	if a.save != "" {
		if err := a.store.SavePortfolio(a.save, prob); err != nil {
			return err
		}
		logger.Success("DB", fmt.Sprintf("Saved portfolio preset %s", a.save))
	}

	logger.Section("Optimization")
	logger.Stats("Method", res.Method)
	logger.Stats("Candidates", res.Candidates)
	logger.Stats("Min variance vol", fmt.Sprintf("%.4f", res.MinVariance.Volatility))
	logger.Stats("Max Sharpe", fmt.Sprintf("%.4f", res.MaxSharpe.SharpeRatio))
	logger.Stats("Frontier points", len(res.EfficientFrontier))
	return a.emit(res)
}

// varInput is the var command's input file. Zero fields fall back to config.
type varInput struct {
	Returns        []float64       `json:"returns"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Method         string          `json:"method"` // historical, parametric, monte_carlo or all
	HorizonDays    int             `json:"horizon_days"`
	Confidence     float64         `json:"confidence_level"`
}

func (a *app) valueAtRisk() error {
	if a.in == "" {
		return apperr.Invalid("var needs -in")
	}
	var in varInput
	if err := readJSON(a.in, &in); err != nil {
		return err
	}
	vc := a.cfg.VaR
	if in.HorizonDays == 0 {
		in.HorizonDays = vc.HorizonDays
	}
	if in.Confidence == 0 {
		in.Confidence = vc.ConfidenceLevel
	}
	if in.Method == "" {
		in.Method = "all"
	}

	calc, err := risk.NewCalculator(in.Confidence, a.metrics)
	if err != nil {
		return err
	}

	methods := []risk.Method{risk.Method(in.Method)}
	if in.Method == "all" {
		methods = []risk.Method{risk.Historical, risk.Parametric, risk.MonteCarlo}
	}
	var estimates []*risk.Estimate
	for _, m := range methods {
		var e *risk.Estimate
		switch m {
		case risk.Historical:
			e, err = calc.Historical(in.Returns, in.PortfolioValue, in.HorizonDays)
		case risk.Parametric:
			e, err = calc.Parametric(in.Returns, in.PortfolioValue, in.HorizonDays, vc.EWMALambda)
		case risk.MonteCarlo:
			e, err = calc.MonteCarlo(randx.New(a.cfg.Simulation.Seed), in.Returns, in.PortfolioValue, in.HorizonDays, vc.Simulations)
		default:
			err = apperr.Invalid("unknown VaR method %q", m)
		}
		if err != nil {
			return err
		}
		estimates = append(estimates, e)
	}

	logger.Section("Value at Risk")
	for _, e := range estimates {
		logger.Stats(string(e.Method), fmt.Sprintf("VaR %s  ES %s", e.VaR.StringFixed(2), e.ExpectedShortfall.StringFixed(2)))
	}

	return a.emit(struct {
		Estimates []*risk.Estimate `json:"estimates"`
		Tail      risk.TailRisk    `json:"tail_risk"`
	}{estimates, risk.SummarizeTail(in.Returns)})
}

func (a *app) presets(args []string) error {
	if len(args) == 0 {
		return apperr.Invalid("presets needs list, show or delete")
	}
	switch args[0] {
	case "list":
		var kind db.PresetKind
		if len(args) > 1 {
			kind = db.PresetKind(args[1])
		}
		list, err := a.store.ListPresets(kind)
		if err != nil {
			return err
		}
		return a.emit(list)
	case "show", "delete":
		if len(args) != 2 {
			return apperr.Invalid("presets %s needs a name", args[0])
		}
		if args[0] == "delete" {
			if err := a.store.DeletePreset(args[1]); err != nil {
				return err
			}
			logger.Success("DB", fmt.Sprintf("Deleted preset %s", args[1]))
			return nil
		}
		p, err := a.store.GetPreset(args[1])
		if err != nil {
			return err
		}
		return a.emit(p)
	}
	return apperr.Invalid("unknown presets action %q", args[0])
}

func (a *app) config(args []string) error {
	action := "show"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "show":
		return a.emit(a.cfg)
	case "set":
		if len(args) != 3 {
			return apperr.Invalid("config set needs <key> <value>")
		}
		key := strings.ToLower(args[1])
		if err := a.store.SetConfigValue(key, args[2]); err != nil {
			return err
		}
		logger.Success("CFG", fmt.Sprintf("%s = %s", key, args[2]))
		return nil
	case "save":
		if err := a.store.SaveConfig(a.cfg); err != nil {
			return err
		}
		logger.Success("CFG", "Effective configuration persisted")
		return nil
	case "reset":
		if err := a.store.ResetConfig(); err != nil {
			return err
		}
		logger.Success("CFG", "Persisted overrides cleared")
		return nil
	}
	return apperr.Invalid("unknown config action %q", action)
}
