package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/databroker/builtin"
	"github.com/wippyai/databroker/config"
	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/option"
	"github.com/wippyai/databroker/resource"
	"github.com/wippyai/databroker/session"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML configuration")
		list        = flag.Bool("list", false, "List available modules and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		metrics     = flag.Bool("metrics", false, "Log module call metrics on exit")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: broker [-config file] <module> [args...]")
		fmt.Fprintln(os.Stderr, "       broker -list")
		fmt.Fprintln(os.Stderr, "       broker -i  (interactive mode)")
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(*configFile, *list, *interactive, *metrics, flag.Args()))
}

func run(configFile string, list, interactive, showMetrics bool, argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := newLogger(cfg.Log)
	defer log.Sync()
	session.SetLogger(log)
	module.SetLogger(log)

	promReg := prometheus.NewRegistry()
	m, err := module.NewMetrics(promReg)
	if err != nil {
		log.Error("metrics", zap.Error(err))
		return 1
	}

	reg := module.NewRegistry(
		module.WithSearchPath(cfg.Modules.SearchPath...),
		module.WithMetrics(m),
		module.WithWASMConfig(module.WASMConfig{MemoryLimitPages: cfg.Modules.MemoryLimitPages}),
	)
	defer reg.Close(ctx)

	if err := builtin.Register(reg); err != nil {
		log.Error("register builtin modules", zap.Error(err))
		return 1
	}
	if err := preload(ctx, reg, cfg.Modules.Preload, log); err != nil {
		log.Error("preload", zap.Error(err))
		return 1
	}

	if list {
		for _, d := range reg.List() {
			fmt.Printf("%-12s %s\n", d.Name, d.Purpose)
		}
		return 0
	}

	s, err := session.New(cfg.Session.Name,
		session.WithModules(reg),
		session.WithPad(cfg.Session.Pad),
		session.WithFlags(session.FlagLogErrors),
		session.WithRecordOptions(cfg.Records.Options()),
	)
	if err != nil {
		log.Error("create session", zap.Error(err))
		return 1
	}
	defer s.Close()

	if showMetrics {
		defer logMetrics(log, promReg)
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			log.Error("interactive mode needs a terminal")
			return 1
		}
		if err := runInteractive(ctx, s); err != nil {
			log.Error("interactive", zap.Error(err))
			return 1
		}
		return 0
	}

	if len(argv) == 0 {
		flag.Usage()
		return 1
	}
	status, err := call(ctx, s, argv[0], argv[1:])
	if err != nil {
		log.Error("call", zap.String("module", argv[0]), zap.Error(err))
		return 1
	}
	return status
}

func newLogger(c config.LogConfig) *zap.Logger {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.ZapLevel())
	zc.OutputPaths = []string{"stderr"}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	log, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// preload loads configured .wasm files and directories of them.
func preload(ctx context.Context, reg *module.Registry, paths []string, log *zap.Logger) error {
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			n, err := reg.LoadDir(ctx, p)
			if err != nil {
				return err
			}
			log.Debug("loaded module directory", zap.String("dir", p), zap.Int("modules", n))
			continue
		}
		if err := reg.LoadWASM(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// call runs one module from the command line. Standard input and output
// stand in for a missing input or output when the module takes one.
func call(ctx context.Context, s *session.Session, name string, args []string) (int, error) {
	opts, err := option.Parse(args)
	if err != nil {
		return module.StatusDispatch, err
	}
	d, err := s.Modules().Lookup(ctx, name)
	if err != nil {
		return module.StatusDispatch, err
	}

	if k, ok := d.KeyFor(option.FlagInput); ok && !hasFlag(opts, option.FlagInput) && !isatty.IsTerminal(os.Stdin.Fd()) {
		tok, err := stdio(s, k, os.Stdin)
		if err != nil {
			return module.StatusDispatch, err
		}
		opts, _ = opts.Append(option.Make(option.FlagInput, tok))
	}
	if k, ok := d.KeyFor(option.FlagOutput); ok && !hasFlag(opts, option.FlagOutput) {
		tok, err := stdio(s, k, os.Stdout)
		if err != nil {
			return module.StatusDispatch, err
		}
		opts, _ = opts.Append(option.Make(option.FlagOutput, tok))
	}
	return s.CallModule(ctx, name, module.ModeRun, opts)
}

// stdio registers a borrowed standard stream for key and returns its token.
func stdio(s *session.Session, k module.Key, f *os.File) (string, error) {
	id, err := s.Register(resource.Spec{
		Family:    k.Family,
		Direction: k.Direction,
		Method:    resource.MethodStream,
		Stream:    f,
	})
	if err != nil {
		return "", err
	}
	return s.EncodeToken(id)
}

func hasFlag(l option.List, flag byte) bool {
	_, _, ok := l.Find(flag)
	return ok
}

func logMetrics(log *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fields := []zap.Field{zap.String("metric", mf.GetName()), zap.String("labels", strings.Join(labels, ","))}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				fields = append(fields, zap.Float64("value", m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fields = append(fields, zap.Uint64("count", h.GetSampleCount()), zap.Float64("sum", h.GetSampleSum()))
			}
			log.Info("metric", fields...)
		}
	}
}
