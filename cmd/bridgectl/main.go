package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/internal/config"
	"github.com/wippyai/hostbridge/internal/demo"
	"github.com/wippyai/hostbridge/leakcheck"
	"github.com/wippyai/hostbridge/roots"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to TOML config file")
		wasmFile    = flag.String("wasm", "", "Path to a guest wasm module")
		witFile     = flag.String("wit", "", "Path to the guest's WIT function declarations")
		guestName   = flag.String("name", "ext", "Module name for -wasm exports")
		funcName    = flag.String("call", "", "Native function to call; arguments follow as literals")
		list        = flag.Bool("list", false, "List registered natives and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		gcEvery     = flag.Int("gc-every", 0, "Collect after this many allocations (overrides config)")
		checkLeaks  = flag.Bool("check", false, "Report root and heap leaks around each call")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *gcEvery > 0 {
		cfg.Heap.CollectEvery = *gcEvery
	}
	if *checkLeaks {
		cfg.CheckLeaks = true
	}
	if *wasmFile != "" {
		if *witFile == "" {
			fmt.Fprintln(os.Stderr, "Error: -wasm requires -wit")
			os.Exit(1)
		}
		cfg.Guest.Modules = append(cfg.Guest.Modules, config.ModuleConfig{Name: *guestName, Path: *wasmFile, WIT: *witFile})
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *funcName == "" && !*list && !*interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Usage: bridgectl [-config file.toml] -call <name> [args...]")
			fmt.Fprintln(os.Stderr, "       bridgectl [-wasm m.wasm -wit m.wit] -list")
			fmt.Fprintln(os.Stderr, "       bridgectl -i  (interactive mode)")
			os.Exit(1)
		}
		*interactive = true
	}

	if err := run(cfg, *funcName, flag.Args(), *list, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogging(cfg config.Config) (*zap.Logger, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	host.SetLogger(logger.Named("host"))
	roots.SetLogger(logger.Named("roots"))
	bridge.SetLogger(logger.Named("bridge"))
	guest.SetLogger(logger.Named("guest"))
	leakcheck.SetLogger(logger.Named("leakcheck"))
	return logger, nil
}

func newEnv(ctx context.Context, cfg config.Config) (*demo.Env, error) {
	env, err := demo.NewEnv(ctx, demo.Options{
		CollectEvery:     cfg.Heap.CollectEvery,
		MemoryLimitPages: cfg.Guest.MemoryLimitPages,
		Guest:            cfg.Guest.Demo,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range cfg.Guest.Modules {
		if err := loadModule(ctx, env, m); err != nil {
			return nil, multierr.Append(fmt.Errorf("load guest %s: %w", m.Name, err), env.Close(ctx))
		}
	}
	return env, nil
}

func loadModule(ctx context.Context, env *demo.Env, m config.ModuleConfig) error {
	wasm, err := os.ReadFile(m.Path)
	if err != nil {
		return fmt.Errorf("read wasm: %w", err)
	}
	witText, err := os.ReadFile(m.WIT)
	if err != nil {
		return fmt.Errorf("read wit: %w", err)
	}
	return env.LoadGuest(ctx, m.Name, wasm, string(witText))
}

func run(cfg config.Config, funcName string, args []string, listOnly, interactive bool) (err error) {
	ctx := context.Background()

	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	env, err := newEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, env.Close(ctx)) }()

	if interactive {
		return runInteractive(ctx, env, cfg.CheckLeaks)
	}

	if listOnly {
		fmt.Printf("Registered natives: %d\n\n", env.Registry.Len())
		for _, name := range env.Registry.Names() {
			fn, _ := env.Registry.Lookup(name)
			fmt.Printf("  %s\n", fn.Signature())
		}
		if funcName == "" {
			return nil
		}
		fmt.Println()
	}

	result, err := call(ctx, env, funcName, args, cfg.CheckLeaks)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("%s(%s) = %s\n", funcName, strings.Join(args, ", "), result)
	return nil
}

// call invokes funcName, optionally under the leak checker. Leaks are
// returned alongside a successful result.
func call(ctx context.Context, env *demo.Env, funcName string, args []string, checkLeaks bool) (string, error) {
	if !checkLeaks {
		return env.Invoke(ctx, funcName, args)
	}
	var result string
	err := env.Checker().Run(func() error {
		var err error
		result, err = env.Invoke(ctx, funcName, args)
		return err
	})
	return result, err
}
