package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"goa.design/clue/log"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		messageFlag  string
		modelFlag    string
		providerFlag string
		markdownFlag bool
		debugFlag    bool
		setupFlag    bool
		showVersion  bool
	)

	flag.StringVar(&messageFlag, "m", "", "Send a single message and exit")
	flag.StringVar(&messageFlag, "message", "", "Send a single message and exit")
	flag.StringVar(&modelFlag, "M", "", "Model name (model or provider/model)")
	flag.StringVar(&modelFlag, "model", "", "Model name (model or provider/model)")
	flag.StringVar(&providerFlag, "provider", "", "Provider entry from config")
	flag.BoolVar(&markdownFlag, "markdown", false, "Render answers as markdown")
	flag.BoolVar(&debugFlag, "debug", false, "Write debug logs")
	flag.BoolVar(&setupFlag, "setup", false, "Configure the API key and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("nanocode v%s\n", version)
		return 0
	}

	// Load config: defaults → user-wide → project → env → flags
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if markdownFlag {
		cfg.Markdown = true
	}

	ctx, closeLog, err := setupLogging(context.Background(), cfg.logDir(), debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer closeLog()

	registry := newProviderRegistry(cfg, os.Getenv)
	if modelFlag != "" {
		name, model := registry.Resolve(modelFlag, cfg.Provider)
		cfg.Provider = name
		cfg.SetModel(model)
		registry = newProviderRegistry(cfg, os.Getenv)
	}

	entry, ok := registry.Detect(cfg.Provider)
	if !ok || setupFlag {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: no API key configured (set ANTHROPIC_API_KEY or run with -setup)")
			return 1
		}
		if err := runSetup(&cfg, os.Stdin, os.Stdout, UserConfigPath()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if setupFlag {
			return 0
		}
		registry = newProviderRegistry(cfg, os.Getenv)
		if entry, ok = registry.Detect(cfg.Provider); !ok {
			fmt.Fprintln(os.Stderr, "Error: no API key configured")
			return 1
		}
	}

	provider, err := registry.Open(entry.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	pref, err := parseModelPreference(cfg.ModelPreference)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		pref = PreferOpus
	}
	catalog := NewModelCatalog(provider, modelsCachePath(defaultModelsCacheDir(), entry.Name))

	model := entry.Model
	if cfg.ValidateModel {
		lookupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		chosen, changed, err := selectModel(lookupCtx, catalog, model, pref)
		cancel()
		switch {
		case err != nil:
			log.Warn(ctx, log.KV{K: "msg", V: "model validation skipped"}, log.KV{K: "err", V: err.Error()})
		case changed:
			fmt.Fprintf(os.Stderr, "Auto-selected model: %s\n", chosen)
		default:
			fmt.Fprintf(os.Stderr, "Model validated: %s\n", chosen)
		}
		model = chosen
	}

	cwd, _ := os.Getwd()
	notesDir := filepath.Join(cwd, configDirName)

	color := term.IsTerminal(int(os.Stdout.Fd()))
	events := make(chan StreamEvent)
	renderer := NewRenderer(os.Stdout, cfg.Markdown, color, provider.MaxContext())
	go renderer.Run(events)
	defer close(events)

	session := NewSession(model)
	tools := NewToolRegistry(cfg.Tools, time.Duration(cfg.BashTimeout)*time.Second)
	agent := NewAgent(provider, tools, session, events, AgentOptions{
		Model:         model,
		MaxTokens:     cfg.MaxTokens,
		MaxRounds:     cfg.MaxRounds,
		ParallelTools: cfg.ParallelTools,
		SystemPrompt:  func() string { return systemPrompt(cwd, notesDir) },
	})

	app := &App{
		agent:    agent,
		registry: registry,
		catalog:  catalog,
		renderer: renderer,
		input:    NewLineReader(os.Stdin, os.Stdout),
		out:      os.Stdout,
		notesDir: notesDir,
		provider: entry.Name,
		pref:     pref,
	}

	log.Info(ctx, log.KV{K: "msg", V: "starting"}, log.KV{K: "session", V: session.ID}, log.KV{K: "provider", V: entry.Name}, log.KV{K: "model", V: model})

	message := messageFlag
	if message == "" && flag.NArg() > 0 {
		message = strings.Join(flag.Args(), " ")
	}
	if message != "" {
		if err := app.RunOnce(ctx, message); err != nil {
			return 1
		}
		return 0
	}

	fmt.Printf("nanocode %s | %s/%s | key %s | %s\n", version, entry.Name, model, entry.MaskedKey(), cwd)
	fmt.Println("Type /help for commands.")
	if err := app.RunInteractive(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
