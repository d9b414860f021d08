package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"appforge/internal/factory"
	"appforge/internal/preview"
	"appforge/pkg/config"
	"appforge/pkg/eventlog"
	"appforge/pkg/metrics"
	"appforge/pkg/orchestrator"
)

type runOptions struct {
	provider       string
	model          string
	sandboxRoot    string
	metricsOut     string
	eventLogDir    string
	maxInvocations int
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [prompt...]",
		Short: "Generate a project from a request",
		Long: `Generate a project from a request.

The prompt is taken from the arguments. Without arguments it is read
interactively from a terminal, or in full from piped stdin.

Examples:
  appforge run "Build a simple hello world page"
  echo "A todo list with local storage" | appforge run --sandbox ./todo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(a.cfg); err != nil {
				return err
			}
			prompt, err := readPrompt(args, a.stdin, a.stdout, a.isTerminal())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, prompt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider (anthropic, openai, google, ollama)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model name")
	cmd.Flags().StringVarP(&opts.sandboxRoot, "sandbox", "s", "", "Directory the project is generated into")
	cmd.Flags().IntVar(&opts.maxInvocations, "max-invocations", 0, "Upper bound on node invocations for the run")
	cmd.Flags().StringVar(&opts.metricsOut, "metrics-out", "", "Write run metrics in Prometheus text format to this file")
	cmd.Flags().StringVar(&opts.eventLogDir, "event-log", "", "Journal node invocations as JSONL into this directory")
	return cmd
}

// apply layers command-line flags over cfg.
func (o *runOptions) apply(cfg *config.Config) error {
	if o.provider != "" {
		cfg.LLM.Provider = strings.ToLower(o.provider)
		if o.model == "" {
			cfg.LLM.Model = config.DefaultModels[cfg.LLM.Provider]
		}
		if cfg.LLM.Provider == config.ProviderOllama && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = config.DefaultOllamaHost
		}
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	if o.sandboxRoot != "" {
		cfg.Sandbox.Root = o.sandboxRoot
	}
	if o.maxInvocations != 0 {
		cfg.Orchestrator.MaxInvocations = o.maxInvocations
	}
	return cfg.Validate()
}

// readPrompt returns the request from args, an interactive line, or all of stdin.
func readPrompt(args []string, in io.Reader, out io.Writer, interactive bool) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		return prompt, nil
	}

	if interactive {
		fmt.Fprint(out, color.CyanString("Describe the app to build: "))
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = strings.TrimSpace(line)
	} else {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}

func (a *app) run(ctx context.Context, prompt string, opts *runOptions) error {
	cfg := a.cfg
	observers := []func(orchestrator.Event){
		func(e orchestrator.Event) { printTransition(a.stdout, e) },
	}
	if opts.eventLogDir != "" {
		journal, err := eventlog.NewWriter(opts.eventLogDir)
		if err != nil {
			return err
		}
		defer journal.Close()
		observers = append(observers, journal.Observe(func(err error) {
			fmt.Fprintf(os.Stderr, "event log: %v\n", err)
		}))
	}

	pipeline, err := factory.NewPipeline(cfg, factory.Options{
		Client: a.client,
		OnTransition: func(e orchestrator.Event) {
			for _, observe := range observers {
				observe(e)
			}
		},
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv, err := preview.NewServer(pipeline.Store, pipeline.Registry)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(cfg.Metrics.Address); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintf(a.stdout, "%s %s with %s/%s\n", color.CyanString("▶"), prompt, cfg.LLM.Provider, cfg.LLM.Model)
	state, runErr := pipeline.Orchestrator.Run(ctx, orchestrator.Input{UserPrompt: prompt}, cfg.Orchestrator.MaxInvocations)

	files, _ := pipeline.Store.List()
	summary, err := metrics.Summarize(pipeline.Registry)
	if err != nil {
		return err
	}
	root, _ := pipeline.Store.Root()
	printSummary(a.stdout, state, root, files, summary, runErr)

	if opts.metricsOut != "" {
		if err := writeMetrics(opts.metricsOut, pipeline); err != nil {
			return err
		}
	}
	return runErr
}

func writeMetrics(path string, p *factory.Pipeline) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer f.Close()
	return metrics.WriteText(f, p.Registry)
}
