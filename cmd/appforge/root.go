package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"appforge/pkg/config"
	"appforge/pkg/llm"
	"appforge/pkg/logx"
)

// app carries what the commands share. Tests replace the streams and client.
type app struct {
	stdin      io.Reader
	stdout     io.Writer
	isTerminal func() bool
	client     llm.LLMClient

	configPath string
	debug      bool
	cfg        *config.Config
}

func newApp() *app {
	return &app{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "appforge",
		Short: "Generate a small web project from a one-line request",
		Long: `appforge plans a project from a free-text request, decomposes the plan into
single-file steps and has a coding agent execute them one at a time inside a
sandbox directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.debug {
				logx.SetDebug(true)
			}
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.debug {
				cfg.Debug.LLMMessages = true
			}
			if len(cfg.Debug.Domains) > 0 {
				logx.SetDebugDomains(cfg.Debug.Domains)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetIn(a.stdin)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log every message sent to the model")

	root.AddCommand(newRunCmd(a), newPreviewCmd(a), newVersionCmd(a))
	return root
}
