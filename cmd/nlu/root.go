package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nludevops/internal/config"
)

type app struct {
	v            *viper.Viper
	settingsPath string
	stdout       io.Writer
	stderr       io.Writer
}

func (a *app) loadConfig() (config.Config, error) {
	return config.Load(a.v, a.settingsPath)
}

func (a *app) logger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New(), stdout: os.Stdout, stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "nlu",
		Short:         "Test NLU models against a prediction endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
		},
	}

	root.PersistentFlags().StringVarP(&a.settingsPath, "service-settings", "s", "", "path to a JSON or YAML settings file")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = a.v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))

	root.AddCommand(newTestCmd(a), newNormalizeCmd(a))
	return root
}
