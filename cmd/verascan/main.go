package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/verascan/internal/log"
	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/report"
	"github.com/CZERTAINLY/verascan/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath string // value of --config flag or VERASCAN_CONFIG
	config     model.Config
)

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file to load")
	rootCmd.PersistentFlags().BoolP("verbose", "d", false, "verbose logging")
	registerFlags(rootCmd.PersistentFlags())

	// errors are printed by main
	rootCmd.SilenceErrors = true

	rootCmd.PersistentPreRunE = initVerascan

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exitErr *report.ExitError
	if errors.As(err, &exitErr) {
		report.Print(os.Stdout, exitErr.Payload)
		os.Exit(exitErr.Code)
	}
	slog.Error("verascan failed", "error", err)
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:          "verascan",
	Short:        "Runs Veracode static and composition analysis scans of a build",
	SilenceUsage: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "packages the source, prepares the application profile and runs the scans",
	RunE:  doScan,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "prints the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(config.Masked()); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return enc.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of verascan",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("verascan: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:   %s\n", configPath)
		}
		fmt.Printf("verascan: %s\n", info.Main.Version)
		fmt.Printf("go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:   %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:     %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:    %s\n", s.Value)
			}
		}
	},
}

func doScan(cmd *cobra.Command, _ []string) error {
	attrs := slog.Group("verascan",
		slog.String("cmd", "scan"),
		slog.Int("pid", os.Getpid()),
	)
	ctx := log.ContextAttrs(cmd.Context(), attrs)
	return service.Run(ctx, config, os.Stdout)
}

func initVerascan(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("VERASCAN_CONFIG"); ok && configPath == "" {
		configPath = envConfig
	}

	v, err := newViper(cmd.Flags(), configPath)
	if err != nil {
		return err
	}
	config, err = model.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	slog.SetDefault(log.New(config.Verbose, os.Stderr))
	slog.Debug("verascan run", "configPath", configPath)
	slog.Debug("verascan run", "config", config.Masked())
	return nil
}
