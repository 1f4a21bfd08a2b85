package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docbot-dev/docbot/pkg/api"
	"github.com/docbot-dev/docbot/pkg/config"
	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/pipeline"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create .docbot/ with a default config.toml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := repoRoot(cmd)
			if err != nil {
				return err
			}
			path, err := config.WriteDefault(repo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", path)
			return nil
		},
	}
}

// runFlags are the generate/update overrides layered on top of config.toml.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-llm", false, "disable all LLM calls")
	cmd.Flags().Int("concurrency", 0, "concurrent scope explorations")
	cmd.Flags().Float64("timeout", 0, "per-scope timeout in seconds")
	cmd.Flags().Int("max-scopes", 0, "maximum number of documentation scopes")
	cmd.Flags().String("model", "", "LLM model identifier")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("no-llm") {
		cfg.NoLLM, _ = flags.GetBool("no-llm")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetFloat64("timeout")
	}
	if flags.Changed("max-scopes") {
		cfg.MaxScopes, _ = flags.GetInt("max-scopes")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	return cfg.Validate()
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full documentation pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, false)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-document only the scopes touched since the last run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, true)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func runPipeline(cmd *cobra.Command, incremental bool) error {
	repo, err := repoRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(repo)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	client := newClient(cfg)
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("Closing LLM client", "error", err)
		}
	}()

	bus := events.NewBus(1024)
	defer bus.Close()

	p := pipeline.New(repo, cfg, client, bus)
	var result *pipeline.Result
	if incremental {
		result, err = p.Update(cmd.Context())
	} else {
		result, err = p.Generate(cmd.Context())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, warning := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}
	fmt.Fprintf(out, "Run %s: %d files, %d scopes\n",
		result.RunID, result.FileCount, len(result.Index.Scopes))
	for i := range result.Index.Scopes {
		scope := &result.Index.Scopes[i]
		status := "ok"
		if scope.Failed() {
			status = scope.Error
		}
		fmt.Fprintf(out, "  %-20s %3d files  %s\n", scope.ScopeID, len(scope.Paths), status)
	}
	fmt.Fprintf(out, "Docs written to %s\n", config.DocbotDir+"/docs")
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated documentation over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := repoRoot(cmd)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")

			bus := events.NewBus(1024)
			defer bus.Close()

			srv, err := api.NewServer(repo, bus, nil)
			if err != nil {
				return err
			}
			slog.Info("Serving documentation", "addr", addr, "repo", repo)
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:7333", "listen address")
	return cmd
}
