// Package cli defines the docbot command tree. Every command operates on
// one repository, selected with --repo (default: the current directory).
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docbot-dev/docbot/pkg/config"
	"github.com/docbot-dev/docbot/pkg/llm"
	"github.com/docbot-dev/docbot/pkg/version"
)

// NewRootCmd assembles the full command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docbot",
		Short:         "Generate living documentation for a repository",
		Long:          "docbot scans a repository, partitions it into documentation scopes,\nexplores each scope with deterministic extractors and LLM-backed agents,\nand renders a browsable markdown index under .docbot/docs.",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("repo", ".", "repository to document")

	root.AddCommand(
		newInitCmd(),
		newGenerateCmd(),
		newUpdateCmd(),
		newServeCmd(),
		newHistoryCmd(),
		newDiffCmd(),
		newSearchCmd(),
	)
	return root
}

// repoRoot resolves the --repo flag to an absolute path and verifies it is
// a directory.
func repoRoot(cmd *cobra.Command) (string, error) {
	repo, err := cmd.Flags().GetString("repo")
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return "", fmt.Errorf("resolve repo path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("repo path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repo path %s is not a directory", abs)
	}
	return abs, nil
}

// newClient builds the LLM client the run should use.
func newClient(cfg *config.Config) llm.Client {
	if cfg.NoLLM || cfg.APIKey == "" {
		return llm.NewNoop()
	}
	return llm.NewOpenRouter(llm.OpenRouterConfig{
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		MaxConcurrency: cfg.LLMMaxConcurrency,
	})
}
