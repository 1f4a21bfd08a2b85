package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DocbotDir is the per-repository directory holding config, state, docs and
// history. Its layout is a stable external contract.
const DocbotDir = ".docbot"

// ConfigFileName is the user-editable configuration file inside DocbotDir.
const ConfigFileName = "config.toml"

// Load reads .docbot/config.toml under repoRoot, layered with DOCBOT_*
// environment variables and defaults. A missing file is not an error; the
// defaults apply. The API key is resolved from the environment exactly once
// here; absence forces NoLLM.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigFile(filepath.Join(repoRoot, DocbotDir, ConfigFileName))
	v.SetConfigType("toml")
	v.SetEnvPrefix("DOCBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("No config file found, using defaults", "path", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIKey = os.Getenv(APIKeyEnv)
	if cfg.APIKey == "" && !cfg.NoLLM {
		slog.Warn("API key not set, disabling LLM enrichment", "env", APIKeyEnv)
		cfg.NoLLM = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("model", DefaultModel)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("timeout", DefaultTimeoutSeconds)
	v.SetDefault("max_scopes", DefaultMaxScopes)
	v.SetDefault("max_snapshots", DefaultMaxSnapshots)
	v.SetDefault("no_llm", false)
	v.SetDefault("agent_max_depth", DefaultAgentMaxDepth)
	v.SetDefault("agent_max_parallel", DefaultAgentMaxParallel)
	v.SetDefault("llm_max_concurrency", DefaultLLMConcurrency)
	v.SetDefault("agent_max_steps", DefaultAgentMaxSteps)
	v.SetDefault("ignore", []string{})
}

// defaultConfigTOML is written by `docbot init`.
const defaultConfigTOML = `# docbot configuration
# Values shown are the defaults; uncomment to override.

#model = "` + DefaultModel + `"
#concurrency = 4
#timeout = 120.0
#max_scopes = 20
#max_snapshots = 10
#no_llm = false
#agent_max_depth = 2
#agent_max_parallel = 8

# Extra ignore globs (doublestar syntax), e.g. ["**/generated/**"]
#ignore = []
`

// WriteDefault creates .docbot/ under repoRoot with a commented default
// config.toml. An existing config file is left untouched.
func WriteDefault(repoRoot string) (string, error) {
	dir := filepath.Join(repoRoot, DocbotDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", DocbotDir, err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(defaultConfigTOML), 0o644); err != nil {
		return "", fmt.Errorf("write default config: %w", err)
	}
	return path, nil
}
