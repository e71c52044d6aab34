package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runConfig carries every knob a deliberation run needs. Values resolve in
// the usual precedence: flag > COUNCILMESH_* env var > councilmesh.yaml in
// the working directory > built-in default.
type runConfig struct {
	RosterPath   string
	OutputDir    string
	Provider     string
	Model        string
	Temperature  float64
	Seed         int64
	KnowledgeDir string
	Memory       bool
	Verbose      bool
}

func defaultRunConfig() runConfig {
	return runConfig{
		RosterPath:  "council.yaml",
		OutputDir:   "./output",
		Provider:    "openai",
		Temperature: 0.7,
		Memory:      true,
	}
}

// addRunFlags registers the shared deliberation flags on a command and binds
// them through viper so env vars and the config file can supply them too.
func addRunFlags(cmd *cobra.Command, cfg *runConfig) {
	def := defaultRunConfig()
	cmd.Flags().StringVar(&cfg.RosterPath, "roster", def.RosterPath, "path to the council roster YAML")
	cmd.Flags().StringVar(&cfg.OutputDir, "output", def.OutputDir, "directory for session reports")
	cmd.Flags().StringVar(&cfg.Provider, "provider", def.Provider, "model provider: openai, anthropic or mock")
	cmd.Flags().StringVar(&cfg.Model, "model", "", "model name (provider default if empty)")
	cmd.Flags().Float64Var(&cfg.Temperature, "temperature", def.Temperature, "generation temperature")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 0, "seed for the meeting-order permutation (0 = time-seeded)")
	cmd.Flags().StringVar(&cfg.KnowledgeDir, "knowledge", "", "directory of .md/.txt documents to index as background context")
	cmd.Flags().BoolVar(&cfg.Memory, "memory", def.Memory, "enable per-participant memory across runs in this invocation")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "debug-level logging")
}

// resolveRunConfig overlays config-file and environment values onto flags
// that were not set explicitly on the command line.
func resolveRunConfig(cmd *cobra.Command, cfg *runConfig) error {
	v := viper.New()
	v.SetConfigName("councilmesh")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("COUNCILMESH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	overlay := func(flag, key string, apply func()) {
		if !cmd.Flags().Changed(flag) && v.IsSet(key) {
			apply()
		}
	}
	overlay("roster", "roster", func() { cfg.RosterPath = v.GetString("roster") })
	overlay("output", "output", func() { cfg.OutputDir = v.GetString("output") })
	overlay("provider", "provider", func() { cfg.Provider = v.GetString("provider") })
	overlay("model", "model", func() { cfg.Model = v.GetString("model") })
	overlay("temperature", "temperature", func() { cfg.Temperature = v.GetFloat64("temperature") })
	overlay("seed", "seed", func() { cfg.Seed = v.GetInt64("seed") })
	overlay("knowledge", "knowledge", func() { cfg.KnowledgeDir = v.GetString("knowledge") })
	overlay("memory", "memory", func() { cfg.Memory = v.GetBool("memory") })
	overlay("verbose", "verbose", func() { cfg.Verbose = v.GetBool("verbose") })

	return nil
}
