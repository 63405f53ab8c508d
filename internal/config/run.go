package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunConfig holds configuration for the run command, loaded from flags, env,
// or config file.
type RunConfig struct {
	Ops           string
	Out           string
	Errors        string
	Checkpoint    string
	PGDSN         string
	FeeCeilingBps uint16
	LogLevel      string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("errors", "./data/errors.jsonl")
	v.SetDefault("fee-ceiling-bps", 10000)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return RunConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return RunConfig{}, err
	}

	ceiling := v.GetUint32("fee-ceiling-bps")
	if ceiling > 10000 {
		return RunConfig{}, fmt.Errorf("fee-ceiling-bps %d exceeds 10000", ceiling)
	}

	cfg := RunConfig{
		Ops:           v.GetString("ops"),
		Out:           v.GetString("out"),
		Errors:        v.GetString("errors"),
		Checkpoint:    v.GetString("checkpoint"),
		PGDSN:         v.GetString("pg-dsn"),
		FeeCeilingBps: uint16(ceiling),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
