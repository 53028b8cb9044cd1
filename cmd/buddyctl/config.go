package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/internal/logging"
)

// envPrefix namespaces environment overrides: pool.size -> BUDDYCTL_POOL_SIZE.
const envPrefix = "BUDDYCTL"

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"size":          "pool.size",
	"min-order":     "pool.min_order",
	"max-order":     "pool.max_order",
	"default-order": "pool.default_order",
	"log-level":     "log.level",
	"log-file":      "log.file",
	"log-json":      "log.json",
}

var settings = newSettings()

// cliConfig is the merged view of flags, environment and config file.
type cliConfig struct {
	Pool poolConfig `mapstructure:"pool"`
	Log  logConfig  `mapstructure:"log"`
}

type poolConfig struct {
	Size         uint64 `mapstructure:"size"`
	MinOrder     uint   `mapstructure:"min_order"`
	MaxOrder     uint   `mapstructure:"max_order"`
	DefaultOrder uint   `mapstructure:"default_order"`
}

type logConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetDefault("pool.size", uint64(0))
	v.SetDefault("pool.min_order", buddy.DefaultConfig.MinOrder)
	v.SetDefault("pool.max_order", buddy.DefaultConfig.MaxOrder)
	v.SetDefault("pool.default_order", buddy.DefaultConfig.DefaultOrder)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags binds the persistent flags of rootCmd into v. Flags only override
// other sources when set on the command line.
func bindFlags(v *viper.Viper) {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

// loadConfig reads the config file, if any, and decodes the merged settings.
func loadConfig(v *viper.Viper, file string) (cliConfig, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cliConfig{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (c cliConfig) buddyConfig() buddy.Config {
	return buddy.Config{
		MinOrder:     c.Pool.MinOrder,
		MaxOrder:     c.Pool.MaxOrder,
		DefaultOrder: c.Pool.DefaultOrder,
	}
}

func (c cliConfig) logger() (*zap.Logger, error) {
	level := c.Log.Level
	if verbose && level == "warn" {
		level = "info"
	}
	return logging.New(logging.Options{
		Enabled: true,
		Level:   level,
		JSON:    c.Log.JSON,
		File:    c.Log.File,
	})
}

// setup loads the configuration and creates a pool with its logger. A pool
// whose region cannot be acquired is fatal: nothing else can run.
func setup() (*buddy.Pool, *zap.Logger, error) {
	cfg, err := loadConfig(settings, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := cfg.logger()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log config: %w", err)
	}

	printVerbose("Creating pool: size hint %d, orders [%d, %d]\n",
		cfg.Pool.Size, cfg.Pool.MinOrder, cfg.Pool.MaxOrder)
	p, err := buddy.New(cfg.Pool.Size, buddy.WithConfig(cfg.buddyConfig()), buddy.WithLogger(log))
	if errors.Is(err, buddy.ErrRegionAcquire) {
		log.Fatal("cannot acquire pool region", zap.Error(err))
	}
	if err != nil {
		return nil, nil, err
	}
	return p, log, nil
}
