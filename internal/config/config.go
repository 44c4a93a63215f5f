package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"dmastore/internal/common"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// EnvPrefix is the prefix for environment overrides, e.g. DMASTORE_BUILD_OUTPUT_PATH
const EnvPrefix = "DMASTORE"

func GetConfigPath() string {
	if configPath := os.Getenv("DMASTORE_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dmastore")
}

func GetConfigFile() string {
	if configFile := os.Getenv("DMASTORE_CONFIG"); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	schema := models.DefaultSchema()

	// Keys must be known to viper for env overrides to reach Unmarshal
	for _, key := range []string{
		"build.facts_path", "build.rules_path", "build.geo_path", "build.output_path",
		"suppression.candidates_path", "suppression.output_path",
		"cubes.win_mover", "cubes.loss_mover", "cubes.win_non_mover", "cubes.loss_non_mover",
		"analysis.store_path", "engine.database", "engine.memory_limit", "storage.aws_profile",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("engine.threads", 0)
	v.SetDefault("build.overwrite", true)
	v.SetDefault("suppression.top_n", 10)
	v.SetDefault("suppression.require_candidates", false)
	v.SetDefault("analysis.window", 28)
	v.SetDefault("analysis.z_threshold", 3.0)

	v.SetDefault("schema.facts.date", schema.Facts.Date)
	v.SetDefault("schema.facts.ds", schema.Facts.DS)
	v.SetDefault("schema.facts.mover_ind", schema.Facts.MoverInd)
	v.SetDefault("schema.facts.winner_group", schema.Facts.WinnerGroup)
	v.SetDefault("schema.facts.loser_group", schema.Facts.LoserGroup)
	v.SetDefault("schema.facts.census_block", schema.Facts.CensusBlock)
	v.SetDefault("schema.facts.wins", schema.Facts.Wins)
	v.SetDefault("schema.rules.group", schema.Rules.Group)
	v.SetDefault("schema.rules.name", schema.Rules.Name)
	v.SetDefault("schema.geo.census_block", schema.Geo.CensusBlock)
	v.SetDefault("schema.geo.dma", schema.Geo.DMA)
	v.SetDefault("schema.geo.dma_name", schema.Geo.DMAName)
	v.SetDefault("schema.geo.state", schema.Geo.State)
	v.SetDefault("schema.units.date", schema.Units.Date)
	v.SetDefault("schema.units.dma_name", schema.Units.DMAName)
	v.SetDefault("schema.units.state", schema.Units.State)
	v.SetDefault("schema.units.census_block", schema.Units.CensusBlock)

	v.SetDefault("engine.timeout", "2h")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(GetConfigPath(), "history.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Setup prepares v to read the config file and environment overrides.
// An explicit file wins over DMASTORE_CONFIG and the default location.
func Setup(v *viper.Viper, explicitFile string) {
	SetDefaults(v)

	v.SetConfigType("yaml")
	if explicitFile != "" {
		v.SetConfigFile(common.ExpandHome(explicitFile))
	} else {
		v.SetConfigFile(GetConfigFile())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration file (if any) into a Config.
// A missing file is not an error; defaults and overrides still apply.
func Load(v *viper.Viper) (*models.Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read configuration").
				WithContext("file", v.ConfigFileUsed())
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}
	cfg.Schema = cfg.Schema.WithDefaults()
	if cfg.Analysis.StorePath == "" {
		cfg.Analysis.StorePath = cfg.Build.OutputPath
	}
	cfg.History.Path = common.ExpandHome(cfg.History.Path)

	return &cfg, nil
}

// RequireFile fails with ErrCodeConfigNotFound when path does not exist.
// Used for files named explicitly, which must not silently fall back to
// defaults.
func RequireFile(path string) error {
	path = common.ExpandHome(path)
	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.New(errors.ErrCodeConfigNotFound, "Configuration file not found").
				WithContext("file", path).
				WithSuggestions(
					"Check the --config path",
					"Run 'dmastore init --config "+path+"' to create it",
				)
		}
		return errors.FileSystemError("Failed to read configuration", path, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if stderrors.As(err, &notFound) {
		return true
	}
	// SetConfigFile with a missing path surfaces the os error instead
	return stderrors.Is(err, fs.ErrNotExist)
}

// Save writes cfg as YAML to path, creating the parent directory
func Save(cfg *models.Config, path string) error {
	if path == "" {
		path = GetConfigFile()
	}
	path = common.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether a config file exists at path, or at the default
// location when path is empty
func Exists(path string) bool {
	if path == "" {
		path = GetConfigFile()
	}
	_, err := os.Stat(common.ExpandHome(path))
	return err == nil
}

// ValidateBuild checks the fields a store build needs
func ValidateBuild(b models.BuildConfig) error {
	required := []struct {
		field, value string
	}{
		{"build.facts_path", b.FactsPath},
		{"build.rules_path", b.RulesPath},
		{"build.geo_path", b.GeoPath},
		{"build.output_path", b.OutputPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.ConfigError(fmt.Sprintf("%s is required", r.field), r.field)
		}
	}
	return nil
}

// ValidateSuppression checks the fields a suppression run needs
func ValidateSuppression(s models.SuppressionConfig, c models.CubeConfig) error {
	if strings.TrimSpace(s.CandidatesPath) == "" {
		return errors.ConfigError("suppression.candidates_path is required", "suppression.candidates_path")
	}
	cubes := map[string]string{
		"cubes.win_mover":      c.WinMover,
		"cubes.loss_mover":     c.LossMover,
		"cubes.win_non_mover":  c.WinNonMover,
		"cubes.loss_non_mover": c.LossNonMover,
	}
	for _, field := range []string{"cubes.win_mover", "cubes.loss_mover", "cubes.win_non_mover", "cubes.loss_non_mover"} {
		if strings.TrimSpace(cubes[field]) == "" {
			return errors.ConfigError(fmt.Sprintf("%s is required", field), field)
		}
	}
	if s.TopN < 0 {
		return errors.ValidationError("suppression.top_n", s.TopN, "must not be negative")
	}
	return nil
}

// EngineTimeout parses engine.timeout, zero meaning no deadline
func EngineTimeout(e models.EngineConfig) (time.Duration, error) {
	if strings.TrimSpace(e.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, errors.ConfigError(fmt.Sprintf("engine.timeout %q is not a duration", e.Timeout), "engine.timeout")
	}
	return d, nil
}
