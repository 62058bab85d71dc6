package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/spf13/viper"
)

// Reference table backends.
const (
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

// Config is the resolved application configuration.
type Config struct {
	Reference  ReferenceConfig
	Database   DatabaseConfig
	Input      InputConfig
	Server     ServerConfig
	Matching   MatchingConfig
	Clustering ClusteringConfig
	Learning   LearningConfig
}

// ReferenceConfig locates the normalization table.
type ReferenceConfig struct {
	Backend       string
	Path          string
	Sheet         string
	VariantColumn string
	BaseColumn    string
	Fallbacks     []string
	CacheTTL      time.Duration
}

// DatabaseConfig configures the SQLite backend.
type DatabaseConfig struct {
	Path string
}

// InputConfig names the invoice workbook columns.
type InputConfig struct {
	Sheet             string
	DescriptionColumn string
	QuantityColumn    string
	PriceColumn       string
	SubtotalColumn    string
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr string
}

// MatchingConfig configures the reference matcher.
type MatchingConfig struct {
	Scorer    string
	Threshold float64
}

// ClusteringConfig configures the cascading clusterer.
type ClusteringConfig struct {
	Thresholds model.ThresholdSet
}

// LearningConfig configures the auto-learning pass.
type LearningConfig struct {
	Threshold  float64
	Enabled    bool
	Checkpoint bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("reference.backend", BackendXLSX)
	v.SetDefault("reference.path", "")
	v.SetDefault("reference.fallbacks", []string{
		"tabla_normalizacion.xlsx",
		"../tabla_normalizacion.xlsx",
		"~/.config/prodnorm/tabla_normalizacion.xlsx",
	})
	v.SetDefault("reference.sheet", "")
	v.SetDefault("reference.variant_column", reftable.DefaultVariantColumn)
	v.SetDefault("reference.base_column", reftable.DefaultBaseColumn)
	v.SetDefault("reference.cache_ttl", reftable.DefaultCacheTTL)

	v.SetDefault("database.path", "~/.local/share/prodnorm/reference.db")

	v.SetDefault("matching.threshold", 75)
	v.SetDefault("matching.scorer", "token_sort")
	v.SetDefault("learning.enabled", false)
	v.SetDefault("learning.threshold", 80)
	v.SetDefault("learning.checkpoint", true)
	v.SetDefault("clustering.thresholds", []int(model.DefaultThresholds))

	v.SetDefault("input.sheet", "")
	v.SetDefault("input.description_column", "Descripcion")
	v.SetDefault("input.quantity_column", "Cantidad")
	v.SetDefault("input.price_column", "Precio_Unitario")
	v.SetDefault("input.subtotal_column", "Subtotal")

	v.SetDefault("server.addr", ":8080")
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	thresholds, err := intSlice(v, "clustering.thresholds")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Reference: ReferenceConfig{
			Backend:       v.GetString("reference.backend"),
			Path:          ExpandPath(v.GetString("reference.path")),
			Fallbacks:     v.GetStringSlice("reference.fallbacks"),
			Sheet:         v.GetString("reference.sheet"),
			VariantColumn: v.GetString("reference.variant_column"),
			BaseColumn:    v.GetString("reference.base_column"),
			CacheTTL:      v.GetDuration("reference.cache_ttl"),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Matching: MatchingConfig{
			Threshold: v.GetFloat64("matching.threshold"),
			Scorer:    v.GetString("matching.scorer"),
		},
		Learning: LearningConfig{
			Enabled:    v.GetBool("learning.enabled"),
			Threshold:  v.GetFloat64("learning.threshold"),
			Checkpoint: v.GetBool("learning.checkpoint"),
		},
		Clustering: ClusteringConfig{
			Thresholds: thresholds,
		},
		Input: InputConfig{
			Sheet:             v.GetString("input.sheet"),
			DescriptionColumn: v.GetString("input.description_column"),
			QuantityColumn:    v.GetString("input.quantity_column"),
			PriceColumn:       v.GetString("input.price_column"),
			SubtotalColumn:    v.GetString("input.subtotal_column"),
		},
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Reference.Backend {
	case BackendXLSX, BackendSQLite, BackendSheets:
	default:
		return fmt.Errorf("%w: unknown reference backend %q", common.ErrInvalidConfig, c.Reference.Backend)
	}
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 100 {
		return fmt.Errorf("%w: matching threshold %.1f out of range", common.ErrInvalidConfig, c.Matching.Threshold)
	}
	if c.Learning.Threshold < 0 || c.Learning.Threshold > 100 {
		return fmt.Errorf("%w: learning threshold %.1f out of range", common.ErrInvalidConfig, c.Learning.Threshold)
	}
	if err := c.Clustering.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if c.Input.DescriptionColumn == "" {
		return fmt.Errorf("%w: input description column is required", common.ErrInvalidConfig)
	}
	return nil
}

// ReferenceCandidates lists the table locations to try, the explicit path first.
func (c *Config) ReferenceCandidates() []string {
	candidates := make([]string, 0, len(c.Reference.Fallbacks)+1)
	if c.Reference.Path != "" {
		candidates = append(candidates, c.Reference.Path)
	}
	return append(candidates, c.Reference.Fallbacks...)
}

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or PRODNORM_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig(v *viper.Viper, ref ReferenceConfig) (*reftable.SheetsConfig, error) {
	config := reftable.DefaultSheetsConfig()

	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = ExpandPath(s)
	}
	config.ClientID = v.GetString("sheets.client_id")
	config.ClientSecret = v.GetString("sheets.client_secret")
	config.RefreshToken = v.GetString("sheets.refresh_token")
	config.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	if ref.Sheet != "" {
		config.SheetName = ref.Sheet
	}
	if ref.VariantColumn != "" {
		config.VariantColumn = ref.VariantColumn
	}
	if ref.BaseColumn != "" {
		config.BaseColumn = ref.BaseColumn
	}

	// Override with direct environment variables if not set
	if config.ServiceAccountPath == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); s != "" {
			config.ServiceAccountPath = ExpandPath(s)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.SpreadsheetID == "" {
		config.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func intSlice(v *viper.Viper, key string) (model.ThresholdSet, error) {
	raw := v.Get(key)
	switch vals := raw.(type) {
	case []int:
		return model.ThresholdSet(append([]int(nil), vals...)), nil
	case model.ThresholdSet:
		return append(model.ThresholdSet(nil), vals...), nil
	case nil:
		return model.DefaultThresholds, nil
	}

	ints := v.GetIntSlice(key)
	if len(ints) == 0 {
		return nil, fmt.Errorf("%w: %s must be a list of integers", common.ErrInvalidConfig, key)
	}
	return model.ThresholdSet(ints), nil
}
