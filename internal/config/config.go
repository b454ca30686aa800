// Package config loads the immutable parameter bundle threaded through
// every pipeline stage. Nothing in the analysis reads ambient state: all
// thresholds, bands, and weights live here with a single chosen default.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Alignment      AlignmentConfig      `yaml:"alignment" mapstructure:"alignment"`
	Detection      DetectionConfig      `yaml:"detection" mapstructure:"detection"`
	Buffering      BufferingConfig      `yaml:"buffering" mapstructure:"buffering"`
	Scoring        ScoringConfig        `yaml:"scoring" mapstructure:"scoring"`
	Classification ClassificationConfig `yaml:"classification" mapstructure:"classification"`
	Extraction     ExtractionConfig     `yaml:"extraction" mapstructure:"extraction"`
	Acquire        AcquireConfig        `yaml:"acquire" mapstructure:"acquire"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Batch          BatchConfig          `yaml:"batch" mapstructure:"batch"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Vision         VisionConfig         `yaml:"vision" mapstructure:"vision"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// AlignmentConfig holds the systematic offset correction between the
// vector dataset and the raster dataset.
type AlignmentConfig struct {
	// Scale is the uniform scale factor applied around the raster center.
	Scale float64 `yaml:"scale" mapstructure:"scale"`
	// OffsetNorthM and OffsetEastM translate aligned geometry in meters.
	OffsetNorthM float64 `yaml:"offset_north_m" mapstructure:"offset_north_m"`
	OffsetEastM  float64 `yaml:"offset_east_m" mapstructure:"offset_east_m"`
}

// DetectionConfig holds vegetation and shadow detection thresholds.
// Channel thresholds are on the 0-255 scale of the raw raster bytes.
type DetectionConfig struct {
	NDVIThreshold            float64 `yaml:"ndvi_threshold" mapstructure:"ndvi_threshold"`
	MinVegetationBrightness  float64 `yaml:"min_vegetation_brightness" mapstructure:"min_vegetation_brightness"`
	ShadowDarkThreshold      float64 `yaml:"shadow_dark_threshold" mapstructure:"shadow_dark_threshold"`
	ShadowDesaturationThresh float64 `yaml:"shadow_desaturation_threshold" mapstructure:"shadow_desaturation_threshold"`
	ShadowMinClusterPx       int     `yaml:"shadow_min_cluster_px" mapstructure:"shadow_min_cluster_px"`
	// ShadowBlurSigma smooths the continuous shadow intensity grid.
	ShadowBlurSigma float64 `yaml:"shadow_blur_sigma" mapstructure:"shadow_blur_sigma"`
}

// BufferingConfig holds per-tier street buffer distances in meters.
type BufferingConfig struct {
	PedestrianM float64 `yaml:"pedestrian_m" mapstructure:"pedestrian_m"`
	LowM        float64 `yaml:"low_m" mapstructure:"low_m"`
	MediumM     float64 `yaml:"medium_m" mapstructure:"medium_m"`
	HighM       float64 `yaml:"high_m" mapstructure:"high_m"`
	// SidewalkM buffers the pedestrian+low union into the sidewalk mask.
	SidewalkM float64 `yaml:"sidewalk_m" mapstructure:"sidewalk_m"`
}

// Band maps an upper bound on a banded quantity to a point value.
// Bands are evaluated in order; the first band whose UpTo exceeds the
// value wins, and values past the last band score zero.
type Band struct {
	UpTo   float64 `yaml:"up_to" mapstructure:"up_to"`
	Points float64 `yaml:"points" mapstructure:"points"`
}

// ScoringConfig holds per-component score bands and maximum weights.
type ScoringConfig struct {
	// SidewalkBands map sidewalk distance (meters) to points, closer is higher.
	SidewalkBands []Band `yaml:"sidewalk_bands" mapstructure:"sidewalk_bands"`
	// BuildingBands map building distance (meters) to points; the defaults
	// are non-monotonic with a cooling sweet spot in the middle range.
	BuildingBands []Band `yaml:"building_bands" mapstructure:"building_bands"`
	// SunBands map shadow intensity (0-1) to points, lower shadow is higher.
	SunBands []Band `yaml:"sun_bands" mapstructure:"sun_bands"`

	AmenityRadiusM float64 `yaml:"amenity_radius_m" mapstructure:"amenity_radius_m"`
	AmenityMaxPts  float64 `yaml:"amenity_max_points" mapstructure:"amenity_max_points"`
	SidewalkMaxPts float64 `yaml:"sidewalk_max_points" mapstructure:"sidewalk_max_points"`
	BuildingMaxPts float64 `yaml:"building_max_points" mapstructure:"building_max_points"`
	SunMaxPts      float64 `yaml:"sun_max_points" mapstructure:"sun_max_points"`
}

// MaxScore returns the top of the raw score range, the sum of the four
// component maximums.
func (s ScoringConfig) MaxScore() float64 {
	return s.SidewalkMaxPts + s.BuildingMaxPts + s.SunMaxPts + s.AmenityMaxPts
}

// ClassificationConfig holds the priority tier cutoffs.
type ClassificationConfig struct {
	CriticalCutoff float64 `yaml:"critical_cutoff" mapstructure:"critical_cutoff"`
	HighCutoff     float64 `yaml:"high_cutoff" mapstructure:"high_cutoff"`
	MediumCutoff   float64 `yaml:"medium_cutoff" mapstructure:"medium_cutoff"`
}

// ExtractionConfig configures critical spot extraction.
type ExtractionConfig struct {
	MinClusterPx int `yaml:"min_cluster_px" mapstructure:"min_cluster_px"`
}

// AcquireConfig configures the acquisition boundary clients.
type AcquireConfig struct {
	OverpassEndpoint  string  `yaml:"overpass_endpoint" mapstructure:"overpass_endpoint"`
	StaticMapEndpoint string  `yaml:"static_map_endpoint" mapstructure:"static_map_endpoint"`
	StaticMapKey      string  `yaml:"static_map_key" mapstructure:"static_map_key"`
	ImageSizePx       int     `yaml:"image_size_px" mapstructure:"image_size_px"`
	Zoom              int     `yaml:"zoom" mapstructure:"zoom"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec    float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch processing of independent locations.
type BatchConfig struct {
	MaxConcurrentLocations int `yaml:"max_concurrent_locations" mapstructure:"max_concurrent_locations"`
	LocationTimeoutSecs    int `yaml:"location_timeout_secs" mapstructure:"location_timeout_secs"`
}

// LocationTimeout returns the per-location run budget as a duration.
func (b BatchConfig) LocationTimeout() time.Duration {
	return time.Duration(b.LocationTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP analysis server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// VisionConfig configures the optional ground-vision spot evaluator.
type VisionConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	Model    string `yaml:"model" mapstructure:"model"`
	MaxSpots int    `yaml:"max_spots" mapstructure:"max_spots"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("canopy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CANOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.ApplyBandDefaults()

	return &cfg, nil
}

// setDefaults installs every recognized option's default. Source material
// for the regional calibration disagreed across revisions on a few of
// these (NDVI threshold, brightness gate, sun bands, minimum cluster
// size); each is a named key here so deployments can pin their own value.
func setDefaults(v *viper.Viper) {
	// Regional alignment calibration: 1.95x scale around center,
	// -5m north / -10m east.
	v.SetDefault("alignment.scale", 1.95)
	v.SetDefault("alignment.offset_north_m", -5.0)
	v.SetDefault("alignment.offset_east_m", -10.0)

	v.SetDefault("detection.ndvi_threshold", 0.2)
	v.SetDefault("detection.min_vegetation_brightness", 60.0)
	v.SetDefault("detection.shadow_dark_threshold", 80.0)
	v.SetDefault("detection.shadow_desaturation_threshold", 60.0)
	v.SetDefault("detection.shadow_min_cluster_px", 25)
	v.SetDefault("detection.shadow_blur_sigma", 2.0)

	v.SetDefault("buffering.pedestrian_m", 5.0)
	v.SetDefault("buffering.low_m", 10.0)
	v.SetDefault("buffering.medium_m", 15.0)
	v.SetDefault("buffering.high_m", 25.0)
	v.SetDefault("buffering.sidewalk_m", 5.0)

	v.SetDefault("scoring.sidewalk_max_points", 35.0)
	v.SetDefault("scoring.building_max_points", 25.0)
	v.SetDefault("scoring.sun_max_points", 20.0)
	v.SetDefault("scoring.amenity_max_points", 10.0)
	v.SetDefault("scoring.amenity_radius_m", 100.0)

	v.SetDefault("classification.critical_cutoff", 70.0)
	v.SetDefault("classification.high_cutoff", 50.0)
	v.SetDefault("classification.medium_cutoff", 30.0)

	v.SetDefault("extraction.min_cluster_px", 20)

	v.SetDefault("acquire.overpass_endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("acquire.static_map_endpoint", "https://maps.googleapis.com/maps/api/staticmap")
	v.SetDefault("acquire.image_size_px", 640)
	v.SetDefault("acquire.zoom", 18)
	v.SetDefault("acquire.timeout_secs", 60)
	v.SetDefault("acquire.requests_per_sec", 0.5)

	v.SetDefault("store.path", "canopy.db")

	v.SetDefault("batch.max_concurrent_locations", 4)
	v.SetDefault("batch.location_timeout_secs", 120)

	v.SetDefault("server.port", 8080)

	v.SetDefault("vision.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("vision.max_spots", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// BandDefaults returns the default score bands. Viper cannot express a
// slice-of-struct default cleanly, so ApplyBandDefaults installs these
// when the corresponding config section is absent.
func BandDefaults() (sidewalk, building, sun []Band) {
	sidewalk = []Band{
		{UpTo: 5, Points: 35},
		{UpTo: 10, Points: 28},
		{UpTo: 15, Points: 20},
		{UpTo: 25, Points: 12},
		{UpTo: 40, Points: 6},
	}
	// Cooling sweet spot: too close to a facade and too far from any
	// building both score lower than the 10-30m middle range.
	building = []Band{
		{UpTo: 10, Points: 8},
		{UpTo: 30, Points: 25},
		{UpTo: 50, Points: 15},
		{UpTo: 80, Points: 6},
	}
	sun = []Band{
		{UpTo: 0.4, Points: 20},
		{UpTo: 0.7, Points: 12},
		{UpTo: 1.01, Points: 5},
	}
	return sidewalk, building, sun
}

// ApplyBandDefaults fills in any score band slices left empty by the
// config file or environment.
func (c *Config) ApplyBandDefaults() {
	sidewalk, building, sun := BandDefaults()
	if len(c.Scoring.SidewalkBands) == 0 {
		c.Scoring.SidewalkBands = sidewalk
	}
	if len(c.Scoring.BuildingBands) == 0 {
		c.Scoring.BuildingBands = building
	}
	if len(c.Scoring.SunBands) == 0 {
		c.Scoring.SunBands = sun
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
