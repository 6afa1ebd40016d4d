//nolint:lll
package config

// Config is the complete godetect configuration. It covers every command (image, batch,
// pdf, serve) and loads from config files, GODETECT_* environment variables and flags.
type Config struct {
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`
	NMS      NMSConfig      `mapstructure:"nms" yaml:"nms" json:"nms"`
	Labels   LabelsConfig   `mapstructure:"labels" yaml:"labels" json:"labels"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache" json:"cache"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	GPU      GPUConfig      `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DetectorConfig selects the SSD model and how it is run.
type DetectorConfig struct {
	ModelPath        string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	ModelURL         string `mapstructure:"model_url" yaml:"model_url" json:"model_url"`
	NumThreads       int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	InputSize        int    `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ScoresOutput     string `mapstructure:"scores_output" yaml:"scores_output" json:"scores_output"`
	BoxesOutput      string `mapstructure:"boxes_output" yaml:"boxes_output" json:"boxes_output"`
	WarmupIterations int    `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// NMSConfig configures non-maximum suppression.
type NMSConfig struct {
	MaxOutputs     int     `mapstructure:"max_outputs" yaml:"max_outputs" json:"max_outputs"`
	IoUThreshold   float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	ScoreThreshold float64 `mapstructure:"score_threshold" yaml:"score_threshold" json:"score_threshold"`
}

// LabelsConfig selects the label table.
type LabelsConfig struct {
	Path        string `mapstructure:"path" yaml:"path" json:"path"`
	IndexOffset int    `mapstructure:"index_offset" yaml:"index_offset" json:"index_offset"`
	OnMissing   string `mapstructure:"on_missing" yaml:"on_missing" json:"on_missing"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	BoxColor   string `mapstructure:"box_color" yaml:"box_color" json:"box_color"`
	TextColor  string `mapstructure:"text_color" yaml:"text_color" json:"text_color"`
	TitleCase  bool   `mapstructure:"title_case" yaml:"title_case" json:"title_case"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// CacheConfig configures the detection result cache.
type CacheConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend" json:"backend"`
	Size    int         `mapstructure:"size" yaml:"size" json:"size"`
	TTLSec  int         `mapstructure:"ttl_sec" yaml:"ttl_sec" json:"ttl_sec"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// RedisConfig holds the redis connection for the shared cache backend.
type RedisConfig struct {
	Address  string `mapstructure:"address" yaml:"address" json:"address"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
