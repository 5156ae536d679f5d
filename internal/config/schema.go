package config

// Config holds storybook configuration.
// Stored at: $HOME/.storybook/config.yaml
type Config struct {
	Synthesis SynthesisCfg `mapstructure:"synthesis" yaml:"synthesis"`
	Rewriter  RewriterCfg  `mapstructure:"rewriter" yaml:"rewriter"`
	Pipeline  PipelineCfg  `mapstructure:"pipeline" yaml:"pipeline"`
	Jobs      JobsCfg      `mapstructure:"jobs" yaml:"jobs"`
	Server    ServerCfg    `mapstructure:"server" yaml:"server"`
}

// SynthesisCfg configures the image synthesis provider.
type SynthesisCfg struct {
	Model      string  `mapstructure:"model" yaml:"model"`             // Image model name
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`         // API key (supports ${ENV_VAR} syntax)
	BaseURL    string  `mapstructure:"base_url" yaml:"base_url"`       // Optional override for self-hosted gateways
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`   // Requests per second
	Attempts   uint    `mapstructure:"attempts" yaml:"attempts"`       // Transient retry attempts per call
	RetryDelay int     `mapstructure:"retry_delay" yaml:"retry_delay"` // Base backoff delay in seconds
	Timeout    int     `mapstructure:"timeout" yaml:"timeout"`         // HTTP timeout in seconds
}

// RewriterCfg configures the moderation-fallback prompt rewriter.
type RewriterCfg struct {
	Model   string `mapstructure:"model" yaml:"model"`     // Chat model for prompt rewrites
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PipelineCfg tunes the page generation pipeline.
type PipelineCfg struct {
	AnchorWait    int `mapstructure:"anchor_wait" yaml:"anchor_wait"`         // Seconds a page job waits for the book anchor
	PageStaggerMS int `mapstructure:"page_stagger_ms" yaml:"page_stagger_ms"` // Milliseconds between page job starts
	JobTimeout    int `mapstructure:"job_timeout" yaml:"job_timeout"`         // Seconds before a job is abandoned
	UpscaleFactor int `mapstructure:"upscale_factor" yaml:"upscale_factor"`   // Integer upscale factor for final images
}

// JobsCfg tunes job record retention.
type JobsCfg struct {
	TTL           int `mapstructure:"ttl" yaml:"ttl"`                       // Minutes a terminal record is retained
	SweepInterval int `mapstructure:"sweep_interval" yaml:"sweep_interval"` // Minutes between retention sweeps
}

// ServerCfg configures the HTTP API server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Synthesis: SynthesisCfg{
			Model:      "gpt-image-1",
			APIKey:     "${OPENAI_API_KEY}",
			RateLimit:  2.0,
			Attempts:   3,
			RetryDelay: 2,
			Timeout:    300,
		},
		Rewriter: RewriterCfg{
			Model:   "gpt-4o-mini",
			APIKey:  "${OPENAI_API_KEY}",
			Enabled: true,
		},
		Pipeline: PipelineCfg{
			AnchorWait:    30,
			PageStaggerMS: 1000,
			JobTimeout:    600,
			UpscaleFactor: 2,
		},
		Jobs: JobsCfg{
			TTL:           60,
			SweepInterval: 5,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// SynthesisAPIKey returns the synthesis API key with ${ENV_VAR}
// references resolved.
func (c *Config) SynthesisAPIKey() string {
	return ResolveEnvVars(c.Synthesis.APIKey)
}

// RewriterAPIKey returns the rewriter API key with ${ENV_VAR} references
// resolved, falling back to the synthesis key when unset.
func (c *Config) RewriterAPIKey() string {
	if c.Rewriter.APIKey == "" {
		return c.SynthesisAPIKey()
	}
	return ResolveEnvVars(c.Rewriter.APIKey)
}

// ListenAddr returns the host:port string for the HTTP server.
func (c *Config) ListenAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}
