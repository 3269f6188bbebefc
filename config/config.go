package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConverterPDFCo    = "pdfco"
	ConverterTextract = "textract"
	ConverterLocal    = "local"

	ExtractorOpenAI = "openai"
	ExtractorVertex = "vertex"

	StagingNone  = "none"
	StagingS3    = "s3"
	StagingMinio = "minio"
)

// Config is built once at process start and handed to every component.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Converter ConverterConfig `yaml:"converter"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Retry     RetryConfig     `yaml:"retry"`
	Staging   StagingConfig   `yaml:"staging"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadMB     int64         `yaml:"maxUploadMB"`
	PreviewChars    int           `yaml:"previewChars"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Outputs  []string `yaml:"outputs"`
}

type ConverterConfig struct {
	Backend     string        `yaml:"backend"`
	PDFCoAPIKey string        `yaml:"pdfcoApiKey"`
	PDFCoURL    string        `yaml:"pdfcoUrl"`
	Timeout     time.Duration `yaml:"timeout"`
	AWS         AWSConfig     `yaml:"aws"`
}

type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

type ExtractorConfig struct {
	Backend      string        `yaml:"backend"`
	OpenAIAPIKey string        `yaml:"openaiApiKey"`
	OpenAIURL    string        `yaml:"openaiUrl"`
	Model        string        `yaml:"model"`
	VisionModel  string        `yaml:"visionModel"`
	MaxTokens    int           `yaml:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout"`

	// PromptMaxChars caps the document text embedded in a prompt; 0 disables the cap.
	PromptMaxChars int  `yaml:"promptMaxChars"`
	// JSONMode sends response_format=json_object; gpt-4 does not support it.
	JSONMode       bool `yaml:"jsonMode"`

	VertexProject string `yaml:"vertexProject"`
	VertexRegion  string `yaml:"vertexRegion"`
	VertexModel   string `yaml:"vertexModel"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
}

type StagingConfig struct {
	Backend   string        `yaml:"backend"`
	Bucket    string        `yaml:"bucket"`
	Endpoint  string        `yaml:"endpoint"`
	Region    string        `yaml:"region"`
	AccessKey string        `yaml:"accessKey"`
	SecretKey string        `yaml:"secretKey"`
	UseSSL    bool          `yaml:"useSSL"`
	URLExpiry time.Duration `yaml:"urlExpiry"`
	Retention time.Duration `yaml:"retention"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	DB          int           `yaml:"db"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	JobTTL      time.Duration `yaml:"jobTTL"`
	Concurrency int           `yaml:"concurrency"`
}

// Credentials are the resolved secrets for the configured backends.
type Credentials struct {
	PDFCoAPIKey  string
	OpenAIAPIKey string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadMB:     50,
			PreviewChars:    500,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
			Outputs:  []string{"stdout", "logs/app.log"},
		},
		Converter: ConverterConfig{
			Backend:  ConverterPDFCo,
			PDFCoURL: "https://api.pdf.co/v1",
			Timeout:  60 * time.Second,
		},
		Extractor: ExtractorConfig{
			Backend:        ExtractorOpenAI,
			OpenAIURL:      "https://api.openai.com/v1",
			Model:          "gpt-4",
			VisionModel:    "gpt-4o",
			MaxTokens:      1000,
			Timeout:        60 * time.Second,
			PromptMaxChars: 24000,
			VertexRegion:   "us-central1",
			VertexModel:    "gemini-1.5-pro",
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		Staging: StagingConfig{
			Backend:   StagingNone,
			URLExpiry: 15 * time.Minute,
			Retention: 24 * time.Hour,
		},
		Redis: RedisConfig{
			CacheTTL:    24 * time.Hour,
			JobTTL:      24 * time.Hour,
			Concurrency: 5,
		},
	}
}

// Load builds the configuration. Precedence, lowest first: defaults, the YAML
// file named by CONFIG_FILE, the process environment. The .env file at envPath
// is merged into the environment first and may be absent.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	e := envReader{getenv: getenv}

	e.str("SERVER_ADDR", &c.Server.Addr)
	e.int64("MAX_UPLOAD_SIZE_MB", &c.Server.MaxUploadMB)
	e.int("PREVIEW_CHARS", &c.Server.PreviewChars)
	e.duration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_ENCODING", &c.Log.Encoding)
	e.list("LOG_OUTPUTS", &c.Log.Outputs)

	e.str("CONVERTER_BACKEND", &c.Converter.Backend)
	e.str("PDFCO_API_KEY", &c.Converter.PDFCoAPIKey)
	e.str("PDFCO_BASE_URL", &c.Converter.PDFCoURL)
	e.duration("CONVERTER_TIMEOUT", &c.Converter.Timeout)
	e.str("AWS_REGION", &c.Converter.AWS.Region)
	e.str("AWS_ACCESS_KEY", &c.Converter.AWS.AccessKey)
	e.str("AWS_SECRET_KEY", &c.Converter.AWS.SecretKey)

	e.str("EXTRACTOR_BACKEND", &c.Extractor.Backend)
	e.str("OPENAI_API_KEY", &c.Extractor.OpenAIAPIKey)
	e.str("OPENAI_BASE_URL", &c.Extractor.OpenAIURL)
	e.str("OPENAI_MODEL", &c.Extractor.Model)
	e.str("OPENAI_VISION_MODEL", &c.Extractor.VisionModel)
	e.int("OPENAI_MAX_TOKENS", &c.Extractor.MaxTokens)
	e.duration("EXTRACTOR_TIMEOUT", &c.Extractor.Timeout)
	e.int("PROMPT_MAX_CHARS", &c.Extractor.PromptMaxChars)
	e.bool("OPENAI_JSON_MODE", &c.Extractor.JSONMode)
	e.str("VERTEX_PROJECT_ID", &c.Extractor.VertexProject)
	e.str("VERTEX_REGION", &c.Extractor.VertexRegion)
	e.str("VERTEX_MODEL", &c.Extractor.VertexModel)

	e.int("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	e.duration("RETRY_INITIAL_BACKOFF", &c.Retry.InitialBackoff)
	e.duration("RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff)

	e.str("STAGING_BACKEND", &c.Staging.Backend)
	e.str("STAGING_BUCKET", &c.Staging.Bucket)
	e.str("STAGING_ENDPOINT", &c.Staging.Endpoint)
	e.str("STAGING_REGION", &c.Staging.Region)
	e.str("STAGING_ACCESS_KEY", &c.Staging.AccessKey)
	e.str("STAGING_SECRET_KEY", &c.Staging.SecretKey)
	e.bool("STAGING_USE_SSL", &c.Staging.UseSSL)
	e.duration("STAGING_URL_EXPIRY", &c.Staging.URLExpiry)
	e.duration("STAGING_RETENTION", &c.Staging.Retention)

	e.str("REDIS_ADDR", &c.Redis.Addr)
	e.int("REDIS_DB", &c.Redis.DB)
	e.duration("CACHE_TTL", &c.Redis.CacheTTL)
	e.duration("JOB_TTL", &c.Redis.JobTTL)
	e.int("WORKER_CONCURRENCY", &c.Redis.Concurrency)

	return e.err
}

// Validate checks structural settings. Missing secrets are reported by Resolve.
func (c *Config) Validate() error {
	switch c.Converter.Backend {
	case ConverterPDFCo, ConverterTextract, ConverterLocal:
	default:
		return fmt.Errorf("unsupported converter backend: %q", c.Converter.Backend)
	}
	switch c.Extractor.Backend {
	case ExtractorOpenAI, ExtractorVertex:
	default:
		return fmt.Errorf("unsupported extractor backend: %q", c.Extractor.Backend)
	}
	switch c.Staging.Backend {
	case StagingNone, "":
	case StagingS3, StagingMinio:
		if c.Staging.Bucket == "" {
			return fmt.Errorf("STAGING_BUCKET is required for staging backend %q", c.Staging.Backend)
		}
	default:
		return fmt.Errorf("unsupported staging backend: %q", c.Staging.Backend)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB * 1024 * 1024
}

// Resolve returns the secrets required by the configured backends, failing
// with a MissingCredential error naming the first absent one.
func (c *Config) Resolve() (Credentials, error) {
	creds := Credentials{
		PDFCoAPIKey:  strings.TrimSpace(c.Converter.PDFCoAPIKey),
		OpenAIAPIKey: strings.TrimSpace(c.Extractor.OpenAIAPIKey),
	}
	switch c.Converter.Backend {
	case ConverterPDFCo:
		if creds.PDFCoAPIKey == "" {
			return creds, &MissingCredentialError{Integration: "PDF.co", Setting: "PDFCO_API_KEY"}
		}
	case ConverterTextract:
		if c.Converter.AWS.Region == "" {
			return creds, &MissingCredentialError{Integration: "AWS Textract", Setting: "AWS_REGION"}
		}
	}
	switch c.Extractor.Backend {
	case ExtractorOpenAI:
		if creds.OpenAIAPIKey == "" {
			return creds, &MissingCredentialError{Integration: "OpenAI", Setting: "OPENAI_API_KEY"}
		}
	case ExtractorVertex:
		if c.Extractor.VertexProject == "" {
			return creds, &MissingCredentialError{Integration: "Vertex AI", Setting: "VERTEX_PROJECT_ID"}
		}
	}
	return creds, nil
}

// MissingCredentialError names the integration whose secret is absent.
type MissingCredentialError struct {
	Integration string
	Setting     string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API key not configured (%s)", e.Integration, e.Setting)
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (r *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(r.getenv(key))
	return v, v != ""
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v, ok := r.lookup(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func (r *envReader) int(key string, dst *int) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(key string, dst *int64) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) bool(key string, dst *bool) {
	if v, ok := r.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = d
	}
}
