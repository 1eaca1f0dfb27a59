package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bookbot/internal/embedding"
	"github.com/starford/bookbot/internal/llm"
	"github.com/starford/bookbot/internal/rag"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Cache     CacheConfig       `yaml:"cache"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	LLM       LLMConfig         `yaml:"llm"`
	Splitter  SplitterConfig    `yaml:"splitter"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
	Answer    AnswerConfig      `yaml:"answer"`
	Upload    UploadConfig      `yaml:"upload"`
	Session   SessionConfig     `yaml:"session"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Cache, &c.SQLite, &c.LLM, &c.Splitter,
		&c.Retrieval, &c.Answer, &c.Upload, &c.Session,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CacheConfig holds the root directory of the index cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// SQLiteConfig holds the catalog database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LLMConfig selects the model provider for both embeddings and answers.
//
// APIKey is a fallback credential. The web UI asks each session for its own
// key; the MCP server uses this one.
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	ChatModel      string        `yaml:"chat_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Temperature    float32       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"` // 0 keeps the client's own default
	EmbedBatchSize int           `yaml:"embed_batch_size"`
	EmbedRate      float64       `yaml:"embed_rate"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(llm.ProviderOpenAI, llm.ProviderOllama)),
		validation.Field(&c.ChatModel, validation.Required),
		validation.Field(&c.EmbeddingModel, validation.Required),
		validation.Field(&c.Temperature, validation.Min(float32(0)), validation.Max(float32(2))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.EmbedBatchSize, validation.Min(0)),
		validation.Field(&c.EmbedRate, validation.Min(0.0)),
	)
}

// CredentialRequired reports whether the provider needs an API key.
func (c *LLMConfig) CredentialRequired() bool {
	return c.Provider == llm.ProviderOpenAI
}

// Embedding returns client options for the embedding model with credential.
func (c *LLMConfig) Embedding(credential string) embedding.Options {
	return embedding.Options{
		Provider: c.Provider,
		BaseURL:  c.BaseURL,
		Model:    c.EmbeddingModel,
		APIKey:   credential,
		Timeout:  c.Timeout,
	}
}

// Chat returns client options for the chat model with credential.
func (c *LLMConfig) Chat(credential string) llm.Options {
	return llm.Options{
		Provider: c.Provider,
		BaseURL:  c.BaseURL,
		Model:    c.ChatModel,
		APIKey:   credential,
		Timeout:  c.Timeout,
	}
}

// SplitterConfig controls chunking.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Validate validates the splitter configuration.
func (c *SplitterConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.ChunkOverlap, validation.Min(0), validation.Max(c.ChunkSize-1)),
	)
}

// RetrievalConfig controls how many chunks back each answer.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// Validate validates the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TopK, validation.Required, validation.Min(1), validation.Max(50)),
	)
}

// AnswerConfig holds the answer length bound and refusal detection.
type AnswerConfig struct {
	DefaultMaxTokens int      `yaml:"default_max_tokens"`
	RefusalMarkers   []string `yaml:"refusal_markers"`
}

// Validate validates the answer configuration.
func (c *AnswerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultMaxTokens, validation.Required,
			validation.Min(rag.MinMaxTokens), validation.Max(rag.MaxMaxTokens)),
		validation.Field(&c.RefusalMarkers, validation.Each(validation.Required)),
	)
}

// UploadConfig bounds uploaded and fetched documents.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Validate validates the upload configuration.
func (c *UploadConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
	)
}

// SessionConfig holds the idle timeout after which sessions are dropped.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Minute)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Cache: CacheConfig{
			Dir: "./data/cache",
		},
		SQLite: SQLiteConfig{
			Path: "./data/bookbot.db",
		},
		LLM: LLMConfig{
			Provider:       llm.ProviderOpenAI,
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    rag.DefaultTemperature,
			EmbedBatchSize: 64,
		},
		Splitter: SplitterConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Answer: AnswerConfig{
			DefaultMaxTokens: rag.DefaultMaxTokens,
			RefusalMarkers:   rag.DefaultRefusalMarkers,
		},
		Upload: UploadConfig{
			MaxBytes: 50 << 20,
		},
		Session: SessionConfig{
			TTL: 2 * time.Hour,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
