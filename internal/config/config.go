package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
}

// StorageConfig selects where the session collection is persisted
type StorageConfig struct {
	Backend       string        `mapstructure:"backend"`
	Namespace     string        `mapstructure:"namespace"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	File          FileConfig    `mapstructure:"file"`
	SQLite        SQLiteConfig  `mapstructure:"sqlite"`
	MySQL         MySQLConfig   `mapstructure:"mysql"`
	Mongo         MongoConfig   `mapstructure:"mongo"`
}

type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig enables bearer-token auth on the API when JWTSecret is set
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// Enabled reports whether API requests must carry a bearer token
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type AssistantConfig struct {
	Backend      string        `mapstructure:"backend"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	MaxHistory   int           `mapstructure:"max_history"`
	MaxThreads   int           `mapstructure:"max_threads"`
	Gateway      GatewayConfig `mapstructure:"gateway"`
	Ollama       OllamaConfig  `mapstructure:"ollama"`
	Gemini       GeminiConfig  `mapstructure:"gemini"`
	OpenAI       APIConfig     `mapstructure:"openai"`
	DeepSeek     APIConfig     `mapstructure:"deepseek"`
	Anthropic    APIConfig     `mapstructure:"anthropic"`
}

// APIConfig configures a hosted chat-completion API
type APIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GatewayConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type OllamaConfig struct {
	Host  string `mapstructure:"host"`
	Model string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ChatConfig holds the user-visible texts of the chat widget
type ChatConfig struct {
	WelcomeMessage  string `mapstructure:"welcome_message"`
	GreetingMessage string `mapstructure:"greeting_message"`
	TitlePrefix     string `mapstructure:"title_prefix"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server. Write timeout must outlast one assistant turn.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "130s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "120s")

	// Storage
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.namespace", "swift_assistant_sessions")
	v.SetDefault("storage.write_timeout", "5s")
	v.SetDefault("storage.file.dir", "./data")
	v.SetDefault("storage.sqlite.path", "./data/swift.db")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "swift")
	v.SetDefault("storage.mongo.collection", "chat_state")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "swift")
	v.SetDefault("database.database", "swift")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.access_token_ttl", "24h")

	// Assistant
	v.SetDefault("assistant.backend", "gateway")
	v.SetDefault("assistant.timeout", "100s")
	v.SetDefault("assistant.max_history", 20)
	v.SetDefault("assistant.max_threads", 1024)
	v.SetDefault("assistant.system_prompt", "You are Swift Assistant, the help desk of a logistics company. "+
		"Answer questions about parcels, consolidations, deliveries and pricing concisely.")
	v.SetDefault("assistant.gateway.url", "http://localhost:8000/api/chat")
	v.SetDefault("assistant.ollama.host", "http://localhost:11434")
	v.SetDefault("assistant.ollama.model", "llama3")
	v.SetDefault("assistant.gemini.model", "gemini-2.5-flash")
	v.SetDefault("assistant.openai.model", "gpt-4o-mini")
	v.SetDefault("assistant.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.deepseek.model", "deepseek-chat")
	v.SetDefault("assistant.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("assistant.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("assistant.anthropic.base_url", "https://api.anthropic.com/v1")

	// Chat
	v.SetDefault("chat.welcome_message", "Hello! I'm Swift Assistant. Ask me about tracking, deliveries or pricing.")
	v.SetDefault("chat.greeting_message", "New conversation started. How can I help you?")
	v.SetDefault("chat.title_prefix", "Chat")

	// Security
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests_per_minute", 30)
	v.SetDefault("security.rate_limit.burst", 5)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Storage
	v.BindEnv("storage.backend", "STORAGE_BACKEND")
	v.BindEnv("storage.encryption_key", "STORAGE_ENCRYPTION_KEY")
	v.BindEnv("storage.mysql.dsn", "MYSQL_DSN")
	v.BindEnv("storage.mongo.uri", "MONGO_URI")

	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Assistant
	v.BindEnv("assistant.backend", "ASSISTANT_BACKEND")
	v.BindEnv("assistant.gateway.url", "ASSISTANT_URL")
	v.BindEnv("assistant.gateway.api_key", "ASSISTANT_API_KEY")
	v.BindEnv("assistant.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("assistant.ollama.host", "OLLAMA_HOST")
	v.BindEnv("assistant.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("assistant.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("assistant.anthropic.api_key", "ANTHROPIC_API_KEY")
}
