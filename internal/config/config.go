// Package config loads and validates the application configuration from a
// YAML file plus environment variables. Configuration is an explicitly
// constructed value passed to the components that need it; reloading means
// constructing a new one.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Models      ModelsConfig  `yaml:"models"`
	VectorStore VectorStore   `yaml:"vector_store"`
	Data        DataConfig    `yaml:"data"`
	Document    DocumentCfg   `yaml:"document"`
	RAG         RAGConfig     `yaml:"rag"`
	Agent       AgentConfig   `yaml:"agent"`
	Store       StoreConfig   `yaml:"store"`
	API         APIConfig     `yaml:"api"`
	Email       EmailConfig   `yaml:"email"`
	User        UserConfig    `yaml:"user"`
}

// ModelsConfig holds the LLM and embedding endpoints.
type ModelsConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// LLMConfig configures the chat-completion model.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIBase     string  `yaml:"api_base"`
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	APIKey    string `yaml:"api_key"`
	APIBase   string `yaml:"api_base"`
	ModelName string `yaml:"model_name"`
}

// VectorStore locates the persisted index.
type VectorStore struct {
	PersistDir string `yaml:"persist_dir"`
}

// DataConfig locates the knowledge-base documents.
type DataConfig struct {
	DocumentsDir string `yaml:"documents_dir"`
}

// DocumentCfg controls document chunking.
type DocumentCfg struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RAGConfig controls retrieval behavior.
type RAGConfig struct {
	TopK   int  `yaml:"top_k"`
	Hybrid bool `yaml:"hybrid"`
}

// AgentConfig controls plan execution. Delays are in milliseconds and
// seconds so they read naturally in YAML.
type AgentConfig struct {
	MaxSteps       int `yaml:"max_steps"`
	MaxRetries     int `yaml:"max_retries"`
	RetryDelayMS   int `yaml:"retry_delay_ms"`
	ToolTimeoutSec int `yaml:"tool_timeout_sec"`
}

// RetryDelay returns the retry pause as a duration.
func (a AgentConfig) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelayMS) * time.Millisecond
}

// ToolTimeout returns the per-tool-call timeout as a duration.
func (a AgentConfig) ToolTimeout() time.Duration {
	return time.Duration(a.ToolTimeoutSec) * time.Second
}

// StoreConfig selects the finance data backend.
type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// APIConfig configures the HTTP server and the reimbursement service URL.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// BaseURL, when set, routes reimbursement queries to a remote service
	// instead of the local store.
	BaseURL string `yaml:"base_url"`
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// UserConfig identifies the default requesting user for first-person
// questions.
type UserConfig struct {
	Name       string `yaml:"name"`
	EmployeeID string `yaml:"employee_id"`
	Department string `yaml:"department"`
}

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. A .env file next to the working directory is
// loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("配置文件不存在: %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	cfg.applyEnv()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("配置校验失败:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return cfg, nil
}

// Default returns the built-in defaults. Required fields (API keys, paths)
// stay empty and are caught by Validate.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			LLM: LLMConfig{
				APIBase:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
				ModelName:   "qwen-plus",
				Temperature: 0.1,
				MaxTokens:   2000,
			},
			Embedding: EmbeddingConfig{
				APIBase:   "https://dashscope.aliyuncs.com/compatible-mode/v1",
				ModelName: "text-embedding-v2",
			},
		},
		VectorStore: VectorStore{PersistDir: "data/vector_store"},
		Data:        DataConfig{DocumentsDir: "data/documents"},
		Document:    DocumentCfg{ChunkSize: 500, ChunkOverlap: 50},
		RAG:         RAGConfig{TopK: 3, Hybrid: true},
		Agent: AgentConfig{
			MaxSteps:       8,
			MaxRetries:     2,
			RetryDelayMS:   500,
			ToolTimeoutSec: 10,
		},
		Store: StoreConfig{Driver: "memory"},
		API:   APIConfig{ListenAddr: ":5001"},
	}
}

// applyEnv fills secrets from the environment when the file leaves them
// empty.
func (c *Config) applyEnv() {
	if c.Models.LLM.APIKey == "" {
		c.Models.LLM.APIKey = firstEnv("DASHSCOPE_API_KEY", "OPENAI_API_KEY")
	}
	if c.Models.Embedding.APIKey == "" {
		c.Models.Embedding.APIKey = c.Models.LLM.APIKey
	}
	if c.Store.PostgresDSN == "" {
		c.Store.PostgresDSN = os.Getenv("DATABASE_URL")
	}
	if c.Email.Password == "" {
		c.Email.Password = os.Getenv("SMTP_PASSWORD")
	}
}

// Validate returns every configuration problem at once instead of failing
// on the first.
func (c *Config) Validate() []string {
	var errs []string

	if c.Models.LLM.APIKey == "" {
		errs = append(errs, "models.llm.api_key 不能为空（或设置 DASHSCOPE_API_KEY 环境变量）")
	}
	if c.Models.LLM.ModelName == "" {
		errs = append(errs, "models.llm.model_name 不能为空")
	}
	if c.Models.Embedding.ModelName == "" {
		errs = append(errs, "models.embedding.model_name 不能为空")
	}
	if c.VectorStore.PersistDir == "" {
		errs = append(errs, "vector_store.persist_dir 不能为空")
	}
	if c.Data.DocumentsDir == "" {
		errs = append(errs, "data.documents_dir 不能为空")
	}
	if c.Document.ChunkSize <= 0 {
		errs = append(errs, "document.chunk_size 必须为正整数")
	}
	if c.Document.ChunkOverlap < 0 {
		errs = append(errs, "document.chunk_overlap 必须为非负整数")
	}
	if c.Document.ChunkSize > 0 && c.Document.ChunkOverlap >= c.Document.ChunkSize {
		errs = append(errs, "document.chunk_overlap 必须小于 document.chunk_size")
	}
	if c.RAG.TopK <= 0 {
		errs = append(errs, "rag.top_k 必须为正整数")
	}
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, "agent.max_steps 必须为正整数")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, "store.postgres_dsn 不能为空（或设置 DATABASE_URL 环境变量）")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver 无效: %s，可选值：memory/postgres", c.Store.Driver))
	}
	if c.Email.Enabled && c.Email.Host == "" {
		errs = append(errs, "email.host 不能为空（email.enabled 为 true 时）")
	}
	return errs
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
