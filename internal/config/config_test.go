package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
models:
  llm:
    api_key: sk-test
    model_name: qwen-plus
rag:
  top_k: 5
  hybrid: true
user:
  name: 张三
  employee_id: E001
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Models.LLM.APIKey != "sk-test" || cfg.Models.LLM.ModelName != "qwen-plus" {
		t.Errorf("llm = %+v", cfg.Models.LLM)
	}
	if cfg.RAG.TopK != 5 {
		t.Errorf("top_k = %d", cfg.RAG.TopK)
	}
	if cfg.User.Name != "张三" || cfg.User.EmployeeID != "E001" {
		t.Errorf("user = %+v", cfg.User)
	}
	// Defaults survive a partial file.
	if cfg.Agent.MaxSteps != 8 || cfg.Document.ChunkSize != 500 {
		t.Errorf("defaults = %+v %+v", cfg.Agent, cfg.Document)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_AccumulatesValidationErrors(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, `
models:
  llm:
    model_name: ""
document:
  chunk_size: 0
rag:
  top_k: 0
store:
  driver: oracle
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	text := err.Error()
	for _, want := range []string{
		"models.llm.api_key",
		"models.llm.model_name",
		"document.chunk_size",
		"rag.top_k",
		"store.driver 无效",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("error missing %q: %v", want, text)
		}
	}
}

func TestLoad_EnvFallbackForAPIKey(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-from-env")
	path := writeConfig(t, `
models:
  llm:
    model_name: qwen-plus
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Models.LLM.APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Models.LLM.APIKey)
	}
	if cfg.Models.Embedding.APIKey != "sk-from-env" {
		t.Errorf("embedding key = %q", cfg.Models.Embedding.APIKey)
	}
}

func TestValidate_OverlapMustBeBelowChunkSize(t *testing.T) {
	cfg := Default()
	cfg.Models.LLM.APIKey = "sk-test"
	cfg.Document.ChunkSize = 500
	cfg.Document.ChunkOverlap = 500

	errs := cfg.Validate()
	found := false
	for _, e := range errs {
		if strings.Contains(e, "document.chunk_overlap 必须小于 document.chunk_size") {
			found = true
		}
	}
	if !found {
		t.Errorf("errs = %v", errs)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := Default()
	cfg.Models.LLM.APIKey = "sk-test"
	cfg.Store.Driver = "postgres"

	errs := cfg.Validate()
	found := false
	for _, e := range errs {
		if strings.Contains(e, "store.postgres_dsn") {
			found = true
		}
	}
	if !found {
		t.Errorf("errs = %v", errs)
	}
}
