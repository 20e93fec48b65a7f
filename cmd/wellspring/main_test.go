package main

import (
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "WELLSPRING_STATE_DIR", "OPENAI_API_KEY", "API_ADDR",
		"KNOWLEDGE_DIR", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER",
		"CHUNK_TARGET_SIZE", "CHUNK_OVERLAP", "OPENAI_CHAT_TIMEOUT", "EMBEDDING_TIMEOUT",
		"SIGNAL_LEARNING_RATE", "INGEST_ON_START",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	if config.ChunkSize <= 0 || config.ChunkOverlap < 0 {
		t.Errorf("unexpected chunking defaults: size=%d overlap=%d", config.ChunkSize, config.ChunkOverlap)
	}
	if config.ChunkOverlap >= config.ChunkSize {
		t.Errorf("default overlap %d must be smaller than default size %d", config.ChunkOverlap, config.ChunkSize)
	}
	if !config.IngestOnStart {
		t.Error("startup ingestion should default to enabled")
	}
	if config.LearningRate <= 0 || config.LearningRate >= 1 {
		t.Errorf("unexpected default learning rate %v", config.LearningRate)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("WELLSPRING_STATE_DIR", "/tmp/wellspring-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHUNK_TARGET_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "40")
	t.Setenv("OPENAI_CHAT_TIMEOUT", "90s")
	t.Setenv("SIGNAL_LEARNING_RATE", "0.5")
	t.Setenv("INGEST_ON_START", "false")

	config := loadEnvironmentConfig()

	if config.StateDir != "/tmp/wellspring-test" {
		t.Errorf("state dir override not applied: %q", config.StateDir)
	}
	if config.OpenAIKey != "sk-test" {
		t.Errorf("OpenAI key override not applied: %q", config.OpenAIKey)
	}
	if config.ChunkSize != 500 || config.ChunkOverlap != 40 {
		t.Errorf("chunking overrides not applied: size=%d overlap=%d", config.ChunkSize, config.ChunkOverlap)
	}
	if config.ChatTimeout != 90*time.Second {
		t.Errorf("chat timeout override not applied: %v", config.ChatTimeout)
	}
	if config.LearningRate != 0.5 {
		t.Errorf("learning rate override not applied: %v", config.LearningRate)
	}
	if config.IngestOnStart {
		t.Error("INGEST_ON_START=false should disable startup ingestion")
	}
}

func TestLoadEnvironmentConfigInvalidValuesFallBack(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHUNK_TARGET_SIZE", "not-a-number")
	t.Setenv("OPENAI_CHAT_TIMEOUT", "soon")
	t.Setenv("SIGNAL_LEARNING_RATE", "fast")

	config := loadEnvironmentConfig()

	if config.ChunkSize <= 0 {
		t.Errorf("invalid chunk size should fall back to default, got %d", config.ChunkSize)
	}
	if config.ChatTimeout <= 0 {
		t.Errorf("invalid chat timeout should fall back to default, got %v", config.ChatTimeout)
	}
	if config.LearningRate <= 0 {
		t.Errorf("invalid learning rate should fall back to default, got %v", config.LearningRate)
	}
}
