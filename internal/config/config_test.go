package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Synthesis.Model == "" {
		t.Error("expected default synthesis model")
	}
	if cfg.Synthesis.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected OpenAI API key placeholder")
	}
	if cfg.Pipeline.AnchorWait <= 0 {
		t.Error("expected positive anchor wait")
	}
	if cfg.ListenAddr() != "127.0.0.1:8080" {
		t.Errorf("unexpected listen address %s", cfg.ListenAddr())
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_APIKeyResolution(t *testing.T) {
	os.Setenv("TEST_SYNTH_KEY", "synth-key-123")
	defer os.Unsetenv("TEST_SYNTH_KEY")

	cfg := &Config{
		Synthesis: SynthesisCfg{APIKey: "${TEST_SYNTH_KEY}"},
	}

	t.Run("resolves env var reference", func(t *testing.T) {
		if got := cfg.SynthesisAPIKey(); got != "synth-key-123" {
			t.Errorf("expected synth-key-123, got %s", got)
		}
	})

	t.Run("rewriter falls back to synthesis key", func(t *testing.T) {
		if got := cfg.RewriterAPIKey(); got != "synth-key-123" {
			t.Errorf("expected fallback to synthesis key, got %s", got)
		}
	})

	t.Run("rewriter uses own key when set", func(t *testing.T) {
		cfg := &Config{
			Synthesis: SynthesisCfg{APIKey: "synth"},
			Rewriter:  RewriterCfg{APIKey: "rewrite"},
		}
		if got := cfg.RewriterAPIKey(); got != "rewrite" {
			t.Errorf("expected rewrite, got %s", got)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
synthesis:
  model: "test-model"
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Synthesis.Model != "test-model" {
			t.Errorf("expected test-model, got %s", cfg.Synthesis.Model)
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
synthesis:
  model: "test-model"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
synthesis:
  model: "test-model"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Synthesis.Model
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
synthesis:
  model: "initial-model"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Synthesis.Model != "initial-model" {
		t.Errorf("initial value mismatch: expected initial-model, got %s", cfg.Synthesis.Model)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Synthesis.Model)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
synthesis:
  model: "updated-model"
`
	if err := os.WriteFile(configFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	newCfg := mgr.Get()
	if newCfg.Synthesis.Model != "updated-model" {
		t.Errorf("config not updated: expected updated-model, got %s", newCfg.Synthesis.Model)
	}

	if v := lastValue.Load(); v != "updated-model" {
		t.Errorf("callback received wrong value: expected updated-model, got %v", v)
	}
}
