package backend

import "testing"

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if !cfg.Normalize {
		t.Error("normalization should be enabled by default")
	}
	if cfg.HighQuality {
		t.Error("high quality should be disabled by default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestGetDefaultConfig_ReturnsCopy(t *testing.T) {
	a := GetDefaultConfig()
	a.LogLevel = "debug"

	if b := GetDefaultConfig(); b.LogLevel != "info" {
		t.Error("mutating a returned config must not change the defaults")
	}
}
