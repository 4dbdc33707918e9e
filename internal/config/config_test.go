package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LUIS.SlotName != "production" {
		t.Fatalf("slot=%s, want production", cfg.LUIS.SlotName)
	}
	if cfg.LUISTimeout() != 10*time.Second {
		t.Fatalf("timeout=%s, want 10s", cfg.LUISTimeout())
	}
	if cfg.MQTT.TopicPrefix != "nlu" || cfg.HTTPAddr != ":9020" {
		t.Fatalf("unexpected defaults: prefix=%s addr=%s", cfg.MQTT.TopicPrefix, cfg.HTTPAddr)
	}
	if err := cfg.RequireLUIS(); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
}

func TestLoadJSONSettingsKeepsTypeCase(t *testing.T) {
	path := writeFile(t, "appsettings.luis.json", `{
		"luis": {
			"endpoint": "https://westus.api.cognitive.microsoft.com",
			"app_id": "app-1",
			"prebuilt_entity_types": ["Quantity=number", "when=datetimeV2"]
		}
	}`)
	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.RequireLUIS(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := cfg.LUISSettings().PrebuiltEntityTypes
	if got["Quantity"] != "number" || got["when"] != "datetimeV2" {
		t.Fatalf("prebuilt=%v, want Quantity=number when=datetimeV2", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NLU_LUIS_APP_ID", "from-env")
	t.Setenv("NLU_MQTT_TOPIC_PREFIX", "lab/nlu")
	path := writeFile(t, "settings.yaml", "luis:\n  app_id: from-file\n")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LUIS.AppID != "from-env" {
		t.Fatalf("app_id=%s, want from-env", cfg.LUIS.AppID)
	}
	if cfg.MQTT.TopicPrefix != "lab/nlu" {
		t.Fatalf("topic_prefix=%s, want lab/nlu", cfg.MQTT.TopicPrefix)
	}
}

func TestLoadRejectsBadPrebuiltTypes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing separator", body: "luis:\n  prebuilt_entity_types: [\"quantity\"]\n"},
		{name: "duplicate builtin", body: "luis:\n  prebuilt_entity_types: [\"a=number\", \"b=number\"]\n"},
		{name: "duplicate domain", body: "luis:\n  prebuilt_entity_types: [\"a=number\", \"a=email\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(New(), writeFile(t, "s.yaml", tt.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing settings file")
	}
}

func TestSaveWritesSettings(t *testing.T) {
	v := New()
	v.Set("luis.app_id", "saved")
	path := filepath.Join(t.TempDir(), "appsettings.luis.json")
	if err := Save(v, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LUIS.AppID != "saved" {
		t.Fatalf("app_id=%s, want saved", cfg.LUIS.AppID)
	}
}

func TestLUISSettingsUsesTypesParsedByLoad(t *testing.T) {
	var bare Config
	bare.LUIS.PrebuiltEntityTypes = []string{"not a pair"}
	if got := bare.LUISSettings().PrebuiltEntityTypes; len(got) != 0 {
		t.Fatalf("prebuilt=%v, want none without Load", got)
	}

	path := writeFile(t, "s.yaml", "luis:\n  prebuilt_entity_types: [\"quantity=number\"]\n")
	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := cfg.LUISSettings().PrebuiltEntityTypes
	got["quantity"] = "changed"
	if again := cfg.LUISSettings().PrebuiltEntityTypes["quantity"]; again != "number" {
		t.Fatalf("quantity=%s, want number", again)
	}
}
