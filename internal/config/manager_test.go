package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
telegram:
  enabled: true
  token: "123:abc"
logging:
  level: debug
  console: true
entities:
  path: ./entities.yaml
scheduler:
  enabled: true
  tick: "1m"
  timezone: "Europe/Berlin"
  retention: "720h"
  checkin:
    enabled: true
    users: ["ana"]
    from_hour: 22
    to_hour: 23
    channels: ["telegram:9"]
delivery:
  workers: 4
  rate_per_sec: 5
storage:
  driver: file
  path: ./state
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Timezone != "Europe/Berlin" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Checkin.FromHour != 22 || len(cfg.Scheduler.Checkin.Users) != 1 {
		t.Fatalf("checkin = %+v", cfg.Scheduler.Checkin)
	}
	if cfg.Delivery == nil || cfg.Delivery.Workers != 4 {
		t.Fatalf("delivery = %+v", cfg.Delivery)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed snapshot")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", "schedular:\n  enabled: true\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("typo'd section must fail the load")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"scheduler":{"enabled":true,"checkin":{"enabled":false}}}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scheduler.Enabled {
		t.Fatal("scheduler.enabled lost")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Scheduler: SchedulerConfig{Enabled: true, Tick: "1m"}}
	newCfg := &Config{
		Scheduler: SchedulerConfig{Enabled: true, Tick: "30s"},
		Storage:   &StorageConfig{Driver: "file", Path: "./state"},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := []string{"scheduler", "storage"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}

	if c, _ := SummarizeChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("scheduler.retention", "720h"); err != nil || d.Hours() != 720 {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must be rejected")
	}
	if d, err := ParseDurationOrDefault("x", "", 42); err != nil || d != 42 {
		t.Fatalf("default not applied: (%v, %v)", d, err)
	}
}
