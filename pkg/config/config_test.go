// Copyright 2026 abouchard11
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Service.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Service.Port)
	}
	if got := cfg.Lease.TTLDuration(); got != 30*time.Second {
		t.Errorf("default ttl = %v, want 30s", got)
	}
	if got := cfg.Lease.HeartbeatDuration(); got != 15*time.Second {
		t.Errorf("default heartbeat = %v, want 15s", got)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/db")
	t.Setenv("PORT", "9191")
	t.Setenv("SERVICE_LEASES_URL", "http://leases:8080")
	t.Setenv("TASK_SERVICE_URL", "http://tasks:8081")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.DSN != "postgres://env-host/db" || cfg.Store.Type != "postgres" {
		t.Errorf("DATABASE_URL override not applied: %+v", cfg.Store)
	}
	if cfg.Service.Port != 9191 {
		t.Errorf("PORT override not applied: %d", cfg.Service.Port)
	}
	if cfg.Dispatcher.LeasesURL != "http://leases:8080" {
		t.Errorf("SERVICE_LEASES_URL override not applied: %q", cfg.Dispatcher.LeasesURL)
	}
	if cfg.Worker.TaskServiceURL != "http://tasks:8081" {
		t.Errorf("TASK_SERVICE_URL override not applied: %q", cfg.Worker.TaskServiceURL)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leases.yaml")
	content := []byte("service:\n  port: 7070\nstore:\n  type: memory\nlease:\n  ttl: 10s\n  heartbeat_interval: 4s\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Service.Port != 7070 || cfg.Store.Type != "memory" {
		t.Errorf("file values not loaded: %+v", cfg)
	}
	if got := cfg.Lease.TTLDuration(); got != 10*time.Second {
		t.Errorf("ttl = %v, want 10s", got)
	}
}

func TestLeaseConfigValidateRatio(t *testing.T) {
	bad := LeaseConfig{TTL: "20s", HeartbeatInterval: "15s"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for 2*15s > 20s")
	}
	ok := LeaseConfig{TTL: "30s", HeartbeatInterval: "15s"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
