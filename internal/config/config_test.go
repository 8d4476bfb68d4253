package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{DefaultSession: "expo-west"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "expo-west" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "expo-west")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestProfileRoundTripAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")

	p := &Profile{
		OrganizerID: "org-17",
		APIBaseURL:  "https://api.example.test",
		PushURL:     "wss://push.example.test/ws",
	}
	if err := SaveProfile(path, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	loaded, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if loaded.OrganizerID != "org-17" {
		t.Errorf("OrganizerID = %q, want org-17", loaded.OrganizerID)
	}
	if loaded.RequestTimeoutD() != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want default %v", loaded.RequestTimeoutD(), DefaultRequestTimeout)
	}
	if loaded.HandshakeTimeoutD() != DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v, want default %v", loaded.HandshakeTimeoutD(), DefaultHandshakeTimeout)
	}
	if loaded.PollIntervalD() != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want default %v", loaded.PollIntervalD(), DefaultPollInterval)
	}
}

func TestProfileDurationsParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `organizer_id = "org-1"
api_base_url = "http://localhost:3000"
request_timeout = "3s"
poll_interval = "9s"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if p.RequestTimeoutD() != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", p.RequestTimeoutD())
	}
	if p.PollIntervalD() != 9*time.Second {
		t.Errorf("PollInterval = %v, want 9s", p.PollIntervalD())
	}
}

func TestProfileRequiredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(`api_base_url = "http://x"`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Error("LoadProfile() expected error for missing organizer_id")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
