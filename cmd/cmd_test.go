package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"1", true, false},
		{"FALSE", false, false},
		{"0", false, false},
		{"yes", false, true},
	}
	for _, tt := range tests {
		got, err := parseBool(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseBool(%q) = (%v, %v), want (%v, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseDuration(t *testing.T) {
	if err := parseDuration("5s"); err != nil {
		t.Errorf("5s: %v", err)
	}
	for _, bad := range []string{"soon", "0s", "-1s"} {
		if err := parseDuration(bad); err == nil {
			t.Errorf("%s should be rejected", bad)
		}
	}
}

func TestProviderURL(t *testing.T) {
	got := providerURL("http://localhost:8000/api/", "github")
	if got != "http://localhost:8000/services/auth/github" {
		t.Errorf("providerURL() = %q", got)
	}
}

func TestWithRedirect(t *testing.T) {
	got := withRedirect("http://host/services/auth/twitter", "http://127.0.0.1:8787/callback")
	want := "http://host/services/auth/twitter?redirect_uri=http%3A%2F%2F127.0.0.1%3A8787%2Fcallback"
	if got != want {
		t.Errorf("withRedirect() = %q, want %q", got, want)
	}
}

func TestSetupLoggingRejectsBadLevel(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "")
	t.Setenv("SX_CONFIG_DIR", t.TempDir())

	if err := cmd.Flags().Set("log-level", "loud"); err != nil {
		t.Fatal(err)
	}
	if err := setupLogging(cmd); err == nil {
		t.Fatal("expected invalid level error")
	}

	if err := cmd.Flags().Set("log-level", "debug"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("log-format", "json"); err != nil {
		t.Fatal(err)
	}
	if err := setupLogging(cmd); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"load"},
		{"watch"},
		{"auth", "login"},
		{"auth", "logout"},
		{"auth", "status"},
		{"flags", "list"},
		{"flags", "set"},
		{"flags", "clear"},
		{"flags", "roles"},
		{"config", "get"},
	} {
		c, _, err := rootCmd.Find(path)
		if err != nil || c == nil || c.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}

func TestLoadModeFlag(t *testing.T) {
	f := loadCmd.Flags().Lookup("mode")
	if f == nil {
		t.Fatal("--mode flag missing")
	}
	if f.Value.Type() != "mode" || f.DefValue != "CONTINUE" {
		t.Errorf("--mode: type %s, default %s", f.Value.Type(), f.DefValue)
	}
}
