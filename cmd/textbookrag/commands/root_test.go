package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "textbookrag" || cmd.Short == "" {
		t.Fatalf("unexpected root %q", cmd.Use)
	}
	want := []string{"collections", "ingest", "extract", "ask", "chat", "version"}
	for _, name := range want {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("subcommand %s missing", name)
		}
	}
	for _, flag := range []string{"config", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag missing", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	defer SetVersion("dev", "none", "unknown")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "textbookrag 1.2.3") || !strings.Contains(out.String(), "Commit: abc") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestIngestTextDryRun(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "corpus")
	page := filepath.Join(base, "chapter1", "page_text", "page_3.txt")
	if err := os.MkdirAll(filepath.Dir(page), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(page, []byte(strings.Repeat("Acids turn blue litmus red. ", 4)), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile := filepath.Join(dir, "config.yaml")
	yaml := "vector_store:\n  type: memory\n" +
		"corpus:\n  base_dir: " + base + "\n  class: 10\n  subject: Science\n" +
		"embedder:\n  text: hashing\n  image: hashing\n" +
		"ingest:\n  lock_dir: " + filepath.Join(dir, "locks") + "\n" +
		"logging:\n  level: error\n"
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgFile, "ingest", "text", "--dry-run", "--no-progress"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	want := "text: 1 chapters, 1 admitted, 0 skipped, 1 batches (dry run)"
	if !strings.Contains(out.String(), want) {
		t.Fatalf("output %q does not contain %q", out.String(), want)
	}
}
