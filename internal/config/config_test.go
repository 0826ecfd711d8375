package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/backupd/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validYAML(outDir string) string {
	return `
cron: "*/15 * * * *"
archive_base_name: db
out_dir: ` + outDir + `
files:
  - glob:
      src_dir: /srv/data
      dst_prefix: ""
      patterns: ["*.txt"]
compressor:
  type: xz
encryptor:
  type: age
  secret_type: passphrase
  passphrase: correct-horse-battery-staple
retention:
  default_retention: 7days
  daily_retention: 30days
`
}

func TestLoadValidDocument(t *testing.T) {
	outDir := t.TempDir()
	path := writeConfig(t, validYAML(outDir))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cron != "*/15 * * * *" {
		t.Errorf("Cron = %q", cfg.Cron)
	}
	if cfg.Retention.MinBackups == nil || *cfg.Retention.MinBackups != defaultMinBackups {
		t.Errorf("expected MinBackups to default to %d", defaultMinBackups)
	}
}

func TestLoadMissingCronIsConfigError(t *testing.T) {
	outDir := t.TempDir()
	body := `
archive_base_name: db
out_dir: ` + outDir + `
files:
  - inline_blob:
      content_b64: "aGk="
      dst_path: hi.txt
compressor:
  type: xz
encryptor:
  type: age
  secret_type: passphrase
  passphrase: x
retention:
  default_retention: 7days
`
	_, err := Load(writeConfig(t, body))
	assertConfigError(t, err)
}

func TestLoadUnwritableOutDirIsConfigError(t *testing.T) {
	body := validYAML(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := Load(writeConfig(t, body))
	assertConfigError(t, err)
}

func TestLoadSourceWithZeroVariantsIsConfigError(t *testing.T) {
	outDir := t.TempDir()
	body := `
cron: "* * * * *"
archive_base_name: db
out_dir: ` + outDir + `
files:
  - {}
compressor:
  type: xz
encryptor:
  type: age
  secret_type: passphrase
  passphrase: x
retention:
  default_retention: 7days
`
	_, err := Load(writeConfig(t, body))
	assertConfigError(t, err)
}

func TestLoadUnknownCompressorTypeIsConfigError(t *testing.T) {
	outDir := t.TempDir()
	body := `
cron: "* * * * *"
archive_base_name: db
out_dir: ` + outDir + `
files:
  - inline_blob:
      content_b64: "aGk="
      dst_path: hi.txt
compressor:
  type: zstd
encryptor:
  type: age
  secret_type: passphrase
  passphrase: x
retention:
  default_retention: 7days
`
	_, err := Load(writeConfig(t, body))
	assertConfigError(t, err)
}

func TestParseDurationUnits(t *testing.T) {
	cases := map[string]bool{
		"7days":   true,
		"30days":  true,
		"12months": true,
		"5years":  true,
		"":        false,
		"7day":    false,
		"-3days":  false,
	}
	for s, ok := range cases {
		_, err := parseDuration(s)
		if (err == nil) != ok {
			t.Errorf("parseDuration(%q): got err=%v, want ok=%v", s, err, ok)
		}
	}
}

func TestToModelBuildsNotifierWithDefaultPort(t *testing.T) {
	outDir := t.TempDir()
	body := validYAML(outDir) + `
notifications:
  - host: smtp.example.com
    smtp_mode: Ssl
    from: backupd@example.com
    to: ["ops@example.com"]
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := *cfg.Notifications[0].Port; got != defaultSMTPPort {
		t.Errorf("Port = %d, want default %d", got, defaultSMTPPort)
	}
	_, _, notifiers, err := cfg.ToModel()
	if err != nil {
		t.Fatalf("ToModel() error: %v", err)
	}
	if len(notifiers) != 1 {
		t.Fatalf("expected exactly one notifier, got %d", len(notifiers))
	}
}

func assertConfigError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*model.ConfigError); !ok {
		t.Fatalf("expected *model.ConfigError, got %T: %v", err, err)
	}
}
