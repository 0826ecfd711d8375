// Package config loads and validates the single YAML configuration
// document spec.md §6 describes. The Load(path)/Validate() shape, pointer
// fields for optional settings, and defaults-applied-after-unmarshal
// pattern are grounded on N2WQ-GoCluster/config's Load function; the
// table-driven test style (t.TempDir() + os.WriteFile + Load) is reused
// directly from that package's own tests.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/distr1/backupd/internal/cronspec"
	"github.com/distr1/backupd/internal/model"
	"github.com/distr1/backupd/internal/notify"
)

// Config is the root of the YAML document.
type Config struct {
	Cron            string           `yaml:"cron"`
	ArchiveBaseName string           `yaml:"archive_base_name"`
	OutDir          string           `yaml:"out_dir"`
	Files           []SourceConfig   `yaml:"files"`
	Compressor      CompressorConfig `yaml:"compressor"`
	Encryptor       EncryptorConfig  `yaml:"encryptor"`
	Retention       RetentionConfig  `yaml:"retention"`
	Notifications   []NotifierConfig `yaml:"notifications"`
}

// SourceConfig is a tagged-variant source descriptor. Exactly one of
// Sqlite, Glob, InlineBlob must be set.
type SourceConfig struct {
	Sqlite     *SqliteConfig     `yaml:"sqlite"`
	Glob       *GlobConfig       `yaml:"glob"`
	InlineBlob *InlineBlobConfig `yaml:"inline_blob"`
}

type SqliteConfig struct {
	SrcPath string `yaml:"src_path"`
	DstPath string `yaml:"dst_path"`
}

type GlobConfig struct {
	SrcDir    string   `yaml:"src_dir"`
	DstPrefix string   `yaml:"dst_prefix"`
	Patterns  []string `yaml:"patterns"`
}

type InlineBlobConfig struct {
	ContentB64 string `yaml:"content_b64"`
	DstPath    string `yaml:"dst_path"`
}

// CompressorConfig configures the C stage. Level and Threads are pointers
// so an absent key can be distinguished from an explicit zero.
type CompressorConfig struct {
	Type    string `yaml:"type"`
	Level   *int   `yaml:"level"`
	Threads *int   `yaml:"thread"`
}

// EncryptorConfig configures the D stage.
type EncryptorConfig struct {
	Type       string `yaml:"type"`
	SecretType string `yaml:"secret_type"`
	Passphrase string `yaml:"passphrase"`
}

// RetentionConfig configures the F stage, with durations spelled as
// "<int><unit>" (unit in days/months/years), matching spec.md §6.
type RetentionConfig struct {
	DefaultRetention string `yaml:"default_retention"`
	DailyRetention   string `yaml:"daily_retention"`
	MonthlyRetention string `yaml:"monthly_retention"`
	YearlyRetention  string `yaml:"yearly_retention"`
	MinBackups       *int   `yaml:"min_backups"`
}

// NotifierConfig configures one H-component notifier. Only "smtp" is
// currently implemented.
type NotifierConfig struct {
	Host     string   `yaml:"host"`
	SMTPMode string   `yaml:"smtp_mode"` // "Ssl" or "StartTls"
	Port     *int     `yaml:"port"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

// defaultMinBackups is the retention safety floor applied when the document
// omits min_backups.
const defaultMinBackups = 1

// defaultSMTPPort is applied when a notifier config omits port.
const defaultSMTPPort = 587

// Load reads and parses the YAML document at path, then validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Reason: fmt.Sprintf("reading config file: %v", err)}
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, &model.ConfigError{Reason: fmt.Sprintf("parsing config file: %v", err)}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Retention.MinBackups == nil {
		n := defaultMinBackups
		c.Retention.MinBackups = &n
	}
	for i := range c.Notifications {
		if c.Notifications[i].Port == nil {
			p := defaultSMTPPort
			c.Notifications[i].Port = &p
		}
	}
}

// Validate checks the document for the startup-fatal problems spec.md §7
// names under ConfigError: missing keys, invalid cron, invalid base64,
// unknown variant tags, unwritable output directory.
func (c *Config) Validate() error {
	if c.Cron == "" {
		return &model.ConfigError{Reason: "cron is required"}
	}
	if _, err := cronspec.Parse(c.Cron); err != nil {
		return err
	}
	if c.ArchiveBaseName == "" {
		return &model.ConfigError{Reason: "archive_base_name is required"}
	}
	if c.OutDir == "" {
		return &model.ConfigError{Reason: "out_dir is required"}
	}
	if info, err := os.Stat(c.OutDir); err != nil {
		return &model.ConfigError{Reason: fmt.Sprintf("out_dir %q: %v", c.OutDir, err)}
	} else if !info.IsDir() {
		return &model.ConfigError{Reason: fmt.Sprintf("out_dir %q is not a directory", c.OutDir)}
	}
	probe, err := os.CreateTemp(c.OutDir, ".backupd-write-probe-*")
	if err != nil {
		return &model.ConfigError{Reason: fmt.Sprintf("out_dir %q is not writable: %v", c.OutDir, err)}
	}
	probe.Close()
	os.Remove(probe.Name())
	if len(c.Files) == 0 {
		return &model.ConfigError{Reason: "files must list at least one source"}
	}
	for i, f := range c.Files {
		if err := f.validate(i); err != nil {
			return err
		}
	}
	if c.Compressor.Type != "xz" {
		return &model.ConfigError{Reason: fmt.Sprintf("compressor.type %q unsupported, only \"xz\"", c.Compressor.Type)}
	}
	if c.Encryptor.Type != "age" || c.Encryptor.SecretType != "passphrase" {
		return &model.ConfigError{Reason: "encryptor must be type=age, secret_type=passphrase"}
	}
	if c.Encryptor.Passphrase == "" {
		return &model.ConfigError{Reason: "encryptor.passphrase is required"}
	}
	if c.Retention.DefaultRetention == "" {
		return &model.ConfigError{Reason: "retention.default_retention is required"}
	}
	if _, err := parseDuration(c.Retention.DefaultRetention); err != nil {
		return &model.ConfigError{Reason: fmt.Sprintf("retention.default_retention: %v", err)}
	}
	for _, notifier := range c.Notifications {
		if notifier.SMTPMode != "Ssl" && notifier.SMTPMode != "StartTls" {
			return &model.ConfigError{Reason: fmt.Sprintf("notifications.smtp_mode %q unsupported", notifier.SMTPMode)}
		}
	}
	return nil
}

func (f SourceConfig) validate(index int) error {
	set := 0
	if f.Sqlite != nil {
		set++
	}
	if f.Glob != nil {
		set++
	}
	if f.InlineBlob != nil {
		set++
	}
	if set != 1 {
		return &model.ConfigError{Reason: fmt.Sprintf("files[%d]: exactly one of sqlite/glob/inline_blob must be set", index)}
	}
	if f.InlineBlob != nil {
		if _, err := base64.StdEncoding.DecodeString(f.InlineBlob.ContentB64); err != nil {
			return &model.ConfigError{Reason: fmt.Sprintf("files[%d]: invalid base64 content: %v", index, err)}
		}
	}
	return nil
}

var durationPattern = regexp.MustCompile(`^(\d+)(days|months|years)$`)

// parseDuration parses spec.md §6's "<int><unit>" retention duration
// grammar into an approximate time.Duration (a month counts as 30 days and
// a year as 365 days, matching how the retention engine treats
// bucket TTLs as elapsed wall-clock time rather than calendar arithmetic).
func parseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q, want \"<int>days|months|years\"", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	day := 24 * time.Hour
	switch m[2] {
	case "days":
		return time.Duration(n) * day, nil
	case "months":
		return time.Duration(n) * 30 * day, nil
	case "years":
		return time.Duration(n) * 365 * day, nil
	}
	return 0, fmt.Errorf("invalid duration unit in %q", s)
}

// ToModel converts the parsed document into the model types the pipeline,
// retention, and notify packages operate on. Called once at startup after
// Validate succeeds.
func (c *Config) ToModel() (model.ArchivePipelineConfig, model.RetentionPolicy, []notify.Notifier, error) {
	sources := make([]model.SourceDescriptor, len(c.Files))
	for i, f := range c.Files {
		switch {
		case f.Sqlite != nil:
			sources[i] = model.SourceDescriptor{Sqlite: &model.SqliteSource{
				SrcPath: f.Sqlite.SrcPath,
				DstPath: f.Sqlite.DstPath,
			}}
		case f.Glob != nil:
			sources[i] = model.SourceDescriptor{Glob: &model.GlobSource{
				SrcDir:    f.Glob.SrcDir,
				DstPrefix: f.Glob.DstPrefix,
				Patterns:  f.Glob.Patterns,
			}}
		case f.InlineBlob != nil:
			sources[i] = model.SourceDescriptor{InlineBlob: &model.InlineBlobSource{
				ContentB64: f.InlineBlob.ContentB64,
				DstPath:    f.InlineBlob.DstPath,
			}}
		}
	}

	level := 6
	if c.Compressor.Level != nil {
		level = *c.Compressor.Level
	}
	threads := 1
	if c.Compressor.Threads != nil {
		threads = *c.Compressor.Threads
	}

	pipelineCfg := model.ArchivePipelineConfig{
		Sources:            sources,
		CompressionLevel:   level,
		CompressionThreads: threads,
		EncryptionSecret:   c.Encryptor.Passphrase,
		BaseName:           c.ArchiveBaseName,
		OutDir:             c.OutDir,
	}

	defaultTTL, err := parseDuration(c.Retention.DefaultRetention)
	if err != nil {
		return model.ArchivePipelineConfig{}, model.RetentionPolicy{}, nil, err
	}
	policy := model.RetentionPolicy{DefaultTTL: defaultTTL, MinKeep: *c.Retention.MinBackups}
	if c.Retention.DailyRetention != "" {
		d, err := parseDuration(c.Retention.DailyRetention)
		if err != nil {
			return model.ArchivePipelineConfig{}, model.RetentionPolicy{}, nil, err
		}
		policy.DailyTTL = &d
	}
	if c.Retention.MonthlyRetention != "" {
		d, err := parseDuration(c.Retention.MonthlyRetention)
		if err != nil {
			return model.ArchivePipelineConfig{}, model.RetentionPolicy{}, nil, err
		}
		policy.MonthlyTTL = &d
	}
	if c.Retention.YearlyRetention != "" {
		d, err := parseDuration(c.Retention.YearlyRetention)
		if err != nil {
			return model.ArchivePipelineConfig{}, model.RetentionPolicy{}, nil, err
		}
		policy.YearlyTTL = &d
	}

	var notifiers []notify.Notifier
	for _, n := range c.Notifications {
		mode := notify.StartTLS
		if n.SMTPMode == "Ssl" {
			mode = notify.ImplicitTLS
		}
		notifiers = append(notifiers, notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     n.Host,
			Port:     *n.Port,
			Username: n.Username,
			Password: n.Password,
			From:     n.From,
			To:       n.To,
			Mode:     mode,
		}))
	}

	return pipelineCfg, policy, notifiers, nil
}
