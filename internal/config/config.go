package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPollIntervalMs     = 1000
	defaultResponsePollMs     = 2000
	defaultReadyTimeoutSec    = 90
	defaultResponseTimeoutSec = 300
	defaultSettleDelayMs      = 800
	defaultScrapeSettleMs     = 1000
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Mail    MailConfig    `yaml:"mail"`
	Chat    ChatConfig    `yaml:"chat"`
	Webhook WebhookConfig `yaml:"webhook"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
}

// MailConfig holds settings for the mail source the collector reads from
type MailConfig struct {
	Provider    string `yaml:"provider"`     // "imap" or "gmail"
	Server      string `yaml:"server"`       // e.g., "imap.gmail.com"
	Port        int    `yaml:"port"`         // e.g., 993
	Email       string `yaml:"email"`        // Mailbox to read
	Password    string `yaml:"password"`     // App password (not main password)
	SourceLabel string `yaml:"source_label"` // Label/folder holding unprocessed meeting notes
	DoneLabel   string `yaml:"done_label"`   // Label/folder threads are moved to after ingestion

	// Gmail API provider only
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	TokenFile       string `yaml:"token_file,omitempty"`
}

// ChatConfig describes the external chat page and the timing of the
// automation that drives it. Selectors are an implementation detail of
// that one page and can be overridden without a rebuild.
type ChatConfig struct {
	BaseURL            string    `yaml:"base_url"`
	Headless           bool      `yaml:"headless"`
	PollIntervalMs     int       `yaml:"poll_interval_ms"`
	ResponsePollMs     int       `yaml:"response_poll_ms"`
	ReadyTimeoutSec    int       `yaml:"ready_timeout_sec"`
	ResponseTimeoutSec int       `yaml:"response_timeout_sec"`
	SettleDelayMs      int       `yaml:"settle_delay_ms"`
	ScrapeSettleMs     int       `yaml:"scrape_settle_ms"`
	Selectors          Selectors `yaml:"selectors,omitempty"`
}

// Selectors locate the page affordances the agent needs
type Selectors struct {
	Input      string `yaml:"input"`      // Editable input surface
	Send       string `yaml:"send"`       // Submit control
	Generating string `yaml:"generating"` // "generation in progress" indicator
	Table      string `yaml:"table"`      // Result table
}

// WebhookConfig is shared by both legs: URL and Key are what the agent
// posts to, Port is where the receiver listens.
type WebhookConfig struct {
	URL  string `yaml:"url"`
	Key  string `yaml:"key"`
	Port int    `yaml:"port"`
}

// NotifyConfig holds optional operator-notification email settings
type NotifyConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Provider string     `yaml:"provider"` // "smtp", "resend", "sendgrid"
	From     string     `yaml:"from"`
	To       string     `yaml:"to"`
	APIKey   string     `yaml:"api_key,omitempty"`
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".recap", "config.yaml")
}

func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recap.db"
	}
	return filepath.Join(home, ".recap", "recap.db")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Mail.SourceLabel == "" {
		c.Mail.SourceLabel = "Meeting Notes"
	}
	if c.Mail.DoneLabel == "" {
		c.Mail.DoneLabel = "Meeting Notes/Processed"
	}
	if c.Mail.Provider == "imap" && c.Mail.Server == "" && strings.HasSuffix(c.Mail.Email, "@gmail.com") {
		c.Mail.Server = "imap.gmail.com"
		c.Mail.Port = 993
	}
	if c.Mail.Provider == "gmail" {
		if c.Mail.CredentialsFile == "" {
			c.Mail.CredentialsFile = "credentials.json"
		}
		if c.Mail.TokenFile == "" {
			c.Mail.TokenFile = "token.json"
		}
	}

	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = "https://gemini.google.com/app"
	}
	if c.Chat.PollIntervalMs == 0 {
		c.Chat.PollIntervalMs = defaultPollIntervalMs
	}
	if c.Chat.ResponsePollMs == 0 {
		c.Chat.ResponsePollMs = defaultResponsePollMs
	}
	if c.Chat.ReadyTimeoutSec == 0 {
		c.Chat.ReadyTimeoutSec = defaultReadyTimeoutSec
	}
	if c.Chat.ResponseTimeoutSec == 0 {
		c.Chat.ResponseTimeoutSec = defaultResponseTimeoutSec
	}
	if c.Chat.SettleDelayMs == 0 {
		c.Chat.SettleDelayMs = defaultSettleDelayMs
	}
	if c.Chat.ScrapeSettleMs == 0 {
		c.Chat.ScrapeSettleMs = defaultScrapeSettleMs
	}
	if c.Chat.Selectors.Input == "" {
		c.Chat.Selectors.Input = `div[contenteditable="true"]`
	}
	if c.Chat.Selectors.Send == "" {
		c.Chat.Selectors.Send = `button[aria-label="Send message"]`
	}
	if c.Chat.Selectors.Generating == "" {
		c.Chat.Selectors.Generating = `button[aria-label="Stop generating"]`
	}
	if c.Chat.Selectors.Table == "" {
		c.Chat.Selectors.Table = "table"
	}

	if c.Webhook.Port == 0 {
		c.Webhook.Port = 8484
	}

	if c.Notify.Provider == "smtp" && c.Notify.SMTP.Host == "" {
		c.Notify.SMTP.Host = "smtp.gmail.com"
		c.Notify.SMTP.Port = 465
		c.Notify.SMTP.UseTLS = true
	}

	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath()
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks the settings every command depends on. A missing or
// mismatched key renders the whole pipeline inert, so it fails fast here.
func (c *Config) Validate() error {
	if c.Webhook.Key == "" {
		return fmt.Errorf("webhook: key is required")
	}
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("chat: base_url is required")
	}
	return nil
}

// ValidateMail validates mail-source settings (only called by commands
// that actually touch the mailbox)
func (c *Config) ValidateMail() error {
	switch c.Mail.Provider {
	case "imap":
		if c.Mail.Email == "" {
			return fmt.Errorf("mail: email address is required")
		}
		if c.Mail.Password == "" {
			return fmt.Errorf("mail: password (app password) is required")
		}
		if c.Mail.Server == "" {
			return fmt.Errorf("mail: IMAP server is required")
		}
		if c.Mail.Port == 0 {
			return fmt.Errorf("mail: IMAP port is required")
		}
	case "gmail":
		if c.Mail.CredentialsFile == "" {
			return fmt.Errorf("mail: credentials_file is required for the gmail provider")
		}
	case "":
		return fmt.Errorf("mail: provider is required (imap or gmail)")
	default:
		return fmt.Errorf("mail: unknown provider %q (imap or gmail)", c.Mail.Provider)
	}
	if c.Mail.SourceLabel == c.Mail.DoneLabel {
		return fmt.Errorf("mail: source_label and done_label must differ")
	}
	return nil
}

// ValidateDelivery checks the settings the agent needs to post results back
func (c *Config) ValidateDelivery() error {
	if c.Webhook.URL == "" {
		return fmt.Errorf("webhook: url is required to deliver scraped results")
	}
	return c.Validate()
}

// ValidateNotify validates notification settings (only called when
// notifications are enabled)
func (c *Config) ValidateNotify() error {
	if !c.Notify.Enabled {
		return nil
	}
	if c.Notify.To == "" || c.Notify.From == "" {
		return fmt.Errorf("notify: from and to addresses are required")
	}
	switch c.Notify.Provider {
	case "smtp":
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.Port == 0 {
			return fmt.Errorf("notify.smtp: host and port are required")
		}
	case "resend", "sendgrid":
		if c.Notify.APIKey == "" {
			return fmt.Errorf("notify: api_key is required for provider %q", c.Notify.Provider)
		}
	default:
		return fmt.Errorf("notify: unknown provider %q (smtp, resend or sendgrid)", c.Notify.Provider)
	}
	return nil
}
