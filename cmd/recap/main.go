package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recap-reports/recap/internal/agent"
	"github.com/recap-reports/recap/internal/aggregator"
	"github.com/recap-reports/recap/internal/collector"
	"github.com/recap-reports/recap/internal/config"
	"github.com/recap-reports/recap/internal/launcher"
	"github.com/recap-reports/recap/internal/mail"
	"github.com/recap-reports/recap/internal/notify"
	"github.com/recap-reports/recap/internal/pipeline"
	"github.com/recap-reports/recap/internal/store"
	"github.com/recap-reports/recap/internal/webhook"
)

var cfgFile string

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "recap",
		Short: "Recap - Meeting notes to structured weekly reports",
		Long: `Recap collects labeled meeting-notes emails, bundles them into a single
prompt for a chat AI's web page, automates the page to generate a report
table, and catches the scraped result over a local webhook.

The chat page has no API; the URL fragment carries the job in, and the
webhook carries the table back out.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recap/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(resetLabelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with mail, chat page and webhook settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Ingest labeled meeting-notes emails into the raw table",
		Long: `Scan the mail source for threads bearing the source label, append one
raw row per thread and relabel each thread so a re-run is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect()
		},
	}
}

func reportCmd() *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the weekly report (collect + aggregate + launch)",
		Long: `Run the full hosted-side pipeline: collect new meeting notes, bundle
them into one job, and open the chat page with the job in the URL
fragment. By default an automated browser works the page and posts the
result back to the webhook; with --manual the job URL opens in your own
browser for a userscript-style agent to pick up.

Aggregated rows are marked Processed before the hand-off. If the
hand-off then fails, those rows stay Processed; re-run 'recap
reset-labels' and collect again to rebuild the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(manual)
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Open the job URL in the system browser instead of automating")

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver",
		Long: `Listen for the browser-side agent's POST and append the scraped report
rows to the processed table. The only authentication is the shared key;
keep the endpoint on a trusted network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from config)")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show row counts for both tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all rows from both tables (schema preserved)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(yes)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

func resetLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-labels",
		Short: "Move processed mail threads back under the source label",
		Long:  "Undo the label swap for every ingested thread so the next collect sees them again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetLabels()
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config (run 'recap init' first): %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📝 Recap Configuration Setup")
	fmt.Println("=============================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("📬 Mail Source (where meeting notes arrive)")
	fmt.Println()
	cfg.Mail.Provider = promptDefault(reader, "Provider (imap/gmail) [imap]: ", "imap")
	if cfg.Mail.Provider == "imap" {
		cfg.Mail.Email = prompt(reader, "  Mailbox address: ")
		cfg.Mail.Password = prompt(reader, "  App password: ")
		cfg.Mail.Server = promptDefault(reader, "  IMAP server [imap.gmail.com]: ", "imap.gmail.com")
		cfg.Mail.Port = 993
	} else {
		fmt.Println("  (Place credentials.json next to the binary; the first run walks you through OAuth)")
	}
	cfg.Mail.SourceLabel = promptDefault(reader, "  Source label [Meeting Notes]: ", "Meeting Notes")
	cfg.Mail.DoneLabel = promptDefault(reader, "  Done label [Meeting Notes/Processed]: ", "Meeting Notes/Processed")

	fmt.Println()
	fmt.Println("🤖 Chat Page")
	fmt.Println()
	cfg.Chat.BaseURL = promptDefault(reader, "  Base URL [https://gemini.google.com/app]: ", "https://gemini.google.com/app")

	fmt.Println()
	fmt.Println("🔑 Webhook")
	fmt.Println()
	cfg.Webhook.Key = prompt(reader, "  Shared secret key: ")
	cfg.Webhook.URL = prompt(reader, "  Webhook URL the agent posts to (e.g. http://localhost:8484/hook): ")

	cfg.ApplyDefaults()

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'recap serve' in one terminal to receive results")
	fmt.Println("  2. Run 'recap report' to generate the weekly report")
	fmt.Println("  3. Run 'recap status' to watch the tables fill up")

	return nil
}

func runCollect() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateMail(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := mail.Open(ctx, cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to open mail source: %w", err)
	}
	defer src.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	count, err := collector.Collect(ctx, src, st)
	if err != nil {
		return err
	}

	fmt.Printf("📥 Collected %d meeting note(s)\n", count)
	return nil
}

func runReport(manual bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateMail(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !manual {
		if err := cfg.ValidateDelivery(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := mail.Open(ctx, cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to open mail source: %w", err)
	}
	defer src.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var launch pipeline.Launcher
	if manual {
		launch = pipeline.LaunchFunc(func(ctx context.Context, jobURL string) error {
			if err := launcher.OpenSystemBrowser(jobURL); err != nil {
				fmt.Println("⚠️  Could not open a browser. Paste this URL into one yourself:")
				fmt.Println(jobURL)
				return err
			}
			fmt.Println("🌐 Job opened in your browser; the page-side agent takes it from here.")
			return nil
		})
	} else {
		ag := agent.New(agent.ConfigFromChat(cfg.Chat), webhook.NewClient(cfg.Webhook.URL, cfg.Webhook.Key))
		launch = pipeline.LaunchFunc(func(ctx context.Context, jobURL string) error {
			fmt.Println("🤖 Driving the chat page (this takes as long as the AI does)...")
			return ag.Run(ctx, jobURL)
		})
	}

	sum, err := pipeline.Run(ctx, src, st, cfg.Chat.BaseURL, launch)
	if sum != nil && sum.Collected > 0 {
		fmt.Printf("📥 Collected %d meeting note(s)\n", sum.Collected)
	}
	switch {
	case err == nil:
	case err == aggregator.ErrEmptySource:
		fmt.Println("📭 Raw table is empty; nothing to report.")
		return nil
	case err == aggregator.ErrNothingNew:
		fmt.Println("✨ No new meeting notes; everything is already aggregated.")
		return nil
	default:
		notifyFailure(cfg, err)
		return err
	}

	fmt.Printf("📊 Aggregated %d note(s) into one job\n", sum.Aggregated)
	if !manual {
		fmt.Println("✅ Report rows delivered to the webhook.")
	}
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateNotify(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if port == 0 {
		port = cfg.Webhook.Port
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("📡 Webhook receiver listening on :%d\n", port)
	fmt.Println("Press Ctrl+C to stop")

	server := webhook.NewServer(st, cfg.Webhook.Key, port, notifier)
	return server.Start(ctx)
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	raw, err := st.RawCounts()
	if err != nil {
		return err
	}
	meetings, err := st.MeetingCounts()
	if err != nil {
		return err
	}

	fmt.Println("📊 Recap Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Raw notes:          %d total (%d new, %d processed)\n", raw.Total, raw.New, raw.Processed)
	fmt.Printf("Processed meetings: %d total (%d new)\n", meetings.Total, meetings.New)
	fmt.Printf("Store:              %s\n", cfg.Store.Path)
	return nil
}

func runClear(yes bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !yes {
		reader := bufio.NewReader(os.Stdin)
		answer := prompt(reader, "Delete ALL rows from both tables? This cannot be undone. [y/N]: ")
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Truncate(); err != nil {
		return err
	}
	fmt.Println("🧹 Both tables cleared (schema preserved).")
	return nil
}

func runResetLabels() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateMail(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := mail.Open(ctx, cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to open mail source: %w", err)
	}
	defer src.Close()

	moved, err := src.Reset(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("🔄 Moved %d thread(s) back under %q\n", moved, cfg.Mail.SourceLabel)
	return nil
}

func notifyFailure(cfg *config.Config, pipelineErr error) {
	notifier, err := notify.New(cfg.Notify)
	if err != nil || notifier == nil {
		return
	}
	msg := notify.Message{
		Subject: "recap: report pipeline failed",
		Body:    fmt.Sprintf("The report run failed: %v", pipelineErr),
	}
	if err := notifier.Notify(context.Background(), msg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to notify operator: %v\n", err)
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := reader.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptDefault(reader *bufio.Reader, label, def string) string {
	if v := prompt(reader, label); v != "" {
		return v
	}
	return def
}
