package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ArticlesPublisher/internal/app"
	"ArticlesPublisher/internal/config"
	"ArticlesPublisher/internal/logging"
)

var cfgFile string

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "articlespublisher",
		Short:        "Discover, transform and publish articles to WordPress on a schedule",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $ARTICLES_PUBLISHER_CONFIG)")

	root.AddCommand(runCommand(), onceCommand(), discoverCommand(), verifyCommand())
	return root
}

func loadConfig() (config.Config, error) {
	var cfg config.Config
	if cfgFile != "" {
		cfg = config.LoadFile(cfgFile)
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(*app.Application) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close application", "error", err)
		}
	}()
	return fn(application)
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler and the control API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				return a.Run(cmd.Context())
			})
		},
	}
}

func onceCommand() *cobra.Command {
	var campaignID string
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Evaluate one scheduler tick, or run a campaign immediately with --campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				info, err := a.RunOnce(cmd.Context(), campaignID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if info == nil {
					fmt.Fprintln(out, "no campaign was due")
					return nil
				}
				fmt.Fprintf(out, "run %s finished for campaign %s\n", info.RunID, info.CampaignID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id to run regardless of its schedule")
	return cmd
}

func discoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <url>",
		Short: "Detect how a source can be scanned and list its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.Application) error {
				refs, method, err := a.Discover(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(refs) == 0 {
					fmt.Fprintln(out, "no candidates found")
					return nil
				}
				fmt.Fprintf(out, "method: %s, %d candidates\n", method, len(refs))
				for _, ref := range refs {
					fmt.Fprintf(out, "%s\t%s\n", ref.ObservedAt.Format("2006-01-02"), ref.URL)
				}
				return nil
			})
		},
	}
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <campaign-id>",
		Short: "Check the CMS credentials of a campaign and list its categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.Application) error {
				categories, err := a.Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "connected, %d categories\n", len(categories))
				for _, c := range categories {
					fmt.Fprintf(out, "%d\t%s\t%s\n", c.ID, c.Slug, c.Name)
				}
				return nil
			})
		},
	}
}
