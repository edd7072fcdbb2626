package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abhisek/examforge/internal/app"
	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/i18n"
	"github.com/abhisek/examforge/internal/practice"
	"github.com/abhisek/examforge/internal/prefetch"
	"github.com/abhisek/examforge/internal/screens/setup"
	"github.com/abhisek/examforge/internal/server"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Practice in the terminal with background prefetching",
	Long: "Runs the practice TUI. Batches are generated in-process unless --server\n" +
		"points at a running `examforge serve`.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		serverURL, _ := cmd.Flags().GetString("server")
		trackFlag, _ := cmd.Flags().GetString("track")
		resumeID, _ := cmd.Flags().GetString("resume")

		track, err := batch.ParseTrack(trackFlag)
		if err != nil {
			return err
		}

		// Log lines would tear the alt screen.
		logger := slog.New(slog.DiscardHandler)
		slog.SetDefault(logger)
		ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(cfg.Language))

		var backend practice.Backend
		if serverURL != "" {
			backend = practice.Remote(server.NewClient(serverURL, server.WithLanguage(cfg.Language)))
		} else {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc, err := newService(ctx, cfg, st, logger)
			if err != nil {
				return err
			}
			backend = practice.Local(svc)
		}

		pcfg := prefetch.Config{Threshold: cfg.PrefetchThreshold, Retry: cfg.Retry}
		initial := setup.New(ctx, backend, track, pcfg, prefetch.WithLogger(logger)).ResumeOnStart(resumeID)
		return app.Run(ctx, initial)
	},
}

func init() {
	practiceCmd.Flags().String("server", "", "Base URL of an examforge server (generate in-process if empty)")
	practiceCmd.Flags().String("track", string(batch.TrackScientific), "Track (scientific, literary)")
	practiceCmd.Flags().String("resume", "", "Resume the session with this ID")
}
