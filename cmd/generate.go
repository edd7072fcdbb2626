package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one batch for a fresh context and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		typeFlag, _ := cmd.Flags().GetString("type")
		sectionFlag, _ := cmd.Flags().GetString("section")
		trackFlag, _ := cmd.Flags().GetString("track")
		size, _ := cmd.Flags().GetInt("size")
		categories, _ := cmd.Flags().GetStringSlice("categories")

		typ, err := batch.ParseSessionType(typeFlag)
		if err != nil {
			return err
		}
		section, err := batch.ParseSection(sectionFlag)
		if err != nil {
			return err
		}
		track, err := batch.ParseTrack(trackFlag)
		if err != nil {
			return err
		}
		if size <= 0 {
			size = cfg.BatchSizes()[typ]
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		orch, err := newOrchestrator(ctx, cfg, st.EventRepo(), cachecost.NewMetrics(), slog.Default())
		if err != nil {
			return err
		}

		bc := batch.BatchConfig{
			SessionID:  uuid.NewString(),
			BatchIndex: 0,
			BatchSize:  size,
			Section:    section,
			Track:      track,
			Categories: categories,
		}
		res, err := orch.GenerateBatch(ctx, bc, batch.NewGenerationContext())
		if err != nil {
			return fmt.Errorf("generate batch: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	generateCmd.Flags().String("type", string(batch.SessionPractice), "Session type (practice, full)")
	generateCmd.Flags().String("section", string(batch.SectionQuantitative), "Section (quantitative, verbal)")
	generateCmd.Flags().String("track", string(batch.TrackScientific), "Track (scientific, literary)")
	generateCmd.Flags().Int("size", 0, "Questions in the batch (configured size for the type if 0)")
	generateCmd.Flags().StringSlice("categories", nil, "Pin the batch to these topics")
}
