package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/prompt"
	"github.com/abhisek/examforge/internal/server"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Prompt cache cost estimates and server counters",
}

var cacheEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the input cost of a session with and without prompt caching",
	Long: "Token counts default to the sizes of the generated prompt for the given\n" +
		"section and track. The estimate is advisory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		model, _ := cmd.Flags().GetString("pricing-model")
		calls, _ := cmd.Flags().GetInt("calls")
		stable, _ := cmd.Flags().GetInt("stable-tokens")
		variable, _ := cmd.Flags().GetInt("variable-tokens")
		sectionFlag, _ := cmd.Flags().GetString("section")
		trackFlag, _ := cmd.Flags().GetString("track")

		section, err := batch.ParseSection(sectionFlag)
		if err != nil {
			return err
		}
		track, err := batch.ParseTrack(trackFlag)
		if err != nil {
			return err
		}
		if calls <= 0 {
			calls = cfg.MaxBatches
		}
		if stable <= 0 || variable <= 0 {
			p := prompt.Build(batch.BatchConfig{
				BatchSize: cfg.PracticeBatchSize,
				Section:   section,
				Track:     track,
			}, batch.NewGenerationContext())
			if stable <= 0 {
				stable = cachecost.EstimateTokens(p.Stable)
			}
			if variable <= 0 {
				variable = cachecost.EstimateTokens(p.Variable)
			}
		}

		cm := cfg.CacheModel(model)
		s := cm.EstimateBatchSavings(calls, stable, variable)

		fmt.Printf("Model:            %s\n", model)
		fmt.Printf("Calls:            %d\n", calls)
		fmt.Printf("Stable tokens:    %d\n", stable)
		fmt.Printf("Variable tokens:  %d\n", variable)
		if !cm.EligibleTokens(stable) {
			fmt.Printf("Cacheable:        no (below %d tokens)\n", cm.MinTokens)
		} else {
			fmt.Println("Cacheable:        yes")
		}
		fmt.Println(strings.Repeat("─", 40))
		fmt.Printf("Without cache:    %s\n", formatCost(s.FullCost))
		fmt.Printf("With cache:       %s\n", formatCost(s.CachedCost))
		fmt.Printf("Savings:          %s (%.1f%%)\n", formatCost(s.Savings), s.SavingsPercent)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the cache counters of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		reset, _ := cmd.Flags().GetBool("reset")

		m, err := server.NewClient(serverURL).CacheMetrics(cmd.Context(), reset)
		if err != nil {
			return fmt.Errorf("fetch cache metrics: %w", err)
		}

		fmt.Printf("Calls:     %d\n", m.TotalCalls)
		fmt.Printf("Hits:      %d\n", m.CacheHits)
		fmt.Printf("Misses:    %d\n", m.CacheMisses)
		fmt.Printf("Hit rate:  %.1f%%\n", m.HitRate*100)
		fmt.Printf("Savings:   %s\n", formatCost(m.CostSavings))
		if reset {
			fmt.Println("(counters reset)")
		}
		return nil
	},
}

func init() {
	cacheEstimateCmd.Flags().String("pricing-model", "claude-haiku-4-5-20251001", "Model whose pricing is used")
	cacheEstimateCmd.Flags().Int("calls", 0, "Calls sharing the stable prompt (max batches if 0)")
	cacheEstimateCmd.Flags().Int("stable-tokens", 0, "Tokens in the cacheable segment (estimated if 0)")
	cacheEstimateCmd.Flags().Int("variable-tokens", 0, "Tokens in the per-batch segment (estimated if 0)")
	cacheEstimateCmd.Flags().String("section", string(batch.SectionQuantitative), "Section used for prompt estimates")
	cacheEstimateCmd.Flags().String("track", string(batch.TrackScientific), "Track used for prompt estimates")

	cacheStatsCmd.Flags().String("server", "http://localhost:8080", "Base URL of an examforge server")
	cacheStatsCmd.Flags().Bool("reset", false, "Reset the counters after reading them")

	cacheCmd.AddCommand(cacheEstimateCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}
