package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reelsmith/reelsmith/internal/conform"
)

var conformCmd = &cobra.Command{
	Use:   "conform [flags]",
	Short: "Re-render a timeline from the original sources at master quality",
	Long: `Conform reads a timeline emitted by assemble, verifies its integrity
and that every recorded source is unchanged, then re-renders the same
edit from the originals at master quality (CRF 18).

The music track recorded in the timeline is overlaid by default; use
--music to substitute another track or --no-audio for a silent master.`,
	RunE: runConform,
}

func init() {
	rootCmd.AddCommand(conformCmd)

	conformCmd.Flags().String("timeline", "", "timeline JSON to conform (required)")
	conformCmd.Flags().String("out", "", "output path (default: highlight_master.mp4 in the workspace)")
	conformCmd.Flags().String("music", "", "music track override")
	conformCmd.Flags().Bool("no-audio", false, "render without an audio track")
	conformCmd.Flags().String("temp-dir", "", "workspace directory")
	_ = conformCmd.MarkFlagRequired("timeline")
}

func runConform(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, prober, err := buildToolchain(ctx, cfg)
	if err != nil {
		return err
	}

	timelinePath, _ := cmd.Flags().GetString("timeline")
	outPath, _ := cmd.Flags().GetString("out")
	musicOverride, _ := cmd.Flags().GetString("music")
	noAudio, _ := cmd.Flags().GetBool("no-audio")
	tempDir, _ := cmd.Flags().GetString("temp-dir")

	c := conform.New(runner, prober, cfg.Proxy, cfg.Storage, nil)
	master, err := c.Conform(ctx, conform.Options{
		TimelinePath:  timelinePath,
		OutputPath:    outPath,
		MusicOverride: musicOverride,
		NoAudio:       noAudio,
		TempDir:       tempDir,
	})
	if err != nil {
		return fmt.Errorf("conforming master: %w", err)
	}

	fmt.Println(master)
	return nil
}
