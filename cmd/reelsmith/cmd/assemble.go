package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reelsmith/reelsmith/internal/analysis/music"
	"github.com/reelsmith/reelsmith/internal/analysis/visual"
	"github.com/reelsmith/reelsmith/internal/assembler"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/selector"
	"github.com/reelsmith/reelsmith/internal/story"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble [flags] CLIP...",
	Short: "Assemble a highlight preview from clips and a music track",
	Long: `Assemble analyzes the music track for tempo and bar structure, trims
each clip to the musical grid around its best visual moment, and renders
a 720p preview with the music overlaid.

With --ai the clips are first scored by the content analyzers and only
the best ones are used, ordered by story arc. The run always emits a
timeline JSON next to the preview; feed it to "reelsmith conform" to
re-render from the originals at master quality.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().String("music", "", "music track (required)")
	assembleCmd.Flags().Int("target", 0, "target duration in seconds (0 = 3s per clip)")
	assembleCmd.Flags().String("temp-dir", "", "workspace directory (default: fresh per-run directory)")
	assembleCmd.Flags().Bool("ai", false, "select and order clips with content analysis")
	assembleCmd.Flags().String("style", "", "narrative style hint for AI selection")
	assembleCmd.Flags().String("preset", "", "style preset (traditional, modern, intimate, destination)")
	assembleCmd.Flags().String("style-file", "", "YAML file with style preset overrides")
	_ = assembleCmd.MarkFlagRequired("music")
}

func runAssemble(cmd *cobra.Command, args []string) error {
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

	musicPath, _ := cmd.Flags().GetString("music")
	target, _ := cmd.Flags().GetInt("target")
	tempDir, _ := cmd.Flags().GetString("temp-dir")
	useAI, _ := cmd.Flags().GetBool("ai")
	style, _ := cmd.Flags().GetString("style")
	preset, _ := cmd.Flags().GetString("preset")
	styleFile, _ := cmd.Flags().GetString("style-file")

	var presetOverride *story.Preset
	if styleFile != "" {
		presets, err := story.LoadPresets(styleFile)
		if err != nil {
			return fmt.Errorf("loading style file: %w", err)
		}
		name := preset
		if name == "" {
			name = "traditional"
		}
		p, ok := presets[name]
		if !ok {
			return fmt.Errorf("style preset %q not found in %s", name, styleFile)
		}
		presetOverride = p
	}

	var sel *selector.Selector
	if useAI {
		sel = buildSelector(cfg, runner, prober, cfg.Selector.BatchSize)
	}

	extractor := media.NewFrameExtractor(runner)
	asm := assembler.New(
		runner,
		prober,
		music.NewAnalyzer(runner, nil),
		visual.NewAnalyzer(extractor, prober, nil),
		sel,
		cfg.Proxy,
		cfg.Storage,
		nil,
	)

	result, err := asm.Assemble(ctx, assembler.Request{
		Clips:          args,
		Music:          musicPath,
		TargetSeconds:  target,
		Workspace:      tempDir,
		UseAISelection: useAI,
		Style:          style,
		StylePreset:    preset,
		Preset:         presetOverride,
	})
	if err != nil {
		return fmt.Errorf("assembling preview: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
