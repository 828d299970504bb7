package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelsmith/reelsmith/internal/timeline"
)

var exportCmd = &cobra.Command{
	Use:   "export [flags]",
	Short: "Export a timeline as an FCP7 XML sequence",
	Long: `Export reads a timeline emitted by assemble, verifies its integrity,
and writes a Final Cut Pro 7 interchange XML sequence. Premiere Pro
imports the file directly and relinks the clips to their original
sources for manual finishing.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("timeline", "", "timeline JSON to export (required)")
	exportCmd.Flags().String("out", "", "output path (default: timeline path with .xml extension)")
	_ = exportCmd.MarkFlagRequired("timeline")
}

func runExport(cmd *cobra.Command, args []string) error {
	timelinePath, _ := cmd.Flags().GetString("timeline")
	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = strings.TrimSuffix(timelinePath, ".json") + ".xml"
	}

	tl, err := timeline.Read(timelinePath)
	if err != nil {
		return err
	}
	if err := timeline.Verify(tl); err != nil {
		return err
	}

	if err := timeline.WriteFCP7(outPath, tl); err != nil {
		return fmt.Errorf("exporting sequence: %w", err)
	}

	fmt.Println(outPath)
	return nil
}
