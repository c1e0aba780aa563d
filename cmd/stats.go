package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log, closeLog := newLogger(cfg)
		defer closeLog()

		store, err := catalog.Open(cfg.DatabasePath(), log)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer store.Close()

		stats, err := store.CollectStats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Libraries:   %d\n", stats.LibraryCount)
		fmt.Printf("Media:       %d (%d bytes)\n", stats.MediaTotal, stats.TotalFileSize)
		for mediaType, count := range stats.MediaByType {
			fmt.Printf("  %-10s %d\n", mediaType, count)
		}
		fmt.Println("By status:")
		for status, count := range stats.MediaByStatus {
			fmt.Printf("  %-10s %d\n", status, count)
		}
		fmt.Printf("Frames:      %d\n", stats.FrameCount)
		fmt.Printf("Detections:  %d\n", stats.DetectionCount)
		fmt.Printf("Transcripts: %d\n", stats.TranscriptCount)
		fmt.Printf("Faces:       %d (%d assigned)\n", stats.FaceCount, stats.AssignedFaces)
		fmt.Printf("Persons:     %d\n", stats.PersonCount)
		fmt.Printf("Active jobs: %d\n", stats.ActiveJobCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
