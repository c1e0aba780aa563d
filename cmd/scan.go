package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/scanner"
)

var scanFlat bool

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Scan a folder into the catalog",
	Long: `Register the folder as a library (if it is not one already) and
reconcile the catalog with its contents. Discovered files are queued
for indexing the next time the engine runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanFlat, "flat", false, "do not descend into subdirectories")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log, closeLog := newLogger(cfg)
	defer closeLog()

	folder, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving folder: %w", err)
	}
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("library folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", folder)
	}

	store, err := catalog.Open(cfg.DatabasePath(), log)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	lib, err := store.GetLibraryByPath(ctx, folder)
	if errors.Is(err, catalog.ErrNotFound) {
		lib = &catalog.Library{
			LibraryID:  uuid.NewString(),
			FolderPath: folder,
			Name:       filepath.Base(folder),
			Recursive:  !scanFlat,
		}
		if err := store.CreateLibrary(ctx, lib); err != nil {
			return err
		}
		fmt.Printf("Registered library %s (%s)\n", lib.Name, lib.LibraryID)
	} else if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	result, err := scanner.New(store, cfg, log).Scan(ctx, lib, func(p scanner.Progress) {
		if bar == nil {
			bar = progressbar.NewOptions(p.Total,
				progressbar.OptionSetDescription("Scanning"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("files"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(p.Scanned)
	})
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Scanned %d files: %d new, %d changed, %d unchanged, %d deleted\n",
		result.Total, result.New, result.Changed, result.Unchanged, result.Deleted)
	if result.LivePairs > 0 {
		fmt.Printf("Paired %d live photos\n", result.LivePairs)
	}
	return nil
}
