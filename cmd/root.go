package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gaze-engine",
	Short: "Local media indexing and search engine",
	Long: `Gaze Engine indexes photo and video libraries on this machine:
it extracts frames, embeds them for semantic search, detects objects
and faces, transcribes speech and answers multi-modal queries, all
backed by a single SQLite catalog under the data directory.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
