package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "class-attendance",
	Short: "Face recognition attendance for classrooms",
	Long: `Class Attendance recognizes enrolled students on camera frames and
keeps an append-only attendance ledger per teaching period. It serves a
web API with a live detection feed, imports rosters from the legacy
MariaDB system and exports attendance as CSV.`,
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
