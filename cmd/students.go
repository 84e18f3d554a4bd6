package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List enrolled students",
	RunE:  runStudents,
}

func init() {
	rootCmd.AddCommand(studentsCmd)

	studentsCmd.Flags().String("class", "", "Only show students of this class")
}

func runStudents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.pool.Close()

	entries, err := b.roster.AllEntries(ctx)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	classFilter := mustGetString(cmd, "class")
	shown := 0
	for _, entry := range entries {
		s := entry.Student
		if classFilter != "" && s.ClassName != classFilter {
			continue
		}
		fmt.Printf("%4d  %-20s %-15s %-8s %d encodings\n",
			s.ID, s.FamilyName, s.GivenName, s.ClassName, len(entry.Encodings))
		shown++
	}
	fmt.Printf("%d students\n", shown)
	return nil
}
