package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records as CSV",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("from", "", "First date YYYY-MM-DD (inclusive)")
	exportCmd.Flags().String("to", "", "Last date YYYY-MM-DD (inclusive)")
	exportCmd.Flags().String("class", "", "Only export this class")
	exportCmd.Flags().String("period", "", "Only export this period")
	exportCmd.Flags().String("output", "", "Output file (defaults to stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
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

	filter := export.Filter{
		FromDate: mustGetString(cmd, "from"),
		ToDate:   mustGetString(cmd, "to"),
		Class:    mustGetString(cmd, "class"),
		Period:   mustGetString(cmd, "period"),
	}

	out := os.Stdout
	if path := mustGetString(cmd, "output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	n, err := export.WriteCSV(ctx, out, b.attendance, filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d records\n", n)
	return nil
}
