package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/database"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <photo>...",
	Short: "Enroll a student from reference photos",
	Long: `Enroll a student from one or more reference photos. Each photo must
contain exactly one face; every photo adds a reference encoding, which
improves recognition across lighting and pose changes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("family-name", "", "Student family name (required)")
	enrollCmd.Flags().String("given-name", "", "Student given name (required)")
	enrollCmd.Flags().String("class", "", "Class name (required)")
	enrollCmd.Flags().String("school-year", "", "School year, e.g. 2025-2026")
	enrollCmd.MarkFlagRequired("family-name")
	enrollCmd.MarkFlagRequired("given-name")
	enrollCmd.MarkFlagRequired("class")
}

func runEnroll(cmd *cobra.Command, args []string) error {
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

	locator, extractor := buildCaptureStack(cfg)

	className := mustGetString(cmd, "class")
	classID, err := b.roster.CreateClass(ctx, className)
	if err != nil {
		return fmt.Errorf("creating class %s: %w", className, err)
	}

	student := database.Student{
		FamilyName: mustGetString(cmd, "family-name"),
		GivenName:  mustGetString(cmd, "given-name"),
		ClassID:    classID,
		ClassName:  className,
		SchoolYear: mustGetString(cmd, "school-year"),
	}
	if err := b.roster.CreateStudent(ctx, &student); err != nil {
		return fmt.Errorf("creating student: %w", err)
	}

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Enrolling photos"),
		progressbar.OptionShowCount(),
	)

	added := 0
	for _, path := range args {
		bar.Add(1)

		imageData, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("\nSkipping %s: %v\n", path, err)
			continue
		}

		box, err := locator.Locate(ctx, imageData)
		if err != nil {
			if errors.Is(err, capture.ErrNoFace) || errors.Is(err, capture.ErrMultipleFaces) {
				fmt.Printf("\nSkipping %s: %v\n", path, err)
				continue
			}
			return fmt.Errorf("detecting face in %s: %w", path, err)
		}

		feats, err := extractor.Extract(imageData, box)
		if err != nil {
			fmt.Printf("\nSkipping %s: %v\n", path, err)
			continue
		}

		enc := database.StoredEncoding{
			StudentID: student.ID,
			ImagePath: path,
			Encoding:  feats.Full,
			Probe:     feats.Probe,
		}
		if err := b.roster.AddEncoding(ctx, &enc); err != nil {
			return fmt.Errorf("storing encoding from %s: %w", path, err)
		}
		added++
	}

	fmt.Printf("\nEnrolled %s %s (%s) with %d of %d photos\n",
		student.GivenName, student.FamilyName, className, added, len(args))
	if added == 0 {
		return errors.New("no usable reference photo; student has no encodings")
	}
	return nil
}
