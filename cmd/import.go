package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/database/mariadb"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import students from the legacy MariaDB system",
	Long: `Import students from the legacy MariaDB attendance system.
Identities and class assignments are copied as-is; face encodings are
recomputed from the legacy reference photos, since the legacy feature
format is not compatible. Students whose photos are missing are imported
without encodings and reported at the end.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("photo-root", "", "Directory the legacy image paths are relative to")
	importCmd.Flags().Bool("dry-run", false, "List what would be imported without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Legacy.MariaDBDSN == "" {
		return errors.New("LEGACY_MARIADB_DSN environment variable is required")
	}

	ctx := context.Background()

	legacy, err := mariadb.NewPool(cfg.Legacy.MariaDBDSN)
	if err != nil {
		return fmt.Errorf("connecting to legacy MariaDB: %w", err)
	}
	defer legacy.Close()

	students, err := legacy.Students(ctx)
	if err != nil {
		return fmt.Errorf("reading legacy students: %w", err)
	}
	fmt.Printf("Found %d students in the legacy database\n", len(students))

	if mustGetBool(cmd, "dry-run") {
		for _, s := range students {
			fmt.Printf("  %s %s (%s) - %d reference photos\n",
				s.GivenName, s.FamilyName, s.ClassName, len(s.ImagePaths))
		}
		return nil
	}

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.pool.Close()

	locator, extractor := buildCaptureStack(cfg)
	photoRoot := mustGetString(cmd, "photo-root")

	bar := progressbar.NewOptions(len(students),
		progressbar.OptionSetDescription("Importing students"),
		progressbar.OptionShowCount(),
	)

	var withoutEncodings []string
	imported := 0
	for _, ls := range students {
		bar.Add(1)

		classID, err := b.roster.CreateClass(ctx, ls.ClassName)
		if err != nil {
			return fmt.Errorf("creating class %s: %w", ls.ClassName, err)
		}
		student := database.Student{
			FamilyName: ls.FamilyName,
			GivenName:  ls.GivenName,
			ClassID:    classID,
			ClassName:  ls.ClassName,
			SchoolYear: ls.SchoolYear,
			PhotoPath:  ls.PhotoPath,
		}
		if err := b.roster.CreateStudent(ctx, &student); err != nil {
			return fmt.Errorf("creating student %s %s: %w", ls.GivenName, ls.FamilyName, err)
		}
		imported++

		encoded := 0
		for _, imagePath := range ls.ImagePaths {
			path := imagePath
			if photoRoot != "" {
				path = filepath.Join(photoRoot, imagePath)
			}
			if reencodeLegacyPhoto(ctx, b, locator, extractor, student.ID, path) {
				encoded++
			}
		}
		if encoded == 0 {
			withoutEncodings = append(withoutEncodings,
				fmt.Sprintf("%s %s (%s)", student.GivenName, student.FamilyName, student.ClassName))
		}
	}

	fmt.Printf("\nImported %d students\n", imported)
	if len(withoutEncodings) > 0 {
		fmt.Printf("%d students have no usable reference photo:\n", len(withoutEncodings))
		for _, name := range withoutEncodings {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

// reencodeLegacyPhoto extracts and stores one encoding; failures are
// reported but never abort the import.
func reencodeLegacyPhoto(ctx context.Context, b *backends, locator capture.Locator, extractor capture.Extractor, studentID int64, path string) bool {
	imageData, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("\n  missing photo %s: %v\n", path, err)
		return false
	}

	box, err := locator.Locate(ctx, imageData)
	if err != nil {
		fmt.Printf("\n  unusable photo %s: %v\n", path, err)
		return false
	}

	feats, err := extractor.Extract(imageData, box)
	if err != nil {
		fmt.Printf("\n  unusable photo %s: %v\n", path, err)
		return false
	}

	enc := database.StoredEncoding{
		StudentID: studentID,
		ImagePath: path,
		Encoding:  feats.Full,
		Probe:     feats.Probe,
	}
	if err := b.roster.AddEncoding(ctx, &enc); err != nil {
		fmt.Printf("\n  failed to store encoding from %s: %v\n", path, err)
		return false
	}
	return true
}
