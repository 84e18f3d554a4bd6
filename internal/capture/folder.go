package capture

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FolderSource emits every image file of a directory as a frame. It is
// the offline counterpart of a camera feed: a producer goroutine reads
// files into a channel consumed by the single detection loop.
type FolderSource struct {
	dir string
}

// NewFolderSource creates a source over a directory of images.
func NewFolderSource(dir string) *FolderSource {
	return &FolderSource{dir: dir}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// Frames lists the directory once and streams its images in name order.
// Unreadable files are logged and skipped. The channel closes when the
// listing is exhausted or the context is cancelled.
func (s *FolderSource) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame)

	go func() {
		defer close(out)

		entries, err := os.ReadDir(s.dir)
		if err != nil {
			log.Printf("reading frame directory %s: %v", s.dir, err)
			return
		}

		var names []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			path := filepath.Join(s.dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("skipping unreadable frame %s: %v", path, err)
				continue
			}

			select {
			case out <- Frame{Ref: path, Data: data, At: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
