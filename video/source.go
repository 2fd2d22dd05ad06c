// Package video - frame acquisition for the motion-history pipeline.
//
// Sources deliver decoded grayscale frames one at a time and report io.EOF
// when the clip is exhausted. The pipeline never touches codecs or files
// itself; everything I/O-shaped lives here.
package video

import (
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	// Register decoders for frame-directory sources.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mhi/images"
)

// Source yields the frames of one clip in order.
type Source interface {
	// Next returns the next grayscale frame, or io.EOF when the clip ends.
	Next() (*images.Grid, error)
	// Close releases any underlying resources. Safe to call more than once.
	Close() error
}

// GridSource replays a fixed slice of grids, useful for synthetic clips in
// tests and for pre-decoded frame sequences.
type GridSource struct {
	frames []*images.Grid
	next   int
}

// NewGridSource wraps the given frames in a Source.
func NewGridSource(frames ...*images.Grid) *GridSource {
	return &GridSource{frames: frames}
}

// Next implements Source.
func (s *GridSource) Next() (*images.Grid, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

// Close implements Source.
func (s *GridSource) Close() error { return nil }

// FrameDir reads a directory of per-frame image files (frame-0.png,
// frame-1.png, ...) in numeric order. Files keep their frame number as the
// trailing integer of the base name, so mixed zero-padding still sorts
// correctly.
type FrameDir struct {
	paths []string
	next  int
}

// OpenFrameDir scans dir for supported image files and orders them by frame
// number.
//
// Arguments:
//   - dir: Directory containing the clip's frames.
//
// Returns:
//   - *FrameDir: The ordered source.
//   - error: If the directory cannot be read, contains no frames, or a file
//     name carries no frame number.
func OpenFrameDir(dir string) (*FrameDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "video: reading frame directory %s", dir)
	}

	type numbered struct {
		path  string
		frame int
	}
	var found []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		switch ext {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		frame, ok := trailingNumber(entry.Name()[:len(entry.Name())-len(ext)])
		if !ok {
			return nil, errors.Errorf("video: no frame number in %q", entry.Name())
		}
		found = append(found, numbered{path: filepath.Join(dir, entry.Name()), frame: frame})
	}
	if len(found) == 0 {
		return nil, errors.Errorf("video: no frames in %s", dir)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].frame < found[j].frame })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return &FrameDir{paths: paths}, nil
}

// Next implements Source by decoding the next frame file.
func (d *FrameDir) Next() (*images.Grid, error) {
	if d.next >= len(d.paths) {
		return nil, io.EOF
	}
	path := d.paths[d.next]
	d.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "video: opening frame %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "video: decoding frame %s", path)
	}
	return images.FromImage(img), nil
}

// Close implements Source.
func (d *FrameDir) Close() error { return nil }

// trailingNumber extracts the integer suffix of a file base name, e.g.
// "frame-0042" -> 42.
func trailingNumber(name string) (int, bool) {
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
