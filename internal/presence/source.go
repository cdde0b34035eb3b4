package presence

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DirSource
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoFrames is returned by sources that hold no frames.
var ErrNoFrames = errors.New("no frames")

// FrameSource yields captured frames together with their playback offset.
type FrameSource interface {
	Next() (Frame, time.Duration, error)
}

// SequenceSource cycles through a fixed list of frames, advancing the
// playback offset by Interval on every call.
type SequenceSource struct {
	Interval time.Duration

	mu     sync.Mutex
	frames []Frame
	pos    int
	offset time.Duration
}

// NewSequenceSource samples each image once up front.
func NewSequenceSource(interval time.Duration, images ...image.Image) *SequenceSource {
	s := &SequenceSource{Interval: interval}
	for _, img := range images {
		s.frames = append(s.frames, NewFrame(img))
	}
	return s
}

// Next returns the next frame, wrapping around at the end.
func (s *SequenceSource) Next() (Frame, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}, 0, ErrNoFrames
	}
	f := s.frames[s.pos]
	off := s.offset
	s.pos = (s.pos + 1) % len(s.frames)
	s.offset += s.Interval
	return f, off, nil
}

// NewDirSource loads every PNG and JPEG file in dir, in name order.
func NewDirSource(dir string, interval time.Duration) (*SequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var imgs []image.Image
	for _, n := range names {
		img, err := decodeFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFrames)
	}
	return NewSequenceSource(interval, imgs...), nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode samples an encoded PNG or JPEG frame from raw bytes.
func Decode(r io.Reader) (Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return NewFrame(img), nil
}
