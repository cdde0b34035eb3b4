package presence

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

var (
	black = color.RGBA{0, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func TestNewFrameSize(t *testing.T) {
	f := NewFrame(solid(640, 480, black))
	require.Equal(t, SampleWidth, f.Bounds().Dx())
	require.Equal(t, 120, f.Bounds().Dy())

	wide := NewFrame(solid(1920, 200, black))
	require.Equal(t, MinSampleHeight, wide.Bounds().Dy())
}

func TestConfidenceClamp(t *testing.T) {
	require.Equal(t, 0.5, Confidence(0))
	require.Equal(t, 0.98, Confidence(1))
	require.InDelta(t, 0.8, Confidence(0.4), 1e-9)
}

func TestScanFirstFramePrimes(t *testing.T) {
	s := NewScanner(0, 0)
	_, triggered, ok := s.Scan(NewFrame(solid(32, 32, black)), time.Now())
	require.False(t, ok)
	require.False(t, triggered)
}

func TestScanIdenticalFramesStayLow(t *testing.T) {
	s := NewScanner(0, 0)
	now := time.Now()
	f := NewFrame(solid(32, 32, black))
	s.Scan(f, now)
	conf, triggered, ok := s.Scan(f, now.Add(500*time.Millisecond))
	require.True(t, ok)
	require.False(t, triggered)
	require.Equal(t, 0.5, conf)
}

func TestScanCooldownSuppressesRepeats(t *testing.T) {
	s := NewScanner(DefaultThreshold, DefaultCooldown)
	frames := []Frame{NewFrame(solid(32, 32, black)), NewFrame(solid(32, 32, white))}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var triggers []time.Time
	// alternate black and white every 500ms for 12s; every sample is above threshold
	for i := 0; i <= 24; i++ {
		now := start.Add(time.Duration(i) * 500 * time.Millisecond)
		conf, triggered, _ := s.Scan(frames[i%2], now)
		if i > 0 {
			require.Equal(t, 0.98, conf)
		}
		if triggered {
			triggers = append(triggers, now)
		}
	}
	require.Len(t, triggers, 3)
	for i := 1; i < len(triggers); i++ {
		require.GreaterOrEqual(t, triggers[i].Sub(triggers[i-1]), DefaultCooldown)
	}
}

func TestScanResetClearsCooldown(t *testing.T) {
	s := NewScanner(DefaultThreshold, time.Hour)
	now := time.Now()
	s.Scan(NewFrame(solid(8, 8, black)), now)
	_, triggered, _ := s.Scan(NewFrame(solid(8, 8, white)), now)
	require.True(t, triggered)
	s.Reset()
	s.Scan(NewFrame(solid(8, 8, black)), now)
	_, triggered, _ = s.Scan(NewFrame(solid(8, 8, white)), now)
	require.True(t, triggered)
}

func TestThreatLogCapAndSeek(t *testing.T) {
	l := NewThreatLog(2)
	a := l.Record(Entry{BotID: "VNR-07", Seek: 0.1})
	l.Record(Entry{BotID: "VNR-07", Seek: 4})
	c := l.Record(Entry{BotID: "VNR-07", Seek: 9.5})
	all := l.All()
	require.Len(t, all, 2)
	require.Equal(t, c.ID, all[0].ID)
	_, ok := l.Get(a.ID)
	require.False(t, ok)
	require.Equal(t, 0.0, a.ReplaySeek())
	require.InDelta(t, 9.2, c.ReplaySeek(), 1e-9)
}

func TestSequenceSource(t *testing.T) {
	src := NewSequenceSource(500*time.Millisecond, solid(8, 8, black), solid(8, 8, white))
	_, off0, err := src.Next()
	require.NoError(t, err)
	_, off1, _ := src.Next()
	_, off2, _ := src.Next()
	require.Equal(t, time.Duration(0), off0)
	require.Equal(t, 500*time.Millisecond, off1)
	require.Equal(t, time.Second, off2)

	_, _, err = NewSequenceSource(time.Second).Next()
	require.ErrorIs(t, err, ErrNoFrames)
}

func TestDirSourceAndDecode(t *testing.T) {
	dir := t.TempDir()
	for i, c := range []color.Color{black, white} {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, solid(16, 9, c)))
		require.NoError(t, os.WriteFile(filepath.Join(dir, []string{"a.png", "b.png"}[i]), buf.Bytes(), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	src, err := NewDirSource(dir, time.Second)
	require.NoError(t, err)
	f, _, err := src.Next()
	require.NoError(t, err)
	require.False(t, f.Empty())

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 4, white)))
	_, err = Decode(&buf)
	require.NoError(t, err)

	_, err = NewDirSource(t.TempDir(), time.Second)
	require.ErrorIs(t, err, ErrNoFrames)
}
