package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/sampler"
)

// ErrSessionClosed is returned by a VideoSession after Close.
var ErrSessionClosed = errors.New("video session closed")

// VideoInfo contains the properties of a video reported by ffprobe.
type VideoInfo struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// parseProbe extracts VideoInfo from ffprobe's JSON output. A missing or
// unparseable duration is reported as 0.
func parseProbe(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width, info.Height, info.Codec = s.Width, s.Height, s.CodecName
		if info.Duration <= 0 {
			info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// Probe retrieves duration and dimensions of the video at path.
func (d *Decoder) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, d.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.FFmpegDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

func (d *Decoder) runFFmpeg(ctx context.Context, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(d.ffmpeg); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.ffmpeg, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}

// VideoSession is a seekable decode session over a video file. Each seek
// extracts one frame with ffmpeg in the background; completion is signalled
// on the channel returned by Seek.
type VideoSession struct {
	decoder *Decoder
	path    string
	info    *VideoInfo
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	seeking bool
	closed  bool
	frame   image.Image
	wg      sync.WaitGroup
}

// OpenVideo probes the video at path and returns a session over it. The
// session must be closed; Close cancels any running seek.
func (d *Decoder) OpenVideo(ctx context.Context, path string) (*VideoSession, error) {
	info, err := d.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	d.log.Debug("opened %s: %.2fs %dx%d (%s)", path, info.Duration, info.Width, info.Height, info.Codec)

	sctx, cancel := context.WithCancel(ctx)
	return &VideoSession{
		decoder: d,
		path:    path,
		info:    info,
		ctx:     sctx,
		cancel:  cancel,
	}, nil
}

// OpenSession is OpenVideo returning the sampler.Session interface.
func (d *Decoder) OpenSession(ctx context.Context, path string) (sampler.Session, error) {
	s, err := d.OpenVideo(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Duration returns the reported duration in seconds, 0 if unknown.
func (s *VideoSession) Duration() float64 { return s.info.Duration }

// Size returns the native frame dimensions.
func (s *VideoSession) Size() (int, int) { return s.info.Width, s.info.Height }

// Seek starts extracting the frame at t seconds. Only one seek may be in
// flight; a second call before completion fails with sampler.ErrSeekInFlight.
func (s *VideoSession) Seek(t float64) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		done <- ErrSessionClosed
		close(done)
		return done
	case s.seeking:
		s.mu.Unlock()
		done <- sampler.ErrSeekInFlight
		close(done)
		return done
	}
	s.seeking = true
	s.frame = nil
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(done)

		img, err := s.extract(t)

		s.mu.Lock()
		s.seeking = false
		if err == nil {
			s.frame = img
		}
		s.mu.Unlock()

		done <- err
	}()
	return done
}

func (s *VideoSession) extract(t float64) (image.Image, error) {
	start := time.Now()
	// -ss before -i seeks on the demuxer, which is fast and accurate enough
	// for coarse sampling.
	out, err := s.decoder.runFFmpeg(s.ctx,
		"-ss", strconv.FormatFloat(t, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	metrics.FFmpegDuration.WithLabelValues("frame").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("seek to %.3fs: %w", t, err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame at %.3fs: %w", t, err)
	}
	return img, nil
}

// CurrentFrame returns the frame captured by the last completed seek.
func (s *VideoSession) CurrentFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.frame == nil {
		return nil, fmt.Errorf("no frame captured")
	}
	return s.frame, nil
}

// Close cancels a running seek and waits for it to finish. It is safe to
// call more than once.
func (s *VideoSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.frame = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}
