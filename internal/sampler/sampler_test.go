package sampler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeSession is an in-memory Session. Seeks complete asynchronously.
type fakeSession struct {
	duration      float64
	width, height int
	frameW        int
	frameH        int
	failSeekAt    int // 1-based seek number that fails, 0 = never
	hangSeekAt    int // 1-based seek number that never completes
	failCapture   bool

	mu          sync.Mutex
	seeks       []float64
	inFlight    int
	maxInFlight int
	current     float64
	closed      int
}

func (f *fakeSession) Duration() float64 { return f.duration }
func (f *fakeSession) Size() (int, int)  { return f.width, f.height }

func (f *fakeSession) Seek(t float64) <-chan error {
	ch := make(chan error, 1)

	f.mu.Lock()
	f.seeks = append(f.seeks, t)
	n := len(f.seeks)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if n == f.hangSeekAt {
		return ch
	}

	go func() {
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		f.inFlight--
		f.current = t
		f.mu.Unlock()
		if n == f.failSeekAt {
			ch <- errors.New("decoder error")
			return
		}
		ch <- nil
	}()
	return ch
}

func (f *fakeSession) CurrentFrame() (image.Image, error) {
	if f.failCapture {
		return nil, errors.New("no frame")
	}
	w, h := f.width, f.height
	if f.frameW > 0 {
		w, h = f.frameW, f.frameH
	}
	f.mu.Lock()
	shade := uint8(int(f.current*10) % 256)
	f.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: 10, B: 20, A: 255})
		}
	}
	return img, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func openerFor(sess *fakeSession) Opener {
	return OpenerFunc(func(ctx context.Context, path string) (Session, error) {
		return sess, nil
	})
}

func TestTimestamps(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		maxFrames int
		wantLen   int
		wantLast  float64
	}{
		{"six seconds", 6.0, 12, 12, 5.5},
		{"unknown duration", 0, 12, 12, 11.0 / 12.0},
		{"negative duration", -3, 4, 4, 0.75},
		{"two frames", 10, 2, 2, 5},
		{"no frames", 10, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Timestamps(tt.duration, tt.maxFrames)
			if len(got) != tt.wantLen {
				t.Fatalf("len(Timestamps()) = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}
			if got[0] != 0 {
				t.Errorf("first timestamp = %v, want 0", got[0])
			}
			if math.Abs(got[len(got)-1]-tt.wantLast) > 1e-9 {
				t.Errorf("last timestamp = %v, want %v", got[len(got)-1], tt.wantLast)
			}
			for i := 1; i < len(got); i++ {
				if got[i] <= got[i-1] {
					t.Errorf("timestamps not strictly increasing at %d: %v", i, got)
				}
			}
		})
	}
}

func TestSampleSixSecondVideo(t *testing.T) {
	sess := &fakeSession{duration: 6.0, width: 32, height: 18}
	s := New(openerFor(sess), Config{})

	frames, err := s.Sample(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(frames) != 12 {
		t.Fatalf("len(frames) = %d, want 12", len(frames))
	}

	for i, f := range frames {
		want := float64(i) * 0.5
		if math.Abs(f.Timestamp-want) > 1e-9 {
			t.Errorf("frame %d timestamp = %v, want %v", i, f.Timestamp, want)
		}
		if b := f.Image.Bounds(); b.Dx() != 32 || b.Dy() != 18 {
			t.Errorf("frame %d size = %dx%d, want 32x18", i, b.Dx(), b.Dy())
		}
	}
	if frames[0].Label != "Fotograma 0.0s" || frames[11].Label != "Fotograma 5.5s" {
		t.Errorf("labels = %q ... %q", frames[0].Label, frames[11].Label)
	}

	if sess.maxInFlight != 1 {
		t.Errorf("max seeks in flight = %d, want 1", sess.maxInFlight)
	}
	if sess.closed == 0 {
		t.Error("session was not closed")
	}
}

func TestSampleDurationFallback(t *testing.T) {
	sess := &fakeSession{duration: 0, width: 8, height: 8}
	frames, err := New(openerFor(sess), Config{MaxFrames: 4}).Sample(context.Background(), "x")
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	want := []float64{0, 0.25, 0.5, 0.75}
	if len(frames) != len(want) {
		t.Fatalf("len(frames) = %d, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if math.Abs(f.Timestamp-want[i]) > 1e-9 {
			t.Errorf("frame %d timestamp = %v, want %v", i, f.Timestamp, want[i])
		}
	}
}

func TestSampleResizesToNativeSize(t *testing.T) {
	sess := &fakeSession{duration: 1, width: 40, height: 20, frameW: 20, frameH: 20}
	frames, err := New(openerFor(sess), Config{MaxFrames: 1}).Sample(context.Background(), "x")
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if b := frames[0].Image.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("frame size = %dx%d, want 40x20", b.Dx(), b.Dy())
	}
}

func TestSampleFailures(t *testing.T) {
	tests := []struct {
		name    string
		sess    *fakeSession
		timeout time.Duration
		wantErr error
	}{
		{
			name: "seek error midway",
			sess: &fakeSession{duration: 6, width: 8, height: 8, failSeekAt: 5},
		},
		{
			name: "capture error",
			sess: &fakeSession{duration: 6, width: 8, height: 8, failCapture: true},
		},
		{
			name:    "seek timeout",
			sess:    &fakeSession{duration: 6, width: 8, height: 8, hangSeekAt: 3},
			timeout: 20 * time.Millisecond,
			wantErr: ErrSeekTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(openerFor(tt.sess), Config{SeekTimeout: tt.timeout})
			frames, err := s.Sample(context.Background(), "x")
			if err == nil {
				t.Fatal("Sample() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Sample() error = %v, want %v", err, tt.wantErr)
			}
			if frames != nil {
				t.Errorf("Sample() returned %d frames on failure, want nil", len(frames))
			}
			if tt.sess.closed == 0 {
				t.Error("session was not closed after failure")
			}
		})
	}
}

func TestSampleOpenError(t *testing.T) {
	boom := errors.New("cannot open")
	s := New(OpenerFunc(func(ctx context.Context, path string) (Session, error) {
		return nil, boom
	}), Config{})

	frames, err := s.Sample(context.Background(), "x")
	if !errors.Is(err, boom) || frames != nil {
		t.Errorf("Sample() = (%v, %v), want (nil, %v)", frames, err, boom)
	}
}

func TestSampleCancelled(t *testing.T) {
	sess := &fakeSession{duration: 6, width: 8, height: 8, hangSeekAt: 1}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := New(openerFor(sess), Config{SeekTimeout: time.Minute}).Sample(ctx, "x")
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Sample() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sample() did not return after cancel")
	}
}

func TestStateMachine(t *testing.T) {
	m := &machine{}
	steps := []struct {
		next state
		ok   bool
	}{
		{stateCaptured, false},
		{stateSeeking, true},
		{stateSeeking, false},
		{stateCaptured, true},
		{stateSeeking, true},
		{stateCaptured, true},
		{stateDone, true},
		{stateSeeking, false},
	}

	for i, step := range steps {
		err := m.to(step.next, float64(i))
		if step.ok && err != nil {
			t.Errorf("step %d -> %s: unexpected error %v", i, step.next, err)
		}
		if !step.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("step %d -> %s: error = %v, want ErrInvalidTransition", i, step.next, err)
		}
	}
}
