package transcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"roadscan/internal/apperr"
	"roadscan/internal/logger"
	"roadscan/internal/service/ai"
	"roadscan/internal/service/capture"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

const (
	inputName  = "input_video"
	outputName = "processed_video.mp4"
	// defaultFPS is used when the container does not report a frame rate.
	defaultFPS = 25.0
)

// ErrNoFrames is returned for inputs that decode to zero frames.
var ErrNoFrames = errors.New("video contains no frames")

// Transcoder runs detection over every frame of uploaded videos.
type Transcoder struct {
	infer   ai.Inferer
	codec   string
	tempDir string
	logger  *logger.Logger
}

// NewTranscoder creates a Transcoder writing codec-encoded output. Jobs are
// created under tempDir, or the system temp dir when it is empty.
func NewTranscoder(infer ai.Inferer, codec, tempDir string, logger *logger.Logger) *Transcoder {
	return &Transcoder{
		infer:   infer,
		codec:   codec,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Job is one upload's private working directory.
type Job struct {
	ID  string
	dir string
	t   *Transcoder
}

// NewJob creates a job with its own temporary directory. The caller must
// Close it.
func (t *Transcoder) NewJob() (*Job, error) {
	id := uuid.NewString()
	dir, err := os.MkdirTemp(t.tempDir, "transcode-"+id+"-")
	if err != nil {
		return nil, apperr.Resource("create job", err)
	}
	return &Job{ID: id, dir: dir, t: t}, nil
}

// InputPath is where SaveInput stores the upload.
func (j *Job) InputPath() string {
	return filepath.Join(j.dir, inputName)
}

// OutputPath is where Run writes the processed video.
func (j *Job) OutputPath() string {
	return filepath.Join(j.dir, outputName)
}

// SaveInput copies the uploaded video into the job directory.
func (j *Job) SaveInput(r io.Reader) (int64, error) {
	f, err := os.Create(j.InputPath())
	if err != nil {
		return 0, apperr.Resource("save upload", err)
	}

	n, err := io.Copy(f, r)
	err = multierr.Append(err, f.Close())
	if err != nil {
		return n, apperr.Transport("save upload", err)
	}
	return n, nil
}

// Run transcodes the saved input and returns the output path. On any error
// no output file is left behind.
func (j *Job) Run(ctx context.Context, threshold float64) (path string, err error) {
	src, err := capture.OpenFile(j.InputPath())
	if err != nil {
		return "", err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
		if err != nil {
			os.Remove(j.OutputPath())
			path = ""
		}
	}()

	info := src.Info()
	fps := info.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	if info.Width <= 0 || info.Height <= 0 {
		return "", apperr.Input("transcode", fmt.Errorf("%w: unreadable frame size %dx%d", ErrNoFrames, info.Width, info.Height))
	}

	writer, err := gocv.VideoWriterFile(j.OutputPath(), j.t.codec, fps, info.Width, info.Height, true)
	if err != nil {
		return "", apperr.Resource("open writer", err)
	}
	defer func() {
		err = multierr.Append(err, writer.Close())
	}()
	if !writer.IsOpened() {
		return "", apperr.Resource("open writer", fmt.Errorf("codec %q not available", j.t.codec))
	}

	size := image.Pt(info.Width, info.Height)
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", apperr.Transport("transcode", err)
		}

		frame, err := src.Next()
		if errors.Is(err, capture.ErrEndOfStream) {
			break
		}
		if err != nil {
			return "", apperr.Resource("read frame", err)
		}

		err = j.t.writeFrame(ctx, writer, frame, size, threshold)
		if err != nil {
			return "", fmt.Errorf("frame %d: %w", frame.Seq, err)
		}
		written++
	}

	if written == 0 {
		return "", apperr.Input("transcode", ErrNoFrames)
	}

	j.t.logger.Info("Job %s: processed %d frame(s) of %s at %.2f fps", j.ID, written, filepath.Base(src.Name()), fps)
	return j.OutputPath(), nil
}

// writeFrame consumes frame.
func (t *Transcoder) writeFrame(ctx context.Context, writer *gocv.VideoWriter, frame capture.Frame, size image.Point, threshold float64) error {
	defer frame.Close()

	batch, err := t.infer.Infer(ctx, frame.Mat, threshold)
	if err != nil {
		return err
	}
	if err := ai.Annotate(&frame.Mat, batch); err != nil {
		return err
	}

	out := frame.Mat
	if frame.Mat.Cols() != size.X || frame.Mat.Rows() != size.Y {
		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(frame.Mat, &resized, size, 0, 0, gocv.InterpolationArea); err != nil {
			return fmt.Errorf("resize: %w", err)
		}
		out = resized
	}

	if err := writer.Write(out); err != nil {
		return apperr.Resource("write frame", err)
	}
	return nil
}

// Close removes the job directory and everything in it.
func (j *Job) Close() error {
	return os.RemoveAll(j.dir)
}
