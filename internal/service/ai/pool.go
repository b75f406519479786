package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"roadscan/internal/apperr"
	"roadscan/internal/logger"
	"roadscan/internal/models"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// ErrPoolClosed is returned by Infer after Close.
var ErrPoolClosed = errors.New("inference pool closed")

// Inferer runs detection on a frame without blocking past ctx.
type Inferer interface {
	Infer(ctx context.Context, frame gocv.Mat, threshold float64) (models.Batch, error)
}

type inferenceTask struct {
	input     gocv.Mat
	size      image.Point
	threshold float64
	result    chan inferenceResult
}

type inferenceResult struct {
	batch models.Batch
	err   error
}

// Pool runs inference on a fixed set of workers, each owning one Adapter.
type Pool struct {
	adapters []*Adapter
	tasks    chan inferenceTask
	done     chan struct{}
	logger   *logger.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewPool starts one worker per adapter.
func NewPool(adapters []*Adapter, logger *logger.Logger) *Pool {
	pool := &Pool{
		adapters: adapters,
		tasks:    make(chan inferenceTask),
		done:     make(chan struct{}),
		logger:   logger,
	}

	for i, adapter := range adapters {
		pool.wg.Add(1)
		go pool.worker(i, adapter)
	}

	logger.Info("Inference pool started with %d worker(s)", len(adapters))
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.adapters)
}

// Infer prepares frame on the calling goroutine and waits for a worker to
// run the model on it. The frame itself stays with the caller. If ctx ends
// first, Infer returns at once and the worker discards the result.
func (p *Pool) Infer(ctx context.Context, frame gocv.Mat, threshold float64) (models.Batch, error) {
	input, size, err := Prepare(frame)
	if err != nil {
		return nil, err
	}

	task := inferenceTask{
		input:     input,
		size:      size,
		threshold: threshold,
		result:    make(chan inferenceResult, 1),
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		input.Close()
		return nil, apperr.Transport("infer", ctx.Err())
	case <-p.done:
		input.Close()
		return nil, ErrPoolClosed
	}

	select {
	case res := <-task.result:
		return res.batch, res.err
	case <-ctx.Done():
		return nil, apperr.Transport("infer", ctx.Err())
	}
}

// worker owns adapter and every input it receives.
func (p *Pool) worker(id int, adapter *Adapter) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			batch, err := predict(adapter, task)
			task.input.Close()
			if err != nil {
				p.logger.Warning("Inference worker %d: %v", id, err)
			}
			task.result <- inferenceResult{batch: batch, err: err}
		}
	}
}

// predict runs one task, reporting a panicking model as an inference error.
func predict(adapter *Adapter, task inferenceTask) (batch models.Batch, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch, err = nil, apperr.Inference("predict", fmt.Errorf("model panic: %v", r))
		}
	}()
	return adapter.Predict(task.input, task.size, task.threshold)
}

// Close stops the workers after their current task and releases models
// that implement io.Closer.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()

		for _, adapter := range p.adapters {
			if c, ok := adapter.Model().(io.Closer); ok {
				p.closeErr = multierr.Append(p.closeErr, c.Close())
			}
		}
		p.logger.Info("All inference workers stopped")
	})
	return p.closeErr
}
