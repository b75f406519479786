package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roadscan/internal/apperr"
	"roadscan/internal/logger"
	"roadscan/internal/models"

	"gocv.io/x/gocv"
)

type closingModel struct {
	ModelFunc
	closed atomic.Bool
}

func (m *closingModel) Close() error {
	m.closed.Store(true)
	return nil
}

func TestPool_Infer(t *testing.T) {
	pool := NewPool([]*Adapter{NewAdapter(fixedModel(models.Candidate{ClassID: 1, Score: 0.7, X1: 0, Y1: 0, X2: 320, Y2: 320}))}, logger.Discard())
	defer pool.Close()

	frame := newFrame(200, 100)
	defer frame.Close()

	batch, err := pool.Infer(context.Background(), frame, 0.5)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if len(batch) != 1 || batch[0].Box != (models.Box{0, 0, 100, 50}) || batch[0].Label != "Transverse Crack" {
		t.Errorf("Unexpected batch %+v", batch)
	}
}

func TestPool_ConcurrentCallersUseAllWorkers(t *testing.T) {
	var active, peak atomic.Int32
	model := ModelFunc(func(gocv.Mat, float64) ([]models.Candidate, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	})

	pool := NewPool([]*Adapter{NewAdapter(model), NewAdapter(model), NewAdapter(model)}, logger.Discard())
	defer pool.Close()

	frame := newFrame(32, 32)
	defer frame.Close()

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Infer(context.Background(), frame, 0.5); err != nil {
				t.Errorf("Infer failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if p := peak.Load(); p < 2 || p > 3 {
		t.Errorf("Expected 2-3 concurrent predictions, got %d", p)
	}
}

func TestPool_CancelledCallerReturnsWhileModelRuns(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	model := ModelFunc(func(gocv.Mat, float64) ([]models.Candidate, error) {
		<-release
		close(finished)
		return []models.Candidate{{Score: 1}}, nil
	})

	pool := NewPool([]*Adapter{NewAdapter(model)}, logger.Discard())
	defer pool.Close()

	frame := newFrame(32, 32)
	defer frame.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Infer(ctx, frame, 0.5)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !apperr.Is(err, apperr.KindTransport) || !errors.Is(err, context.Canceled) {
			t.Errorf("Expected cancelled transport error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Infer did not return after cancel")
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Model call did not finish")
	}

	batch, err := pool.Infer(context.Background(), frame, 0.5)
	if err != nil || len(batch) != 1 {
		t.Errorf("Worker not reusable after dropped result: %v, %v", batch, err)
	}
}

func TestPool_CloseReleasesModelsAndRejectsWork(t *testing.T) {
	model := &closingModel{ModelFunc: fixedModel()}
	pool := NewPool([]*Adapter{NewAdapter(model)}, logger.Discard())

	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if !model.closed.Load() {
		t.Error("Expected model to be closed")
	}

	frame := newFrame(8, 8)
	defer frame.Close()
	if _, err := pool.Infer(context.Background(), frame, 0.5); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
}

func TestPool_ModelPanicIsInferenceError(t *testing.T) {
	var calls atomic.Int32
	model := ModelFunc(func(input gocv.Mat, threshold float64) ([]models.Candidate, error) {
		if calls.Add(1) == 1 {
			panic("corrupt network")
		}
		return []models.Candidate{{ClassID: 3, Score: 0.9, X1: 0, Y1: 0, X2: 64, Y2: 64}}, nil
	})
	pool := NewPool([]*Adapter{NewAdapter(model)}, logger.Discard())
	defer pool.Close()

	frame := newFrame(64, 64)
	defer frame.Close()

	if _, err := pool.Infer(context.Background(), frame, 0.5); !apperr.Is(err, apperr.KindInference) {
		t.Fatalf("Expected inference error from a panicking model, got %v", err)
	}

	batch, err := pool.Infer(context.Background(), frame, 0.5)
	if err != nil {
		t.Fatalf("Worker did not survive the panic: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("Expected 1 detection, got %d", len(batch))
	}
}
