package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Chunk size limits.
const (
	// DefaultSize is the chunk size used by NewDefault.
	DefaultSize = 100
	// MinSize is the smallest allowed chunk size.
	MinSize = 1
	// MaxSize is the largest allowed chunk size.
	MaxSize = 1000
)

type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidSize is returned by New for sizes outside [MinSize, MaxSize].
const ErrInvalidSize = constError("batch size must be between 1 and 1000")

// ErrNilFunc is returned when no chunk function is given.
const ErrNilFunc = constError("batch function cannot be nil")

// Func handles one chunk. index is the 0-based chunk number.
type Func[T any] func(ctx context.Context, chunk []T, index int) error

// ProgressFunc is called after each chunk completes.
type ProgressFunc func(Snapshot)

// Processor runs a Func over fixed-size chunks of a slice.
type Processor[T any] struct {
	size       int
	onProgress ProgressFunc
}

// New returns a Processor with the given chunk size.
func New[T any](size int) (*Processor[T], error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	return &Processor[T]{size: size}, nil
}

// NewDefault returns a Processor with DefaultSize chunks.
func NewDefault[T any]() *Processor[T] {
	return &Processor[T]{size: DefaultSize}
}

// OnProgress registers fn to be called after every chunk.
func (p *Processor[T]) OnProgress(fn ProgressFunc) *Processor[T] {
	p.onProgress = fn
	return p
}

// Size returns the chunk size.
func (p *Processor[T]) Size() int { return p.size }

// Bounds returns the [start, end) index pairs of each chunk.
func (p *Processor[T]) Bounds(total int) [][2]int {
	n := (total + p.size - 1) / p.size
	out := make([][2]int, n)
	for i := range n {
		start := i * p.size
		out[i] = [2]int{start, min(start+p.size, total)}
	}
	return out
}

// Run processes chunks in order and stops at the first error or when ctx
// is done. An empty slice is a no-op.
func (p *Processor[T]) Run(ctx context.Context, items []T, fn Func[T]) error {
	if fn == nil {
		return ErrNilFunc
	}
	bounds := p.Bounds(len(items))
	progress := NewProgress(len(items), len(bounds))

	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := items[b[0]:b[1]]
		if err := fn(ctx, chunk, i); err != nil {
			return fmt.Errorf("batch %d failed: %w", i, err)
		}
		p.report(progress, len(chunk))
	}
	return nil
}

// RunConcurrent processes up to limit chunks at once. Every chunk runs even
// if others fail; all failures are returned joined.
func (p *Processor[T]) RunConcurrent(ctx context.Context, items []T, fn Func[T], limit int) error {
	if fn == nil {
		return ErrNilFunc
	}
	bounds := p.Bounds(len(items))
	progress := NewProgress(len(items), len(bounds))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(max(limit, 1))

	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		chunk := items[b[0]:b[1]]
		g.Go(func() error {
			if err := fn(ctx, chunk, i); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("batch %d failed: %w", i, err))
				mu.Unlock()
				return nil
			}
			p.report(progress, len(chunk))
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (p *Processor[T]) report(progress *Progress, n int) {
	snap := progress.Add(n)
	if p.onProgress != nil {
		p.onProgress(snap)
	}
}
