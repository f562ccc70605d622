package chessboard

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/edaniels/golog"
	"golang.org/x/sync/errgroup"
)

// Collector accumulates correspondence samples for one calibration session. Accepted
// samples are kept in the order they were added; rejected images are only counted.
type Collector struct {
	grid   *ObjectPointGrid
	cfg    *DetectionConfig
	logger golog.Logger

	mu       sync.Mutex
	samples  []*CorrespondenceSample
	failures int
}

// NewCollector creates a collector for the given pattern. A nil config uses
// DefaultDetectionConfig.
func NewCollector(grid *ObjectPointGrid, cfg *DetectionConfig, logger golog.Logger) *Collector {
	if cfg == nil {
		defaultCfg := DefaultDetectionConfig
		cfg = &defaultCfg
	}
	return &Collector{grid: grid, cfg: cfg, logger: logger}
}

// AddSample detects and refines the pattern corners in one calibration image and
// appends the resulting sample. On detection failure the image is counted as rejected
// and ErrPatternNotFound is returned; the session continues.
func (c *Collector) AddSample(img image.Image) (*CorrespondenceSample, error) {
	sample, err := c.processImage(img)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failures++
		return nil, err
	}
	c.samples = append(c.samples, sample)
	return sample, nil
}

// AddSamples processes a batch of calibration images in parallel. Per-image work shares
// no mutable state; accepted samples are appended in input order regardless of
// completion order. The per-image detection failures are counted, not returned; the
// error reports only batch-level problems such as cancellation.
func (c *Collector) AddSamples(ctx context.Context, imgs []image.Image) error {
	results := make([]*CorrespondenceSample, len(imgs))
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())
	for i, img := range imgs {
		i, img := i, img
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sample, err := c.processImage(img)
			if err != nil {
				c.logger.Debugw("calibration image rejected", "index", i, "error", err)
				return nil
			}
			results[i] = sample
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sample := range results {
		if sample == nil {
			c.failures++
			continue
		}
		c.samples = append(c.samples, sample)
	}
	return nil
}

// processImage runs detection and refinement without touching collector state.
func (c *Collector) processImage(img image.Image) (*CorrespondenceSample, error) {
	corners, err := DetectGrid(img, c.grid.Rows(), c.grid.Cols(), c.cfg)
	if err != nil {
		return nil, err
	}
	refined := RefineCorners(img, corners, c.cfg)
	return NewCorrespondenceSample(c.grid, refined)
}

// IsPatternDetected reports whether the full pattern is visible in the image, without
// refining or storing anything. The capture UI uses it to gate sample acceptance.
func (c *Collector) IsPatternDetected(img image.Image) bool {
	_, err := DetectGrid(img, c.grid.Rows(), c.grid.Cols(), c.cfg)
	return err == nil
}

// SuccessCount returns the number of accepted samples.
func (c *Collector) SuccessCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// FailureCount returns the number of rejected images.
func (c *Collector) FailureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Samples returns the accepted samples in acceptance order.
func (c *Collector) Samples() []*CorrespondenceSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CorrespondenceSample, len(c.samples))
	copy(out, c.samples)
	return out
}
