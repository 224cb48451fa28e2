package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Cache keeps one booted kernel per configuration directory.
type Cache struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	kernels map[string]Kernel
}

// NewCache returns a cache creating kernels with factory.
func NewCache(factory Factory, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		factory: factory,
		logger:  logger,
		kernels: make(map[string]Kernel),
	}
}

// Acquire returns the kernel cached for opts.Dir, booting a new one on first use.
func (c *Cache) Acquire(ctx context.Context, opts Options) (Kernel, error) {
	opts = opts.withDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.kernels[opts.Dir]; ok {
		return k, nil
	}

	k, err := c.factory(opts)
	if err != nil {
		return nil, fmt.Errorf("create kernel: %w", err)
	}
	if err := k.Boot(ctx); err != nil {
		return nil, fmt.Errorf("boot kernel: %w", err)
	}
	c.kernels[opts.Dir] = k
	c.logger.Debug("kernel booted", "dir", opts.Dir, "env", opts.Environment)
	return k, nil
}

// Release shuts down and evicts the kernel cached for dir. Releasing an
// unknown dir is a no-op.
func (c *Cache) Release(ctx context.Context, dir string) error {
	c.mu.Lock()
	k, ok := c.kernels[dir]
	delete(c.kernels, dir)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	c.logger.Debug("kernel released", "dir", dir)
	if err := k.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown kernel: %w", err)
	}
	return nil
}

// Close releases every cached kernel.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	dirs := make([]string, 0, len(c.kernels))
	for dir := range c.kernels {
		dirs = append(dirs, dir)
	}
	c.mu.Unlock()
	sort.Strings(dirs)

	var errs []error
	for _, dir := range dirs {
		if err := c.Release(ctx, dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of cached kernels.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.kernels)
}
