package container

import (
	"context"
	"net/http"
)

// Well-known service ids.
const (
	ServiceKernel   = "kernel"
	ServiceRouter   = "router"
	ServiceSession  = "session"
	ServiceFixtures = "webtest.fixtures"
)

// DefaultEnvironment is the environment kernels boot in unless told otherwise.
const DefaultEnvironment = "test"

// Options select the kernel to build.
type Options struct {
	// Environment is the named configuration environment, "test" by default.
	Environment string
	// Dir is the kernel configuration directory. Kernels are cached per Dir.
	Dir string
	// Debug enables debug behaviour in the kernel.
	Debug bool
}

func (o Options) withDefaults() Options {
	if o.Environment == "" {
		o.Environment = DefaultEnvironment
	}
	return o
}

// Kernel is a bootable application instance.
type Kernel interface {
	// Boot initializes the kernel. Booting twice is a no-op.
	Boot(ctx context.Context) error
	// Container returns the booted kernel's container.
	Container() *Container
	// Handler returns the application's HTTP entry point.
	Handler() http.Handler
	// Shutdown releases kernel resources.
	Shutdown(ctx context.Context) error
}

// Factory creates an unbooted kernel.
type Factory func(opts Options) (Kernel, error)

// Router generates URLs for named routes.
type Router interface {
	Generate(route string, params map[string]string) (string, error)
}
