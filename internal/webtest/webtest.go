package webtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/webtest/internal/client"
	"github.com/roach88/webtest/internal/config"
	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/fixture"
	"github.com/roach88/webtest/internal/seed"
	"github.com/roach88/webtest/internal/session"
)

// ErrConfiguration is returned when the kernel configuration lacks a
// setting an operation needs.
var ErrConfiguration = errors.New("webtest: configuration error")

func configurationError(param, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, param, msg)
}

// TestCase drives one test against one application kernel.
type TestCase struct {
	t       testing.TB
	ctx     context.Context
	factory container.Factory
	opts    container.Options
	cache   *container.Cache
	logger  *slog.Logger
	seeder  []seed.Option

	// identities maps firewall names to the user logged in on them.
	identities map[string]session.User
}

// Option configures a TestCase.
type Option func(*TestCase)

// WithEnvironment selects the kernel environment.
func WithEnvironment(env string) Option {
	return func(tc *TestCase) { tc.opts.Environment = env }
}

// WithDir selects the kernel configuration directory.
func WithDir(dir string) Option {
	return func(tc *TestCase) { tc.opts.Dir = dir }
}

// WithDebug boots kernels in debug mode.
func WithDebug() Option {
	return func(tc *TestCase) { tc.opts.Debug = true }
}

// WithLogger sets the logger used by the test case and its seeder.
func WithLogger(l *slog.Logger) Option {
	return func(tc *TestCase) {
		if l != nil {
			tc.logger = l
		}
	}
}

// WithSeederOptions passes options to every seed.Seeder the test case builds.
func WithSeederOptions(opts ...seed.Option) Option {
	return func(tc *TestCase) { tc.seeder = append(tc.seeder, opts...) }
}

// WithContext sets the context used for kernel and store operations.
func WithContext(ctx context.Context) Option {
	return func(tc *TestCase) { tc.ctx = ctx }
}

// New returns a test case booting kernels with factory. Every kernel it
// boots is shut down when the test finishes.
func New(t testing.TB, factory container.Factory, opts ...Option) *TestCase {
	t.Helper()
	tc := &TestCase{
		t:          t,
		ctx:        context.Background(),
		factory:    factory,
		opts:       container.Options{Environment: container.DefaultEnvironment},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		identities: make(map[string]session.User),
	}
	for _, opt := range opts {
		opt(tc)
	}
	tc.cache = container.NewCache(factory, tc.logger)
	t.Cleanup(func() {
		if err := tc.cache.Close(context.Background()); err != nil {
			t.Errorf("release kernels: %v", err)
		}
	})
	return tc
}

// T returns the test the case reports to.
func (tc *TestCase) T() testing.TB { return tc.t }

// Kernel returns the booted kernel for the configured directory, failing
// the test if it cannot boot.
func (tc *TestCase) Kernel() container.Kernel {
	tc.t.Helper()
	k, err := tc.cache.Acquire(tc.ctx, tc.opts)
	require.NoError(tc.t, err, "boot kernel")
	return k
}

// Container returns the container of the booted kernel.
func (tc *TestCase) Container() *container.Container {
	tc.t.Helper()
	return tc.Kernel().Container()
}

// Seeder returns a fixture seeder bound to the kernel's container.
func (tc *TestCase) Seeder() *seed.Seeder {
	tc.t.Helper()
	opts := append([]seed.Option{seed.WithLogger(tc.logger)}, tc.seeder...)
	return seed.New(tc.Container(), opts...)
}

// LoadFixtures replaces the contents of a store with the fixtures named by
// ids. See seed.Seeder.Load.
func (tc *TestCase) LoadFixtures(ids []string, opts ...seed.LoadOption) (*fixture.Executor, error) {
	tc.t.Helper()
	return tc.Seeder().Load(tc.ctx, ids, opts...)
}

// LoginAs registers user as authenticated on firewall for the next client.
// A later call for the same firewall replaces the user.
func (tc *TestCase) LoginAs(user session.User, firewall string) *TestCase {
	tc.identities[firewall] = user
	return tc
}

// MakeClient builds a client bound to the kernel's handler. auth selects
// basic-auth credentials: client.NoAuth, client.DefaultAuth (the
// webtest.authentication parameter) or explicit client.Credentials.
// Identities registered with LoginAs are written to a new session and
// then forgotten.
func (tc *TestCase) MakeClient(auth client.Authentication) (*client.Client, error) {
	tc.t.Helper()
	k, err := tc.cache.Acquire(tc.ctx, tc.opts)
	if err != nil {
		return nil, err
	}
	c := k.Container()

	var opts []client.Option
	creds, err := credentials(c, auth)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		opts = append(opts, client.WithBasicAuth(*creds))
	}
	cl, err := client.New(k.Handler(), opts...)
	if err != nil {
		return nil, err
	}

	if len(tc.identities) == 0 {
		return cl, nil
	}
	identities := tc.identities
	tc.identities = make(map[string]session.User)
	if err := tc.seedSession(c, cl, identities); err != nil {
		return nil, err
	}
	return cl, nil
}

func credentials(c *container.Container, auth client.Authentication) (*client.Credentials, error) {
	switch a := auth.(type) {
	case nil:
		return nil, nil
	case client.Credentials:
		return &a, nil
	default:
		if !client.IsDefault(auth) {
			return nil, nil
		}
	}
	m, err := c.StringMap(config.ParamAuthentication)
	if err != nil {
		return nil, configurationError(config.ParamAuthentication, err.Error())
	}
	if m["username"] == "" {
		return nil, configurationError(config.ParamAuthentication, "username is not set")
	}
	return &client.Credentials{Username: m["username"], Password: m["password"]}, nil
}

// seedSession writes one token per firewall into a new session and points
// the client's session cookie at it. Configuration is checked before the
// session is created.
func (tc *TestCase) seedSession(c *container.Container, cl *client.Client, identities map[string]session.User) error {
	name, ok := c.String(config.ParamSessionName)
	if !ok {
		return configurationError(config.ParamSessionName, "required for simulated logins")
	}
	secret, ok := c.String(config.ParamSecret)
	if !ok {
		return configurationError(config.ParamSecret, "required to sign session tokens")
	}
	store, err := container.Lookup[session.Store](c, container.ServiceSession)
	if err != nil {
		return configurationError(container.ServiceSession, err.Error())
	}
	codec, err := session.NewCodec([]byte(secret))
	if err != nil {
		return err
	}

	tokens := make(map[string]string, len(identities))
	for firewall, user := range identities {
		raw, err := codec.Encode(codec.NewToken(user, firewall))
		if err != nil {
			return fmt.Errorf("token for firewall %s: %w", firewall, err)
		}
		tokens[session.SecurityKey(firewall)] = raw
	}

	sess := store.Create()
	for key, raw := range tokens {
		sess.Set(key, raw)
	}
	cl.SetCookie(&http.Cookie{Name: name, Value: sess.ID(), Path: "/"})
	tc.logger.Debug("session seeded", "session", sess.ID(), "firewalls", len(tokens))
	return nil
}

// URL generates the path of a named route through the kernel's router.
// params alternate names and values.
func (tc *TestCase) URL(route string, params ...string) (string, error) {
	tc.t.Helper()
	if len(params)%2 != 0 {
		return "", fmt.Errorf("route %s: odd number of parameters", route)
	}
	router, err := container.Lookup[container.Router](tc.Container(), container.ServiceRouter)
	if err != nil {
		return "", err
	}
	values := make(map[string]string, len(params)/2)
	for i := 0; i < len(params); i += 2 {
		values[params[i]] = params[i+1]
	}
	return router.Generate(route, values)
}
