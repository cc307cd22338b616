package nickname

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/pkg/domain"
)

// Loader fetches a Registry in the background. Until a fetch succeeds,
// Lookup reports no match, so callers never wait on the network.
type Loader struct {
	source  string
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration

	registry atomic.Pointer[Registry]
	done     chan struct{}
	once     sync.Once
}

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = c
	}
}

// WithLogger sets the logger used to report fetch failures.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithTimeout bounds a single fetch.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// NewLoader creates a Loader for source, which is either an http(s) URL or
// a local file path.
func NewLoader(source string, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:  source,
		client:  http.DefaultClient,
		logger:  logging.NewNop(),
		timeout: 30 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs Load in a goroutine. Cancelling ctx abandons the fetch.
// Failures are logged and leave the loader empty.
func (l *Loader) Start(ctx context.Context) {
	go func() {
		if err := l.Load(ctx); err != nil {
			l.logger.Warn("Nickname registry unavailable", "source", l.source, "err", err)
		}
	}()
}

// Load fetches and parses the registry synchronously.
func (l *Loader) Load(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	rc, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	reg, err := Parse(rc, WithParseLogger(l.logger))
	if err != nil {
		return err
	}
	l.registry.Store(reg)
	l.logger.Debug("Nickname registry loaded", "source", l.source, "entries", reg.Len())
	return nil
}

func (l *Loader) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(l.source, "http://") && !strings.HasPrefix(l.source, "https://") {
		return os.Open(l.source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", l.source, resp.Status)
	}
	return resp.Body, nil
}

// Done is closed once the first load attempt finishes, successfully or not.
func (l *Loader) Done() <-chan struct{} { return l.done }

// Registry returns the loaded registry, or nil while none is available.
func (l *Loader) Registry() *Registry { return l.registry.Load() }

// Lookup implements projection.NicknameLookup.
func (l *Loader) Lookup(nodeType string) (domain.Plugin, bool) {
	return l.registry.Load().Lookup(nodeType)
}
