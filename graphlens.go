package graphlens

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/internal/metrics"
	"github.com/aretw0/graphlens/pkg/adapters/memory"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/extract"
	"github.com/aretw0/graphlens/pkg/ports"
	"github.com/aretw0/graphlens/pkg/projection"
	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// DefaultViewport is used when no viewport is configured.
var DefaultViewport = domain.Viewport{Width: 1280, Height: 800}

// subscriberBuffer is how many events a slow subscriber may lag behind
// before events are dropped for it.
const subscriberBuffer = 16

// Snapshot is a loaded workflow together with its projection.
type Snapshot struct {
	Filename string
	Source   string
	Digest   string
	LoadedAt time.Time
	Workflow *domain.Workflow
	Graph    *domain.ProjectedGraph
}

// Viewer is the application service: it turns files into projected graphs,
// keeps a history of loaded files and tracks the graph currently shown.
// It is safe for concurrent use.
type Viewer struct {
	extractor *extract.Extractor
	projector *projection.Projector
	nicknames projection.NicknameLookup
	store     ports.HistoryStore
	metrics   *metrics.Metrics
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	viewport  domain.Viewport
	now       func() time.Time

	mu      sync.RWMutex
	current *Snapshot

	subMu sync.Mutex
	subs  map[string]chan domain.LoadEvent
}

// Option defines a functional option for configuring the Viewer.
type Option func(*Viewer)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Viewer) {
		v.logger = logger
	}
}

// WithStore sets the history store (default: in-memory).
func WithStore(store ports.HistoryStore) Option {
	return func(v *Viewer) {
		v.store = store
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(v *Viewer) {
		v.extractor = e
	}
}

// WithProjector replaces the default projector. Nicknames passed with
// WithNicknames are ignored when a projector is supplied.
func WithProjector(p *projection.Projector) Option {
	return func(v *Viewer) {
		v.projector = p
	}
}

// WithNicknames sets the plugin lookup used to label node tags.
func WithNicknames(n projection.NicknameLookup) Option {
	return func(v *Viewer) {
		v.nicknames = n
	}
}

// WithMetrics records loads and graph sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Viewer) {
		v.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(v *Viewer) {
		v.hooks = hooks
	}
}

// WithViewport sets the screen size the camera is fitted to.
func WithViewport(vp domain.Viewport) Option {
	return func(v *Viewer) {
		v.viewport = vp
	}
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Viewer) {
		v.now = now
	}
}

// New creates a Viewer. Without options it keeps history in memory and
// projects with the default configuration.
func New(opts ...Option) *Viewer {
	v := &Viewer{
		viewport: DefaultViewport,
		now:      time.Now,
		subs:     make(map[string]chan domain.LoadEvent),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = logging.NewNop()
	}
	if v.store == nil {
		v.store = memory.NewStore()
	}
	if v.extractor == nil {
		v.extractor = extract.New(extract.WithLogger(v.logger))
	}
	if v.projector == nil {
		popts := []projection.Option{projection.WithLogger(v.logger)}
		if v.nicknames != nil {
			popts = append(popts, projection.WithNicknames(v.nicknames))
		}
		v.projector = projection.New(projection.DefaultConfig(), popts...)
	}
	return v
}

// Extractor returns the extractor in use.
func (v *Viewer) Extractor() *extract.Extractor { return v.extractor }

// Projector returns the projector in use.
func (v *Viewer) Projector() *projection.Projector { return v.projector }

// Store returns the history store in use.
func (v *Viewer) Store() ports.HistoryStore { return v.store }

// Load extracts a workflow from data, records it in history and makes it
// the current graph. On failure the current graph is left untouched.
func (v *Viewer) Load(ctx context.Context, filename string, data []byte) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := v.extractor.ExtractFile(filename, data)
	if err != nil {
		v.fail(ctx, filename, err)
		return nil, err
	}

	digest := Digest(res.Content)
	entry := domain.HistoryEntry{
		Filename:  filename,
		Content:   string(res.Content),
		Timestamp: v.now().UnixMilli(),
		Digest:    digest,
	}
	if err := v.store.Put(ctx, entry); err != nil {
		err = fmt.Errorf("failed to save history: %w", err)
		v.fail(ctx, filename, err)
		return nil, err
	}

	snap := v.project(filename, res, digest)
	v.show(ctx, domain.EventLoaded, snap)
	return snap, nil
}

// Reload re-extracts a history entry and makes it the current graph.
// History is not modified.
func (v *Viewer) Reload(ctx context.Context, filename string) (*Snapshot, error) {
	snap, err := v.Preview(ctx, filename)
	if err != nil {
		v.fail(ctx, filename, err)
		return nil, err
	}
	v.show(ctx, domain.EventReloaded, snap)
	return snap, nil
}

// Preview projects a history entry without changing the current graph.
func (v *Viewer) Preview(ctx context.Context, filename string) (*Snapshot, error) {
	entry, err := v.store.Get(ctx, filename)
	if err != nil {
		return nil, err
	}

	// History holds the decoded JSON text whatever the original file was.
	res, err := v.extractor.Extract(extract.RawFile{Name: filename, Kind: extract.KindJSON, Data: []byte(entry.Content)})
	if err != nil {
		return nil, err
	}

	digest := entry.Digest
	if digest == "" {
		digest = Digest(res.Content)
	}
	return v.project(filename, res, digest), nil
}

// Forget removes a file from history. The current graph stays on screen
// even when it was loaded from that file.
func (v *Viewer) Forget(ctx context.Context, filename string) error {
	if err := v.store.Delete(ctx, filename); err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	v.publish(ctx, v.event(domain.EventForgotten, filename))
	return nil
}

// History lists previously loaded files, most recent first.
func (v *Viewer) History(ctx context.Context) ([]domain.HistoryEntry, error) {
	return v.store.List(ctx)
}

// Entry returns one history entry, including its stored JSON text.
func (v *Viewer) Entry(ctx context.Context, filename string) (*domain.HistoryEntry, error) {
	return v.store.Get(ctx, filename)
}

// Current returns the graph on screen, or nil when nothing is loaded.
func (v *Viewer) Current() *Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// ProjectCurrent re-projects the current workflow for another viewport.
func (v *Viewer) ProjectCurrent(vp domain.Viewport) (*domain.ProjectedGraph, error) {
	snap := v.Current()
	if snap == nil {
		return nil, domain.ErrNoGraphLoaded
	}
	return v.projector.Project(snap.Workflow, vp), nil
}

// Subscribe streams load events until ctx is done or cancel is called.
// Events are dropped for a subscriber that falls too far behind.
func (v *Viewer) Subscribe(ctx context.Context) (<-chan domain.LoadEvent, func()) {
	id := uuid.NewString()
	ch := make(chan domain.LoadEvent, subscriberBuffer)

	v.subMu.Lock()
	v.subs[id] = ch
	v.subMu.Unlock()
	v.metrics.SubscriberAdded()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.subMu.Lock()
			delete(v.subs, id)
			close(ch)
			v.subMu.Unlock()
			close(done)
			v.metrics.SubscriberRemoved()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel
}

// Digest is the hex BLAKE3-256 digest of workflow content.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (v *Viewer) project(filename string, res *extract.Result, digest string) *Snapshot {
	return &Snapshot{
		Filename: filename,
		Source:   res.Source,
		Digest:   digest,
		LoadedAt: v.now(),
		Workflow: res.Workflow,
		Graph:    v.projector.Project(res.Workflow, v.viewport),
	}
}

func (v *Viewer) show(ctx context.Context, typ domain.EventType, snap *Snapshot) {
	v.mu.Lock()
	v.current = snap
	v.mu.Unlock()

	dropped := droppedLinks(snap.Graph)
	v.metrics.ObserveLoad(kindLabel(snap.Filename), metrics.ResultOK)
	v.metrics.ObserveGraph(len(snap.Graph.Nodes), dropped)

	ev := v.event(typ, snap.Filename)
	ev.Source = snap.Source
	ev.Digest = snap.Digest
	ev.Nodes = len(snap.Graph.Nodes)
	ev.Links = len(snap.Graph.Links)
	ev.Dropped = dropped

	v.logger.Info("graph loaded", "file", snap.Filename, "source", snap.Source, "nodes", ev.Nodes, "links", ev.Links, "dropped", dropped)
	for _, d := range snap.Graph.Diagnostics {
		v.logger.Debug("projection diagnostic", "file", snap.Filename, "link", d.LinkID, "node", d.NodeID, "reason", d.Reason)
	}
	if v.hooks.OnLoad != nil {
		v.hooks.OnLoad(ctx, &ev)
	}
	v.publish(ctx, ev)
}

func (v *Viewer) fail(ctx context.Context, filename string, err error) {
	v.metrics.ObserveLoad(kindLabel(filename), metrics.ResultError)
	v.logger.Warn("load failed", "file", filename, "error", err)

	ev := v.event(domain.EventFailed, filename)
	ev.Error = err.Error()
	if v.hooks.OnFailure != nil {
		v.hooks.OnFailure(ctx, &ev)
	}
	v.publish(ctx, ev)
}

func (v *Viewer) event(typ domain.EventType, filename string) domain.LoadEvent {
	return domain.LoadEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: v.now(),
		Filename:  filename,
	}
}

func (v *Viewer) publish(ctx context.Context, ev domain.LoadEvent) {
	if ev.Type == domain.EventForgotten && v.hooks.OnForget != nil {
		v.hooks.OnForget(ctx, &ev)
	}

	v.subMu.Lock()
	defer v.subMu.Unlock()
	for id, ch := range v.subs {
		select {
		case ch <- ev:
		default:
			v.logger.Debug("dropping event for slow subscriber", "subscriber", id, "event", ev.ID)
		}
	}
}

func droppedLinks(g *domain.ProjectedGraph) int {
	n := 0
	for _, d := range g.Diagnostics {
		if errors.Is(d, domain.ErrLinkResolutionSkipped) {
			n++
		}
	}
	return n
}

func kindLabel(filename string) string {
	kind, err := extract.DetectKind(filename)
	if err != nil {
		return "unsupported"
	}
	return string(kind)
}
