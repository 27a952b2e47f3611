package signup

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultMaxRedirects bounds how many guard redirects or page navigations a
// single Navigate call follows.
const DefaultMaxRedirects = 5

// Page renders a route.
type Page func(ctx context.Context) error

// Route is a registered path.
type Route struct {
	Path   string
	Name   string
	Page   Page
	Guards []Guard
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRouterLogger overrides the logger.
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRouterActivitySink records guard redirects.
func WithRouterActivitySink(sink ActivitySink) RouterOption {
	return func(r *Router) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithMaxRedirects overrides DefaultMaxRedirects.
func WithMaxRedirects(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.maxRedirects = n
		}
	}
}

// Router maps paths to pages and runs their guards before a navigation
// completes. It is the Navigator handed to guards and pages.
type Router struct {
	mu           sync.Mutex
	navMu        sync.Mutex
	routes       map[string]*Route
	navigating   bool
	pending      string
	current      *Observable[string]
	maxRedirects int
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewRouter returns an empty Router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		routes:       make(map[string]*Route),
		current:      NewObservable(""),
		maxRedirects: DefaultMaxRedirects,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Handle registers page at path behind guards.
func (r *Router) Handle(path, name string, page Page, guards ...Guard) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = &Route{
		Path:   path,
		Name:   name,
		Page:   page,
		Guards: guards,
	}
	return r
}

// Routes returns the registered routes ordered by path.
func (r *Router) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, *route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Current returns the path of the last rendered page.
func (r *Router) Current() string {
	return r.current.Get()
}

// Subscribe calls fn with every path that gets rendered.
func (r *Router) Subscribe(fn func(path string)) func() {
	return r.current.Subscribe(fn)
}

// NavigateTo implements Navigator. While a navigation is running the path is
// queued and followed once the current guard or page returns; otherwise a
// new navigation starts.
func (r *Router) NavigateTo(path string) {
	r.mu.Lock()
	if r.navigating {
		r.pending = path
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if err := r.Navigate(context.Background(), path); err != nil {
		r.logger.Error("navigation failed", "path", path, "error", err)
	}
}

// Navigate runs the guards of path and renders its page. Guard redirects and
// navigations requested by pages are followed up to the redirect limit.
func (r *Router) Navigate(ctx context.Context, path string) error {
	r.navMu.Lock()
	defer r.navMu.Unlock()

	r.setNavigating(true)
	defer r.setNavigating(false)

	for hops := 0; ; hops++ {
		if hops > r.maxRedirects {
			return WithErrorMetadata(ErrTooManyRedirects, map[string]any{
				"path":  path,
				"limit": r.maxRedirects,
			})
		}

		route, ok := r.lookup(path)
		if !ok {
			return WithErrorMetadata(ErrRouteNotFound, map[string]any{"path": path})
		}

		if redirect, allowed := r.runGuards(ctx, route); !allowed {
			r.logger.Debug("navigation redirected", "from", path, "to", redirect)
			recordActivity(ctx, r.activitySink, r.logger, r.now, ActivityEvent{
				EventType: ActivityEventAccessRedirected,
				Metadata:  map[string]any{"from": path, "to": redirect},
			})
			path = redirect
			continue
		}

		r.current.Set(route.Path)

		if route.Page != nil {
			if err := route.Page(ctx); err != nil {
				return err
			}
		}

		next := r.takePending()
		if next == "" {
			return nil
		}
		path = next
	}
}

func (r *Router) runGuards(ctx context.Context, route *Route) (string, bool) {
	for _, guard := range route.Guards {
		if guard == nil {
			continue
		}
		r.takePending()
		if guard(ctx, r) {
			continue
		}
		redirect := r.takePending()
		if redirect == "" {
			redirect = RootPath
		}
		return redirect, false
	}
	return "", true
}

func (r *Router) lookup(path string) (*Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[path]
	return route, ok
}

func (r *Router) setNavigating(v bool) {
	r.mu.Lock()
	r.navigating = v
	if !v {
		r.pending = ""
	}
	r.mu.Unlock()
}

func (r *Router) takePending() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pending
	r.pending = ""
	return p
}
