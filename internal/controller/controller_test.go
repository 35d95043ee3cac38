package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/scrape/internal/engine"
	"github.com/law-makers/scrape/internal/fetch"
	"github.com/law-makers/scrape/internal/registry"
	"github.com/law-makers/scrape/internal/session"
	"github.com/law-makers/scrape/pkg/models"
)

// siteX strips the html wrapper from the page it fetched.
type siteX struct {
	*engine.Base
	held session.Session
	run  func(ctx context.Context, p *siteX) (models.Record, error)
}

func (p *siteX) ParsePage(ctx context.Context, html string) (models.Record, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(html, "<html>"), "</html>")
	return map[string]string{"body": body}, nil
}

func (p *siteX) Run(ctx context.Context) (models.Record, error) {
	if p.run != nil {
		return p.run(ctx, p)
	}
	return p.Base.Run(ctx)
}

func (p *siteX) Session() session.Session {
	if p.held != nil {
		return p.held
	}
	return p.Base.Session()
}

type fakeSession struct {
	closed atomic.Int32
}

func (f *fakeSession) Get(ctx context.Context, rawURL string, header http.Header) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeSession) Close() error {
	f.closed.Add(1)
	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// recorder keeps the order of calls across the backend and the site.
type recorder struct {
	mu     sync.Mutex
	events []string
	bodies []string
}

func (r *recorder) add(event, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if body != "" {
		r.bodies = append(r.bodies, body)
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) clears() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

// newBackend answers pre-clear requests with status.
func newBackend(t *testing.T, status int, rec *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rec.add("clear "+r.URL.Path, string(data))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newSite serves the given statuses in order, then 200 with body.
func newSite(t *testing.T, body string, statuses []int, rec *recorder) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		rec.add("fetch", "")
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

type harness struct {
	reg    *registry.Registry
	sleeps *sleepRecorder
	states []models.State
	plugin *siteX
}

func newHarness(t *testing.T, configure func(p *siteX)) *harness {
	t.Helper()
	h := &harness{reg: registry.New(), sleeps: &sleepRecorder{}}
	h.reg.MustRegister("site_x", func(env engine.Env) (engine.Plugin, error) {
		p := &siteX{}
		p.Base = engine.NewBase("site_x", env, "", p)
		if configure != nil {
			configure(p)
		}
		h.plugin = p
		return p, nil
	})
	return h
}

func (h *harness) controller(cfg models.RunConfig) *Controller {
	return New(cfg, Options{
		Registry: h.reg,
		Env: engine.Env{
			Fetcher: fetch.New(fetch.Options{MaxRetries: 3, Sleep: h.sleeps.sleep}),
		},
		OnState: func(s models.State) { h.states = append(h.states, s) },
	})
}

func TestRun_EndToEnd_RecoversAfterRetries(t *testing.T) {
	tr := &recorder{}
	be := newBackend(t, http.StatusOK, tr)
	site, hits := newSite(t, "<html>ok</html>", []int{503, 503}, tr)

	h := newHarness(t, nil)
	c := h.controller(models.RunConfig{
		PluginID:     "site_x",
		TargetURL:    site.URL + "/listings",
		ClearBaseURL: be.URL,
	})

	rec, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"body": "ok"}, rec)
	assert.Equal(t, models.StateDone, c.State())
	assert.Equal(t, "site_x", c.Identity().Name)
	assert.Equal(t, int32(3), hits.Load())
	assert.Len(t, h.sleeps.delays, 2)

	calls := tr.clears()
	require.Len(t, calls, 1)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(calls[0]), &body))
	assert.Equal(t, map[string]string{"parser": "site_x"}, body)

	assert.Equal(t, []string{"clear /clear_data/", "fetch", "fetch", "fetch"}, tr.list())
	assert.Equal(t, []models.State{
		models.StateLoading,
		models.StateClearing,
		models.StateRunning,
		models.StateClosingSession,
		models.StateDone,
	}, h.states)
}

func TestRun_EndToEnd_AllAttemptsFail(t *testing.T) {
	tr := &recorder{}
	be := newBackend(t, http.StatusOK, tr)

	dead := httptest.NewServer(http.NotFoundHandler())
	target := dead.URL + "/listings"
	dead.Close()

	h := newHarness(t, nil)
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: target, ClearBaseURL: be.URL})

	rec, err := c.Run(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, models.StateDone, c.State())
	assert.Len(t, h.sleeps.delays, 2)
	assert.Len(t, tr.clears(), 1)
}

func TestRun_ClearFailureDoesNotStopFetch(t *testing.T) {
	tr := &recorder{}
	be := newBackend(t, http.StatusInternalServerError, tr)
	site, hits := newSite(t, "<html>ok</html>", nil, tr)

	h := newHarness(t, nil)
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: site.URL, ClearBaseURL: be.URL})

	rec, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"body": "ok"}, rec)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, models.StateDone, c.State())
}

func TestRun_UnknownPluginAborts(t *testing.T) {
	tr := &recorder{}
	be := newBackend(t, http.StatusOK, tr)
	site, hits := newSite(t, "<html>ok</html>", nil, tr)

	h := newHarness(t, nil)
	c := h.controller(models.RunConfig{PluginID: "nope", TargetURL: site.URL, ClearBaseURL: be.URL})

	rec, err := c.Run(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, models.StateAborted, c.State())
	assert.Equal(t, int32(0), hits.Load())
	assert.Empty(t, tr.clears())
	assert.Equal(t, []models.State{models.StateLoading, models.StateAborted}, h.states)
}

func TestRun_MissingCapabilityAbortsAndClosesSession(t *testing.T) {
	held := &fakeSession{}
	h := newHarness(t, func(p *siteX) {
		p.held = held
		p.run = func(ctx context.Context, p *siteX) (models.Record, error) {
			return nil, fmt.Errorf("render: %w", engine.ErrMissingCapability)
		}
	})
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: "http://example.test/"})

	rec, err := c.Run(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, models.StateAborted, c.State())
	assert.Equal(t, int32(1), held.closed.Load())
}

func TestRun_ParseNotImplementedFails(t *testing.T) {
	site, _ := newSite(t, "<html>ok</html>", nil, &recorder{})

	held := &fakeSession{}
	h := newHarness(t, func(p *siteX) {
		p.held = held
		p.run = func(ctx context.Context, p *siteX) (models.Record, error) {
			return p.RunPage(ctx, p.Base)
		}
	})
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: site.URL})

	rec, err := c.Run(context.Background())

	assert.Nil(t, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrParseNotImplemented)
	assert.Equal(t, models.StateFailed, c.State())
	assert.Equal(t, int32(1), held.closed.Load())
}

func TestRun_ClosesOpenedHTTPSession(t *testing.T) {
	site, _ := newSite(t, "<html>ok</html>", nil, &recorder{})

	h := newHarness(t, func(p *siteX) {
		p.run = func(ctx context.Context, p *siteX) (models.Record, error) {
			if _, err := p.OpenSession(); err != nil {
				return nil, err
			}
			return p.RunPage(ctx, p)
		}
	})
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: site.URL})

	rec, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, rec)
	s, ok := h.plugin.Base.Session().(*session.HTTP)
	require.True(t, ok)
	assert.True(t, s.Closed())
}

func TestRun_CancelledDuringBackoff(t *testing.T) {
	site, hits := newSite(t, "<html>ok</html>", []int{503, 503, 503}, &recorder{})

	held := &fakeSession{}
	h := newHarness(t, func(p *siteX) { p.held = held })

	ctx, cancel := context.WithCancel(context.Background())
	c := New(models.RunConfig{PluginID: "site_x", TargetURL: site.URL}, Options{
		Registry: h.reg,
		Env: engine.Env{
			Fetcher: fetch.New(fetch.Options{MaxRetries: 3, MinDelay: time.Hour, MaxDelay: time.Hour}),
		},
	})

	go func() {
		for hits.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	start := time.Now()
	rec, err := c.Run(ctx)

	assert.Nil(t, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StateAborted, c.State())
	assert.Equal(t, int32(1), held.closed.Load())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_PanicStillClosesSession(t *testing.T) {
	held := &fakeSession{}
	h := newHarness(t, func(p *siteX) {
		p.held = held
		p.run = func(ctx context.Context, p *siteX) (models.Record, error) {
			panic("plugin bug")
		}
	})
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: "http://example.test/"})

	assert.Panics(t, func() { c.Run(context.Background()) })
	assert.Equal(t, models.StateFailed, c.State())
	assert.Equal(t, int32(1), held.closed.Load())
}

func TestRun_NoClearEndpointSkipsClear(t *testing.T) {
	tr := &recorder{}
	site, _ := newSite(t, "<html>ok</html>", nil, tr)

	h := newHarness(t, nil)
	c := h.controller(models.RunConfig{PluginID: "site_x", TargetURL: site.URL})

	_, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, tr.list())
	assert.Equal(t, models.StateDone, c.State())
}

func TestRun_OnlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	c := h.controller(models.RunConfig{PluginID: "missing"})

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already ran")
	assert.True(t, c.State().Terminal())
}

func TestNew_CopiesConfigMaps(t *testing.T) {
	headers := map[string]string{"X-A": "1"}
	c := New(models.RunConfig{Headers: headers}, Options{})
	headers["X-A"] = "2"

	assert.Equal(t, "1", c.cfg.Headers["X-A"])
}
