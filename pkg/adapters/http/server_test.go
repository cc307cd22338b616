package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/metrics"
	httpadapter "github.com/aretw0/graphlens/pkg/adapters/http"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflow = `{"nodes":[{"id":1,"type":"KSampler","pos":[0,0]},{"id":2,"type":"Note","pos":[400,0],"widgets_values":["hello"]}],"links":[]}`

func newServer(t *testing.T, opts ...httpadapter.Option) (*httptest.Server, *graphlens.Viewer) {
	t.Helper()
	m := metrics.New()
	viewer := graphlens.New(graphlens.WithMetrics(m))
	handler, err := httpadapter.NewHandler(viewer, append([]httpadapter.Option{httpadapter.WithMetrics(m)}, opts...)...)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, viewer
}

func postRaw(t *testing.T, srv *httptest.Server, filename, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/workflows?filename="+url.QueryEscape(filename), "application/octet-stream", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

func TestLoadWorkflow_Raw(t *testing.T) {
	srv, viewer := newServer(t)

	resp := postRaw(t, srv, "flow.json", workflow)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp.Body)
	assert.Equal(t, "flow.json", body["filename"])
	assert.Equal(t, "json", body["source"])
	graph := body["graph"].(map[string]any)
	assert.Len(t, graph["nodes"], 2)
	assert.Equal(t, "flow.json", viewer.Current().Filename)
}

func TestLoadWorkflow_Multipart(t *testing.T) {
	srv, _ := newServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.json")
	require.NoError(t, err)
	_, _ = part.Write([]byte(workflow))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/workflows", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "upload.json", decode[map[string]any](t, resp.Body)["filename"])
}

func TestLoadWorkflow_Errors(t *testing.T) {
	srv, _ := newServer(t)

	cases := []struct {
		name     string
		filename string
		body     string
		status   int
		code     string
	}{
		{"malformed", "bad.json", "{nope", http.StatusBadRequest, "malformed_json"},
		{"unsupported", "notes.txt", "{}", http.StatusUnsupportedMediaType, "unsupported_file_type"},
		{"not a png", "fake.png", "GIF89a", http.StatusUnprocessableEntity, "not_a_png"},
		{"no workflow", "empty.png", "\x89PNG\r\n\x1a\n", http.StatusUnprocessableEntity, "no_workflow_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postRaw(t, srv, tc.filename, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decode[map[string]string](t, resp.Body)["code"])
		})
	}

	t.Run("missing filename", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/workflows", "application/octet-stream", strings.NewReader(workflow))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too large", func(t *testing.T) {
		small, _ := newServer(t, httpadapter.WithMaxUploadSize(8))
		resp := postRaw(t, small, "flow.json", workflow)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetGraph(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/graph")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	postRaw(t, srv, "flow.json", workflow)

	resp, err = http.Get(srv.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	graph := decode[domain.ProjectedGraph](t, resp.Body)
	assert.Len(t, graph.Nodes, 2)

	resp2, err := http.Get(srv.URL + "/graph?width=100&height=100")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, 0.8, decode[domain.ProjectedGraph](t, resp2.Body).Camera.Scale)

	for _, q := range []string{"width=abc&height=1", "width=100", "width=0&height=10"} {
		resp, err := http.Get(srv.URL + "/graph?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHistoryRoutes(t *testing.T) {
	srv, viewer := newServer(t)
	postRaw(t, srv, "dir/a.json", workflow)
	postRaw(t, srv, "b.json", `{"nodes":[]}`)

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	items := decode[[]map[string]any](t, resp.Body)
	require.Len(t, items, 2)
	assert.NotContains(t, items[0], "content")

	escaped := url.PathEscape("dir/a.json")

	t.Run("get", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/history/" + escaped)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		entry := decode[domain.HistoryEntry](t, resp.Body)
		assert.Equal(t, "dir/a.json", entry.Filename)
		assert.JSONEq(t, workflow, entry.Content)
	})

	t.Run("preview keeps current", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/history/" + escaped + "/graph")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "b.json", viewer.Current().Filename)
	})

	t.Run("open", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/history/"+escaped+"/open", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "dir/a.json", viewer.Current().Filename)
	})

	t.Run("delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/history/"+escaped, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = http.Get(srv.URL + "/history/" + escaped)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "history_not_found", decode[map[string]string](t, resp.Body)["code"])
	})
}

func TestInfoHealthSpecMetrics(t *testing.T) {
	srv, _ := newServer(t)
	postRaw(t, srv, "flow.json", workflow)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "ok", decode[map[string]string](t, resp.Body)["status"])

	resp, err = http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	info := decode[map[string]string](t, resp.Body)
	assert.Equal(t, graphlens.Version(), info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	resp, err = http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(doc), "openapi: 3.0.3")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(text), `graphlens_loads_total{kind="json",result="ok"} 1`)
}

func TestLoadSpec(t *testing.T) {
	doc, err := httpadapter.LoadSpec(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/workflows"))
}

func TestSubscribeEvents(t *testing.T) {
	srv, _ := newServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?watch=loaded", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	// Failed loads are filtered out by ?watch=loaded.
	postRaw(t, srv, "bad.json", "{")
	postRaw(t, srv, "flow.json", workflow)

	lines := make(chan string)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- l
		}
	}()

	deadline := time.After(2 * time.Second)
	var data string
	for data == "" {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if strings.HasPrefix(l, "event: ") {
				assert.Equal(t, "event: loaded\n", l)
			}
			if strings.HasPrefix(l, "data: {") {
				data = strings.TrimPrefix(strings.TrimSpace(l), "data: ")
			}
		case <-deadline:
			t.Fatal("timed out waiting for SSE event")
		}
	}

	var ev domain.LoadEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, domain.EventLoaded, ev.Type)
	assert.Equal(t, "flow.json", ev.Filename)
	assert.Equal(t, 2, ev.Nodes)
}

func TestSubscribeWebsocket(t *testing.T) {
	srv, _ := newServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	postRaw(t, srv, "flow.json", workflow)

	var ev domain.LoadEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventLoaded, ev.Type)
	assert.Equal(t, "flow.json", ev.Filename)
}
