package nickname

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `{
	"https://github.com/comfyanonymous/ComfyUI": [["KSampler", "CheckpointLoaderSimple"], {"title_aux": "ComfyUI"}],
	"https://github.com/ltdrdata/ComfyUI-Impact-Pack": [["FaceDetailer", "KSampler"], {"nickname": "Impact", "title_aux": "Impact Pack"}],
	"https://github.com/cubiq/ComfyUI_IPAdapter_plus": [["IPAdapter"], {"title_aux": "IPAdapter plus", "author": 42}],
	"https://github.com/other/FaceDetailer-clone": [["FaceDetailer"], {"nickname": "Clone"}],
	"https://github.com/lllyasviel/Fooocus": [["FooocusSampler"], {"nickname": "Fooocus"}],
	"https://github.com/broken/entry": "not an array",
	"https://github.com/untitled/pack": [["Untitled"]]
}`

func TestParse_FirstMatchWinsAndDenylist(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleRegistry))
	require.NoError(t, err)

	assert.Equal(t, 6, reg.Len())

	p, ok := reg.Lookup("FaceDetailer")
	require.True(t, ok)
	assert.Equal(t, domain.Plugin{URL: "https://github.com/ltdrdata/ComfyUI-Impact-Pack", Nickname: "Impact"}, p)

	// Denied core entry is skipped, the next declaring pack matches.
	p, ok = reg.Lookup("KSampler")
	require.True(t, ok)
	assert.Equal(t, "Impact", p.Nickname)

	_, ok = reg.Lookup("CheckpointLoaderSimple")
	assert.False(t, ok)
	_, ok = reg.Lookup("FooocusSampler")
	assert.False(t, ok)
}

func TestParse_NicknameFallbacks(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleRegistry))
	require.NoError(t, err)

	p, ok := reg.Lookup("IPAdapter")
	require.True(t, ok)
	assert.Equal(t, "IPAdapter plus", p.Nickname)

	p, ok = reg.Lookup("Untitled")
	require.True(t, ok)
	assert.Equal(t, "", p.Nickname)
	assert.Equal(t, "https://github.com/untitled/pack", p.URL)

	for _, e := range reg.Entries() {
		if e.URL == "https://github.com/cubiq/ComfyUI_IPAdapter_plus" {
			assert.Equal(t, "42", e.Metadata.Author)
		}
	}
}

func TestParse_ExactMatchOnly(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleRegistry))
	require.NoError(t, err)

	for _, typ := range []string{"facedetailer", "FaceDetailer ", "", "Face"} {
		_, ok := reg.Lookup(typ)
		assert.False(t, ok, typ)
	}
}

func TestParse_DriftedMetadataIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithFormat(&buf, slog.LevelDebug, logging.FormatText)

	reg, err := Parse(strings.NewReader(`{
		"https://github.com/drift/pack": [["Drifted"], {"nickname": {"short": "D"}}]
	}`), WithParseLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, []string{"Drifted"}, reg.Entries()[0].NodeTypes)
	assert.Empty(t, reg.Entries()[0].Metadata.Nickname)
	assert.Contains(t, buf.String(), "Plugin metadata ignored")
	assert.Contains(t, buf.String(), "https://github.com/drift/pack")
}

func TestParse_RejectsNonObject(t *testing.T) {
	_, err := Parse(strings.NewReader(`[1,2]`))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`{"a": [[`))
	assert.Error(t, err)
}

func TestDenied(t *testing.T) {
	assert.True(t, Denied("https://github.com/ComfyAnonymous/ComfyUI"))
	assert.True(t, Denied("https://github.com/audioscavenger/comfyui-thumbnails"))
	assert.False(t, Denied("https://github.com/ltdrdata/ComfyUI-Manager"))
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	_, ok := reg.Lookup("KSampler")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRegistry))
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, WithHTTPClient(srv.Client()))
	_, ok := l.Lookup("FaceDetailer")
	assert.False(t, ok, "no match before the registry arrives")

	l.Start(context.Background())
	select {
	case <-l.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loader did not finish")
	}

	p, ok := l.Lookup("FaceDetailer")
	require.True(t, ok)
	assert.Equal(t, "Impact", p.Nickname)
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extension-node-map.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o644))

	l := NewLoader(path)
	require.NoError(t, l.Load(context.Background()))

	_, ok := l.Lookup("IPAdapter")
	assert.True(t, ok)
}

func TestLoader_FailureLeavesRegistryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, WithHTTPClient(srv.Client()))
	err := l.Load(context.Background())

	assert.Error(t, err)
	assert.Nil(t, l.Registry())
	_, ok := l.Lookup("FaceDetailer")
	assert.False(t, ok)
	select {
	case <-l.Done():
	default:
		t.Fatal("Done must be closed after a failed attempt")
	}
}

func TestLoader_Cancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoader(srv.URL, WithHTTPClient(srv.Client()))
	l.Start(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled loader did not finish")
	}
	assert.Nil(t, l.Registry())
}
