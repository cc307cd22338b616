package nickname

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/graphlens/internal/dto"
	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DefaultSource is the community-maintained map of extension repositories
// to the node types they provide.
const DefaultSource = "https://raw.githubusercontent.com/ltdrdata/ComfyUI-Manager/refs/heads/main/extension-node-map.json"

// Denylist holds URL fragments whose entries never produce a nickname.
// Core and bundled packs claim many common node types and would tag nearly
// every node.
var Denylist = []string{
	"comfyanonymous/comfyui",
	"seedsa/fooocus",
	"fooocus",
	"audioscavenger/comfyui-thumbnails",
}

// Entry is one extension in the registry, in document order.
type Entry struct {
	URL       string
	NodeTypes []string
	Metadata  dto.PluginMetadata
}

// Registry resolves node types to the extension providing them.
// It is immutable once parsed and safe for concurrent use.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	logger *slog.Logger
}

// WithParseLogger receives metadata fields that were left empty.
func WithParseLogger(logger *slog.Logger) ParseOption {
	return func(c *parseConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Parse reads a registry document `{url: [nodeTypes, metadata], ...}`.
// Entries keep the order of the document so the first match wins, as it
// does when the map is iterated in a browser. Malformed entries are skipped.
func Parse(r io.Reader, opts ...ParseOption) (*Registry, error) {
	cfg := parseConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	reg := &Registry{index: map[string]int{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read registry key: %w", err)
		}
		url, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read registry entry %q: %w", url, err)
		}
		entry, ok := parseEntry(url, raw, cfg.logger)
		if !ok {
			continue
		}
		reg.add(entry)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return reg, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.New("registry must be a JSON object")
	}
	return nil
}

func parseEntry(url string, raw json.RawMessage, logger *slog.Logger) (Entry, bool) {
	var pair []any
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) == 0 {
		return Entry{}, false
	}
	types, ok := pair[0].([]any)
	if !ok {
		return Entry{}, false
	}

	e := Entry{URL: url}
	for _, t := range types {
		if s, ok := t.(string); ok {
			e.NodeTypes = append(e.NodeTypes, s)
		}
	}
	if len(pair) > 1 {
		if m, ok := pair[1].(map[string]any); ok {
			// Metadata is best effort; a field of the wrong shape is left empty.
			if err := decodeMetadata(m, &e.Metadata); err != nil {
				logger.Debug("Plugin metadata ignored", "url", url, "err", err)
			}
		}
	}
	return e, true
}

func decodeMetadata(in map[string]any, out *dto.PluginMetadata) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func (r *Registry) add(e Entry) {
	r.entries = append(r.entries, e)
	if Denied(e.URL) {
		return
	}
	pos := len(r.entries) - 1
	for _, t := range e.NodeTypes {
		if _, seen := r.index[t]; !seen {
			r.index[t] = pos
		}
	}
}

// Denied reports whether url matches the denylist, case-insensitively.
func Denied(url string) bool {
	lower := strings.ToLower(url)
	for _, frag := range Denylist {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Lookup finds the first non-denied extension that declares nodeType exactly.
func (r *Registry) Lookup(nodeType string) (domain.Plugin, bool) {
	if r == nil || nodeType == "" {
		return domain.Plugin{}, false
	}
	pos, ok := r.index[nodeType]
	if !ok {
		return domain.Plugin{}, false
	}
	e := r.entries[pos]
	return domain.Plugin{URL: e.URL, Nickname: e.Metadata.DisplayName()}, true
}

// Entries returns the registry in document order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	return r.entries
}

// Len is the number of parsed entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}
