package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/dlclark/regexp2"
)

// Keywords of tEXt chunks that may carry a workflow.
const (
	KeywordWorkflow   = "workflow"
	KeywordParameters = "parameters"
)

// Sources reported in Result.Source.
const (
	SourceJSON    = "json"
	SourcePNGScan = "png:scan"
)

// promptPattern finds a `{"prompt": {...}}` object that runs to the end of
// the decoded buffer. It needs a lookahead, hence regexp2.
const promptPattern = `\{"prompt":\s*{.+?}(?=\s*$)`

// Result is a successful extraction.
type Result struct {
	Workflow *domain.Workflow
	// Content is the JSON text that was decoded; it is what history stores.
	Content []byte
	// Source tells where the workflow came from: "json", "png:tEXt:<keyword>" or "png:scan".
	Source string
}

// Extractor converts raw files into canonical workflows. It holds no state
// between calls and is safe for concurrent use.
type Extractor struct {
	logger      *slog.Logger
	scanTimeout time.Duration
	prompt      *regexp2.Regexp
}

// Option configures the Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for non-fatal parse failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithScanTimeout bounds the fallback scan over the raw PNG bytes.
func WithScanTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.scanTimeout = d
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:      logging.NewNop(),
		scanTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.prompt = regexp2.MustCompile(promptPattern, regexp2.Singleline)
	e.prompt.MatchTimeout = e.scanTimeout
	return e
}

// ExtractFile dispatches on the filename extension and extracts.
func (e *Extractor) ExtractFile(filename string, data []byte) (*Result, error) {
	raw, err := NewRawFile(filename, data)
	if err != nil {
		return nil, err
	}
	return e.Extract(raw)
}

// Extract produces a canonical workflow from raw.
func (e *Extractor) Extract(raw RawFile) (*Result, error) {
	switch raw.Kind {
	case KindJSON:
		wf, err := e.decode(raw.Name, raw.Data)
		if err != nil {
			return nil, err
		}
		return &Result{Workflow: wf, Content: raw.Data, Source: SourceJSON}, nil
	case KindPNG:
		return e.extractPNG(raw)
	}
	return nil, &domain.ExtractionError{Kind: domain.ErrUnsupportedFileType, Filename: raw.Name}
}

func (e *Extractor) extractPNG(raw RawFile) (*Result, error) {
	if !HasSignature(raw.Data) {
		return nil, &domain.ExtractionError{Kind: domain.ErrNotAPNG, Filename: raw.Name}
	}

	// Every matching chunk that parses replaces the previous candidate, so
	// the last one wins.
	var candidate any
	var source string
	for _, tc := range ScanTextChunks(raw.Data) {
		if tc.Keyword != KeywordWorkflow && tc.Keyword != KeywordParameters {
			continue
		}
		v, err := parseCandidate(tc.Text)
		if err != nil {
			e.logger.Debug("Failed to parse chunk data", "file", raw.Name, "keyword", tc.Keyword, "err", err)
			continue
		}
		candidate, source = v, "png:tEXt:"+tc.Keyword
	}

	if !truthy(candidate) {
		candidate, source = e.scan(raw), SourcePNGScan
	}
	if !truthy(candidate) {
		return nil, &domain.ExtractionError{Kind: domain.ErrNoWorkflowFound, Filename: raw.Name}
	}

	content, err := marshalCandidate(candidate)
	if err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ErrMalformedJSON, Filename: raw.Name, Err: err}
	}
	wf, err := e.decode(raw.Name, content)
	if err != nil {
		return nil, err
	}
	return &Result{Workflow: wf, Content: content, Source: source}, nil
}

// scan is the fallback when no tEXt chunk yields a workflow: the whole
// buffer is decoded as text and searched for a trailing prompt object.
func (e *Extractor) scan(raw RawFile) any {
	text := decodeUTF8(raw.Data)
	if !strings.Contains(text, `{"prompt":`) {
		return nil
	}

	m, err := e.prompt.FindStringMatch(text)
	if err != nil {
		e.logger.Warn("Fallback scan aborted", "file", raw.Name, "err", err)
		return nil
	}
	if m == nil {
		return nil
	}
	v, err := parseCandidate(m.String())
	if err != nil {
		e.logger.Debug("Failed to parse text content", "file", raw.Name, "err", err)
		return nil
	}
	return v
}

// decode is the JSON path shared by both file kinds. Syntax errors are
// fatal; shape mismatches inside the document only zero the offending field.
func (e *Extractor) decode(filename string, data []byte) (*domain.Workflow, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var shape any
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ErrMalformedJSON, Filename: filename, Err: err}
	}
	if _, ok := shape.(map[string]any); !ok {
		return nil, &domain.ExtractionError{
			Kind:     domain.ErrMalformedJSON,
			Filename: filename,
			Err:      fmt.Errorf("workflow must be a JSON object, got %s", jsonKind(shape)),
		}
	}

	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, &domain.ExtractionError{Kind: domain.ErrMalformedJSON, Filename: filename, Err: err}
		}
		e.logger.Warn("Workflow field ignored", "file", filename, "field", typeErr.Field, "err", err)
	}
	for i := range wf.Nodes {
		if err := wf.Nodes[i].DecodeErr(); err != nil {
			e.logger.Warn("Node field ignored", "file", filename, "node", wf.Nodes[i].ID, "err", err)
		}
	}
	return &wf, nil
}

// parseCandidate parses text as a single JSON value and unwraps a truthy
// "prompt" field.
func parseCandidate(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	if obj, ok := v.(map[string]any); ok && truthy(obj["prompt"]) {
		v = obj["prompt"]
	}
	return v, nil
}

func marshalCandidate(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// truthy follows JavaScript truthiness for decoded JSON values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	}
	return true
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	return "number"
}
