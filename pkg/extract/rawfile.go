package extract

import (
	"path/filepath"
	"strings"

	"github.com/aretw0/graphlens/pkg/domain"
)

// Kind is the declared type of a raw file.
type Kind string

const (
	KindJSON Kind = "json"
	KindPNG  Kind = "png"
)

// RawFile is the immutable input of a single extraction.
type RawFile struct {
	Name string
	Kind Kind
	Data []byte
}

// DetectKind maps a filename extension to a Kind.
func DetectKind(filename string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return KindJSON, nil
	case ".png":
		return KindPNG, nil
	}
	return "", &domain.ExtractionError{Kind: domain.ErrUnsupportedFileType, Filename: filename}
}

// NewRawFile wraps data, rejecting unsupported extensions before any parsing.
func NewRawFile(filename string, data []byte) (RawFile, error) {
	kind, err := DetectKind(filename)
	if err != nil {
		return RawFile{}, err
	}
	return RawFile{Name: filename, Kind: kind, Data: data}, nil
}
