package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"firealert/internal/logger"
)

// FileStore reads an artifact from a JSON or YAML file. The format is picked
// by extension; anything other than .yaml/.yml is decoded as JSON.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and decodes the artifact.
func (s *FileStore) Load(ctx context.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, s.Path)
		}
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var a Artifact
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&a)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&a)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, s.Path, err)
	}

	log := logger.WithComponent("storage")
	log.Info().
		Str("path", s.Path).
		Int("features", len(a.FeatureOrder)).
		Msg("model artifact loaded")

	return &a, nil
}
