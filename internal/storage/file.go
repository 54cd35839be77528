package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps artifacts as files in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Save writes the blob and then the metadata. The metadata file is written
// last so a reader never pairs new metadata with an old blob.
func (s *FileStore) Save(ctx context.Context, name string, artifact *Artifact) error {
	if err := validateName(name); err != nil {
		return err
	}
	meta, blob, err := encode(artifact)
	if err != nil {
		return err
	}
	doc, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, blobName(name)), blob); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, metadataName(name)), doc)
}

// Load reads an artifact saved under name
func (s *FileStore) Load(ctx context.Context, name string) (*Artifact, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := os.ReadFile(filepath.Join(s.dir, metadataName(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	blob, err := os.ReadFile(filepath.Join(s.dir, blobName(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s blob is missing", ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return decode(meta, blob)
}

// writeAtomic writes data to a temp file in the target directory and renames
// it over path
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
