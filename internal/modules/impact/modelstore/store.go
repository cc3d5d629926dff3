// Package modelstore persists impact model bundles as a directory of msgpack
// artifacts, optionally mirrored to an S3-compatible bucket.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
	"github.com/aristath/ecovest/internal/modules/impact/model"
)

// Mirror replicates artifacts to remote storage so fresh hosts can skip
// training.
type Mirror interface {
	Push(ctx context.Context, files map[string][]byte) error
	Pull(ctx context.Context, names []string) (map[string][]byte, error)
}

// Store loads and saves bundles under a fixed directory.
type Store struct {
	dir    string
	mirror Mirror
	log    zerolog.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "model_store").Str("dir", dir).Logger(),
	}
}

// SetMirror enables remote replication. Optional.
func (s *Store) SetMirror(m Mirror) {
	s.mirror = m
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// IsCompatible reports whether bundle was trained for the given schema.
func IsCompatible(bundle *model.Bundle, schemaVersion string, featureCount int) bool {
	return bundle.Compatible(schemaVersion, featureCount)
}

// Load returns the persisted bundle. Missing, torn, corrupt or incompatible
// artifacts all yield an error wrapping domain.ErrBundleNotFound; the caller is
// expected to retrain rather than fail.
func (s *Store) Load(ctx context.Context) (*model.Bundle, error) {
	bundle, err := s.loadLocal()
	if err == nil {
		return bundle, nil
	}
	if s.mirror == nil {
		return nil, err
	}

	s.log.Info().Err(err).Msg("No usable local bundle, trying mirror")
	files, pullErr := s.mirror.Pull(ctx, ArtifactNames())
	if pullErr != nil {
		s.log.Warn().Err(pullErr).Msg("Failed to pull bundle from mirror")
		return nil, err
	}
	if _, decErr := decodeBundle(files); decErr != nil {
		s.log.Warn().Err(decErr).Msg("Mirrored bundle is unusable")
		return nil, err
	}
	if writeErr := s.writeFiles(files, "mirror"); writeErr != nil {
		s.log.Warn().Err(writeErr).Msg("Failed to stage mirrored bundle locally")
		return nil, err
	}
	return s.loadLocal()
}

func (s *Store) loadLocal() (*model.Bundle, error) {
	files := make(map[string][]byte, len(artifactFiles))
	for _, name := range ArtifactNames() {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s missing", domain.ErrBundleNotFound, name)
			}
			return nil, fmt.Errorf("%w: %s unreadable: %v", domain.ErrBundleNotFound, name, err)
		}
		files[name] = data
	}

	bundle, err := decodeBundle(files)
	if err != nil {
		s.log.Warn().Err(err).Msg("Discarding inconsistent bundle")
		return nil, fmt.Errorf("%w: %v", domain.ErrBundleNotFound, err)
	}
	if !IsCompatible(bundle, features.SchemaVersion, features.FeatureCount) {
		s.log.Warn().
			Str("bundle_id", bundle.ID).
			Str("schema", bundle.SchemaVersion).
			Int("feature_count", bundle.FeatureCount).
			Str("expected_schema", features.SchemaVersion).
			Msg("Persisted bundle is incompatible with current schema")
		return nil, fmt.Errorf("%w: bundle %s has schema %s", domain.ErrBundleNotFound, bundle.ID, bundle.SchemaVersion)
	}

	s.log.Debug().Str("bundle_id", bundle.ID).Msg("Loaded bundle")
	return bundle, nil
}

// Save persists the bundle as a complete matched set and pushes it to the
// mirror when one is configured. Mirror failures are logged, not returned.
func (s *Store) Save(ctx context.Context, bundle *model.Bundle) error {
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("refusing to save bundle: %w", err)
	}
	files, err := encodeBundle(bundle)
	if err != nil {
		return err
	}
	if err := s.writeFiles(files, bundle.ID); err != nil {
		return err
	}

	s.log.Info().Str("bundle_id", bundle.ID).Msg("Saved bundle")

	if s.mirror != nil {
		if err := s.mirror.Push(ctx, files); err != nil {
			s.log.Warn().Err(err).Str("bundle_id", bundle.ID).Msg("Failed to push bundle to mirror")
		}
	}
	return nil
}

// writeFiles writes every artifact to a temp file first and renames them into
// place only after all writes succeed. A crash between renames leaves artifacts
// with different bundle IDs, which Load reports as not found.
func (s *Store) writeFiles(files map[string][]byte, tag string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	names := ArtifactNames()
	temps := make([]string, 0, len(names))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}

	for _, name := range names {
		data, ok := files[name]
		if !ok {
			cleanup()
			return fmt.Errorf("artifact %s missing from bundle", name)
		}
		tmp := filepath.Join(s.dir, name+".tmp-"+tag)
		if err := writeSynced(tmp, data); err != nil {
			cleanup()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		temps = append(temps, tmp)
	}

	for i, name := range names {
		if err := os.Rename(temps[i], filepath.Join(s.dir, name)); err != nil {
			cleanup()
			return fmt.Errorf("failed to move %s into place: %w", name, err)
		}
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
