package artifacts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// LocalConfig holds configuration for the local artifact store.
type LocalConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// Validate validates the local store configuration.
func (c *LocalConfig) Validate() error {
	if c.Dir == "" {
		return errors.NewConfigurationError("artifact directory is required")
	}
	return nil
}

// LocalStore keeps dataset artifacts on the local filesystem, one file
// per artifact under a run directory.
type LocalStore struct {
	config *LocalConfig
	logger *logrus.Logger
}

// NewLocalStore creates a local artifact store rooted at the configured
// directory.
func NewLocalStore(config *LocalConfig, logger *logrus.Logger) (*LocalStore, error) {
	if config == nil {
		return nil, errors.NewConfigurationError("local artifact config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &LocalStore{config: config, logger: logger}, nil
}

// ReadRaw reads and schema-checks the raw input dataset.
func (s *LocalStore) ReadRaw(ctx context.Context, name string) ([]models.RawSessionRecord, error) {
	f, err := s.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeRaw(f)
}

// WriteClean persists the validated dataset.
func (s *LocalStore) WriteClean(ctx context.Context, name string, records []models.SessionRecord) error {
	return s.write(name, len(records), func(f *os.File) error {
		return encodeClean(f, records)
	})
}

// ReadClean reads back a validated dataset.
func (s *LocalStore) ReadClean(ctx context.Context, name string) ([]models.SessionRecord, error) {
	f, err := s.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeClean(f)
}

// WriteEnriched persists the transformed dataset.
func (s *LocalStore) WriteEnriched(ctx context.Context, name string, records []models.EnrichedSessionRecord) error {
	return s.write(name, len(records), func(f *os.File) error {
		return encodeEnriched(f, records)
	})
}

// ReadEnriched reads back a transformed dataset.
func (s *LocalStore) ReadEnriched(ctx context.Context, name string) ([]models.EnrichedSessionRecord, error) {
	f, err := s.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeEnriched(f)
}

func (s *LocalStore) open(name string) (*os.File, error) {
	path := filepath.Join(s.config.Dir, name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewMissingInputError(path)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to open artifact")
	}
	return f, nil
}

func (s *LocalStore) write(name string, count int, encode func(*os.File) error) error {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to create artifact directory")
	}

	path := filepath.Join(s.config.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to create artifact")
	}

	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to close artifact")
	}

	s.logger.WithFields(logrus.Fields{
		"path":    path,
		"records": count,
	}).Info("Artifact written")

	return nil
}
