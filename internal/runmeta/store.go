package runmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// Config holds configuration for the run metadata store.
type Config struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns a default run metadata configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr: "localhost:6379",
		TTL:  constants.DefaultRunMetaTTL,
	}
}

// Validate validates the run metadata configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.NewConfigurationError("runmeta address is required")
	}
	if c.TTL <= 0 {
		return errors.NewConfigurationError("runmeta TTL must be positive")
	}
	return nil
}

// Store keeps per-run metadata in redis so stages running as separate
// invocations can hand reports to each other and to external
// monitoring. Entries expire after the configured TTL.
type Store struct {
	config *Config
	client *redis.Client
	logger *logrus.Logger
}

// NewStore creates a run metadata store.
func NewStore(config *Config, logger *logrus.Logger) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &Store{config: config, client: client, logger: logger}, nil
}

// Ping tests the redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "runmeta ping failed")
	}
	return nil
}

// Close closes the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveValidationReport stores the Validator's report for a run.
func (s *Store) SaveValidationReport(ctx context.Context, runID string, report *models.ValidationReport) error {
	return s.setJSON(ctx, key(runID, "validation_report"), report)
}

// GetValidationReport fetches the Validator's report for a run.
func (s *Store) GetValidationReport(ctx context.Context, runID string) (*models.ValidationReport, error) {
	var report models.ValidationReport
	if err := s.getJSON(ctx, key(runID, "validation_report"), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveLoadReport stores the FactLoader's report for a run.
func (s *Store) SaveLoadReport(ctx context.Context, runID string, report *models.LoadReport) error {
	return s.setJSON(ctx, key(runID, "load_report"), report)
}

// GetLoadReport fetches the FactLoader's report for a run.
func (s *Store) GetLoadReport(ctx context.Context, runID string) (*models.LoadReport, error) {
	var report models.LoadReport
	if err := s.getJSON(ctx, key(runID, "load_report"), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SetValue stores a scalar metadata value for a run.
func (s *Store) SetValue(ctx context.Context, runID, name, value string) error {
	if err := s.client.Set(ctx, key(runID, name), value, s.config.TTL).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to store run metadata")
	}
	return nil
}

// GetValue fetches a scalar metadata value for a run.
func (s *Store) GetValue(ctx context.Context, runID, name string) (string, error) {
	value, err := s.client.Get(ctx, key(runID, name)).Result()
	if err == redis.Nil {
		return "", errors.NewStorageError(errors.CodeReadFailed, fmt.Sprintf("no %s metadata for run %s", name, runID))
	}
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to fetch run metadata")
	}
	return value, nil
}

func (s *Store) setJSON(ctx context.Context, k string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to marshal run metadata")
	}
	if err := s.client.Set(ctx, k, data, s.config.TTL).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to store run metadata")
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, k string, v interface{}) error {
	data, err := s.client.Get(ctx, k).Bytes()
	if err == redis.Nil {
		return errors.NewStorageError(errors.CodeReadFailed, fmt.Sprintf("no metadata at %s", k))
	}
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to fetch run metadata")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to unmarshal run metadata")
	}
	return nil
}

func key(runID, name string) string {
	return fmt.Sprintf("qoe:run:%s:%s", runID, name)
}
