package commands

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/rayfieldsquare/qoe-pipeline/internal/artifacts"
	"github.com/rayfieldsquare/qoe-pipeline/internal/observability/metrics"
	"github.com/rayfieldsquare/qoe-pipeline/internal/pipeline"
	"github.com/rayfieldsquare/qoe-pipeline/internal/runmeta"
	"github.com/rayfieldsquare/qoe-pipeline/internal/validation"
	"github.com/rayfieldsquare/qoe-pipeline/internal/warehouse"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
)

// Shared wiring for all commands: every command builds the same
// pipeline from viper configuration and differs only in which stage it
// invokes.

func init() {
	viper.SetDefault("log.level", constants.DefaultLogLevel)
	viper.SetDefault("log.format", constants.DefaultLogFormat)

	viper.SetDefault("artifacts.backend", "local")
	viper.SetDefault("artifacts.dir", "./artifacts")
	viper.SetDefault("artifacts.s3.region", "us-east-1")

	viper.SetDefault("warehouse.host", "localhost")
	viper.SetDefault("warehouse.port", 5432)
	viper.SetDefault("warehouse.database", "streaming_analytics")
	viper.SetDefault("warehouse.ssl_mode", "disable")

	viper.SetDefault("validation.quality_threshold", constants.DefaultQualityThreshold)
	viper.SetDefault("loader.batch_size", constants.DefaultBatchSize)

	viper.SetDefault("runmeta.enabled", false)
	viper.SetDefault("runmeta.addr", "localhost:6379")
	viper.SetDefault("runmeta.ttl", constants.DefaultRunMetaTTL)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if viper.GetString("log.format") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func newArtifactStore(logger *logrus.Logger) (artifacts.Store, error) {
	switch backend := viper.GetString("artifacts.backend"); backend {
	case "local":
		return artifacts.NewLocalStore(&artifacts.LocalConfig{
			Dir: viper.GetString("artifacts.dir"),
		}, logger)
	case "s3":
		return artifacts.NewS3Store(&artifacts.S3Config{
			Bucket:          viper.GetString("artifacts.s3.bucket"),
			Prefix:          viper.GetString("artifacts.s3.prefix"),
			Region:          viper.GetString("artifacts.s3.region"),
			Endpoint:        viper.GetString("artifacts.s3.endpoint"),
			AccessKeyID:     viper.GetString("artifacts.s3.access_key_id"),
			SecretAccessKey: viper.GetString("artifacts.s3.secret_access_key"),
			UsePathStyle:    viper.GetBool("artifacts.s3.use_path_style"),
		}, logger)
	default:
		return nil, errors.NewConfigurationError("unknown artifact backend: " + backend)
	}
}

func newWarehouseClient(logger *logrus.Logger) (*warehouse.Client, error) {
	config := warehouse.DefaultConfig()
	config.Host = viper.GetString("warehouse.host")
	config.Port = viper.GetInt("warehouse.port")
	config.Database = viper.GetString("warehouse.database")
	config.Username = viper.GetString("warehouse.username")
	config.Password = viper.GetString("warehouse.password")
	config.SSLMode = viper.GetString("warehouse.ssl_mode")
	return warehouse.NewClient(config, logger)
}

func newRunMetaStore(logger *logrus.Logger) (*runmeta.Store, error) {
	if !viper.GetBool("runmeta.enabled") {
		return nil, nil
	}
	return runmeta.NewStore(&runmeta.Config{
		Addr:     viper.GetString("runmeta.addr"),
		Password: viper.GetString("runmeta.password"),
		DB:       viper.GetInt("runmeta.db"),
		TTL:      viper.GetDuration("runmeta.ttl"),
	}, logger)
}

// newMetrics optionally starts a scrape endpoint for the lifetime of
// the process.
func newMetrics(logger *logrus.Logger) *metrics.Metrics {
	if !viper.GetBool("metrics.enabled") {
		return nil
	}
	m := metrics.New()
	addr := viper.GetString("metrics.addr")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err.Error()).Warn("Metrics endpoint stopped")
		}
	}()

	logger.WithField("addr", addr).Info("Metrics endpoint started")
	return m
}

// buildPipeline assembles the pipeline plus a cleanup func that closes
// whatever was opened.
func buildPipeline(logger *logrus.Logger) (*pipeline.Pipeline, func(), error) {
	store, err := newArtifactStore(logger)
	if err != nil {
		return nil, nil, err
	}

	wh, err := newWarehouseClient(logger)
	if err != nil {
		return nil, nil, err
	}

	runMeta, err := newRunMetaStore(logger)
	if err != nil {
		return nil, nil, err
	}

	m := newMetrics(logger)

	validatorConfig := &validation.Config{
		QualityThreshold: viper.GetFloat64("validation.quality_threshold"),
	}
	loaderConfig := &warehouse.LoaderConfig{
		BatchSize: viper.GetInt("loader.batch_size"),
	}

	p, err := pipeline.New(store, runMeta, wh, m, validatorConfig, loaderConfig, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if runMeta != nil {
			runMeta.Close()
		}
		wh.Close()
	}
	return p, cleanup, nil
}
