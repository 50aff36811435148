package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
)

// Config holds configuration for the warehouse connection.
type Config struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout    time.Duration `json:"query_timeout" yaml:"query_timeout"`
	MaxConnections  int           `json:"max_connections" yaml:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DefaultConfig returns a default warehouse configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "streaming_analytics",
		SSLMode:         "disable",
		ConnectTimeout:  constants.DefaultConnectionTimeout,
		QueryTimeout:    constants.DefaultQueryTimeout,
		MaxConnections:  constants.DefaultMaxConnections,
		MaxIdleConns:    constants.DefaultMaxIdleConns,
		ConnMaxLifetime: constants.DefaultConnMaxLifetime,
	}
}

// Validate validates the warehouse configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.NewConfigurationError("warehouse host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.NewConfigurationError(fmt.Sprintf("invalid warehouse port: %d", c.Port))
	}
	if c.Database == "" {
		return errors.NewConfigurationError("warehouse database is required")
	}
	return nil
}

// Client wraps the postgres connection to the star-schema warehouse.
// It implements the dimension and fact store interfaces consumed by
// the Resolver and the Loader.
type Client struct {
	config *Config
	db     *sql.DB
	logger *logrus.Logger
}

// NewClient creates a new warehouse client.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{config: config, logger: logger}, nil
}

// Connect opens the connection pool, pings the database and ensures
// the warehouse schema exists.
func (c *Client) Connect(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.config.Host,
		c.config.Port,
		c.config.Username,
		c.config.Password,
		c.config.Database,
		c.config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to open warehouse connection")
	}

	db.SetMaxOpenConns(c.config.MaxConnections)
	db.SetMaxIdleConns(c.config.MaxIdleConns)
	db.SetConnMaxLifetime(c.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to ping warehouse")
	}

	c.db = db

	if err := c.EnsureSchema(ctx); err != nil {
		db.Close()
		c.db = nil
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"host":     c.config.Host,
		"port":     c.config.Port,
		"database": c.config.Database,
	}).Info("Connected to warehouse")

	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to close warehouse connection")
	}
	c.logger.Info("Warehouse connection closed")
	return nil
}

// Ping tests the warehouse connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.db == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "warehouse not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "warehouse ping failed")
	}
	return nil
}
