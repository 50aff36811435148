package artifacts

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// S3Config holds configuration for the object-store artifact backend.
// Endpoint and path-style addressing support MinIO and other
// S3-compatible stores.
type S3Config struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style" yaml:"use_path_style"`
}

// Validate validates the object-store configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.NewConfigurationError("artifact bucket is required")
	}
	if c.Region == "" {
		return errors.NewConfigurationError("artifact region is required")
	}
	return nil
}

// S3Store keeps dataset artifacts in an S3 bucket under a common
// prefix.
type S3Store struct {
	config     *S3Config
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
}

// NewS3Store creates an object-store artifact backend.
func NewS3Store(config *S3Config, logger *logrus.Logger) (*S3Store, error) {
	if config == nil {
		return nil, errors.NewConfigurationError("s3 artifact config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.UsePathStyle),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to create s3 session")
	}

	return &S3Store{
		config:     config,
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		logger:     logger,
	}, nil
}

// ReadRaw reads and schema-checks the raw input dataset.
func (s *S3Store) ReadRaw(ctx context.Context, name string) ([]models.RawSessionRecord, error) {
	data, err := s.download(ctx, name)
	if err != nil {
		return nil, err
	}
	return decodeRaw(bytes.NewReader(data))
}

// WriteClean persists the validated dataset.
func (s *S3Store) WriteClean(ctx context.Context, name string, records []models.SessionRecord) error {
	var buf bytes.Buffer
	if err := encodeClean(&buf, records); err != nil {
		return err
	}
	return s.upload(ctx, name, &buf, len(records))
}

// ReadClean reads back a validated dataset.
func (s *S3Store) ReadClean(ctx context.Context, name string) ([]models.SessionRecord, error) {
	data, err := s.download(ctx, name)
	if err != nil {
		return nil, err
	}
	return decodeClean(bytes.NewReader(data))
}

// WriteEnriched persists the transformed dataset.
func (s *S3Store) WriteEnriched(ctx context.Context, name string, records []models.EnrichedSessionRecord) error {
	var buf bytes.Buffer
	if err := encodeEnriched(&buf, records); err != nil {
		return err
	}
	return s.upload(ctx, name, &buf, len(records))
}

// ReadEnriched reads back a transformed dataset.
func (s *S3Store) ReadEnriched(ctx context.Context, name string) ([]models.EnrichedSessionRecord, error) {
	data, err := s.download(ctx, name)
	if err != nil {
		return nil, err
	}
	return decodeEnriched(bytes.NewReader(data))
}

func (s *S3Store) key(name string) string {
	if s.config.Prefix == "" {
		return name
	}
	return path.Join(s.config.Prefix, name)
}

func (s *S3Store) download(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	buf := aws.NewWriteAtBuffer([]byte{})

	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, errors.NewMissingInputError("s3://" + s.config.Bucket + "/" + key)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to download artifact")
	}
	return buf.Bytes(), nil
}

func (s *S3Store) upload(ctx context.Context, name string, body *bytes.Buffer, count int) error {
	key := s.key(name)

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to upload artifact")
	}

	s.logger.WithFields(logrus.Fields{
		"bucket":  s.config.Bucket,
		"key":     key,
		"records": count,
	}).Info("Artifact uploaded")

	return nil
}
