package artifact

import (
	"bytes"
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrAccessDenied indicates the credentials lack permission for the bucket.
var ErrAccessDenied = errors.New("access denied")

// ErrBucketNotFound indicates the configured bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// DefaultAWSRegion is the fallback region when none is configured.
const DefaultAWSRegion = "us-east-1"

// S3Config configures an S3 artifact store.
//
// Authentication follows AWS SDK v2's default credential chain unless
// explicit AccessKeyID/SecretAccessKey are provided. For S3-compatible
// stores (MinIO, Wasabi), set Endpoint and typically ForcePathStyle.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`

	// Region is the AWS region. Defaults to us-east-1 for AWS S3 when
	// not resolvable from environment or profile. No default is applied
	// when a custom Endpoint is set.
	Region string `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`

	// Profile is the AWS shared-config profile to use.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty" mapstructure:"profile"`

	// AccessKeyID is an explicit access key. If set, SecretAccessKey
	// must also be set.
	AccessKeyID string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`

	// SecretAccessKey is an explicit secret key.
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`

	// ForcePathStyle forces path-style URLs. Required for most
	// S3-compatible stores.
	ForcePathStyle bool `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty" mapstructure:"force_path_style"`

	// Prefix is prepended to every artifact name.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`
}

// Validate checks that required configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 artifact store: bucket name is required")
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return errors.New("s3 artifact store: access key ID and secret access key must be provided together")
	}
	return nil
}

// S3Store uploads artifacts to an S3 or S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3 artifact store with the given configuration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &StoreError{Op: "new", Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	// SDK may already have resolved a region from env or profile.
	// Only default for AWS S3; S3-compatible endpoints may not need one.
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultAWSRegion
	}

	return awsCfg, nil
}

// Put uploads data under <prefix>/<name>.
func (s *S3Store) Put(ctx context.Context, name string, data []byte) error {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}

	size := int64(len(data))
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: &size,
		ContentType:   aws.String("application/json"),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.wrapError(name, err)
	}
	return nil
}

// wrapError classifies the underlying SDK error into sentinel errors
// where a well-known code is present.
func (s *S3Store) wrapError(name string, err error) error {
	wrapped := &StoreError{Op: "put", Name: name, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			wrapped.Err = ErrBucketNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = ErrAccessDenied
		}
	}

	return wrapped
}
