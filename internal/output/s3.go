package output

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"audio-slicer/internal/audio"
)

// S3Config holds the configuration for the S3 sink.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string // Optional: key prefix inside the bucket
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	KeepLocal       bool   // Keep a named copy in the staging directory
}

// S3Sink wraps LocalSink and uploads every clip to S3.
// The LocalSink root is used as staging directory.
type S3Sink struct {
	*LocalSink
	client    *s3.Client
	bucket    string
	region    string
	prefix    string
	endpoint  string
	keepLocal bool
}

// NewS3Sink creates a new S3Sink staging files in stagingDir
// (os.TempDir()/audio-slicer when empty).
func NewS3Sink(ctx context.Context, stagingDir string, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	if stagingDir == "" {
		stagingDir = filepath.Join(os.TempDir(), "audio-slicer")
	}
	local, err := NewLocalSink(stagingDir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Sink{
		LocalSink: local,
		client:    s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		keepLocal: cfg.KeepLocal,
	}, nil
}

// ObjectKey returns the bucket key for a clip key: the prefix plus the clip's file name.
func (s *S3Sink) ObjectKey(key string) string {
	return path.Join(s.prefix, path.Base(filepath.ToSlash(key)))
}

// Write stages clip on disk, uploads it and returns the object URL.
func (s *S3Sink) Write(ctx context.Context, key string, clip *audio.AudioData) (string, error) {
	objectKey := s.ObjectKey(key)

	var staged string
	var err error
	if s.keepLocal {
		staged, err = s.LocalSink.Write(ctx, path.Base(filepath.ToSlash(key)), clip)
	} else {
		staged, err = s.Stage(ctx, clip)
	}
	if err != nil {
		return "", err
	}
	if !s.keepLocal {
		defer func() { _ = s.Cleanup(staged) }()
	}

	f, err := os.Open(staged) // #nosec G304 - path was created above
	if err != nil {
		return "", fmt.Errorf("open staged clip: %w", err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String("audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to S3: %w", objectKey, err)
	}

	return s.objectURL(objectKey), nil
}

func (s *S3Sink) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
