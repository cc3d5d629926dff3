package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client the mirror uses.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates the bucket artifacts are mirrored to. Endpoint is set for
// S3-compatible stores such as R2 or MinIO and switches to path-style URLs.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Mirror stores bundle artifacts under bucket/prefix.
type S3Mirror struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Mirror builds an S3 client from cfg. Static credentials are used when
// given, otherwise the default AWS credential chain applies.
func NewS3Mirror(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3MirrorWithClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewS3MirrorWithClient wraps an existing client.
func NewS3MirrorWithClient(client S3API, bucket, prefix string, log zerolog.Logger) *S3Mirror {
	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "model_mirror").Str("bucket", bucket).Logger(),
	}
}

func (m *S3Mirror) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Push uploads every artifact. The scaler goes last so a reader polling the
// bucket never sees a new scaler next to old regressors for long.
func (m *S3Mirror) Push(ctx context.Context, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == artifactFiles[scalerPart] {
			return false
		}
		if names[j] == artifactFiles[scalerPart] {
			return true
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(m.key(name)),
			Body:        bytes.NewReader(files[name]),
			ContentType: aws.String("application/msgpack"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}
	m.log.Info().Int("artifacts", len(names)).Str("prefix", m.prefix).Msg("Pushed bundle to mirror")
	return nil
}

// Pull downloads the named artifacts. Any missing object fails the whole pull.
func (m *S3Mirror) Pull(ctx context.Context, names []string) (map[string][]byte, error) {
	files := make(map[string][]byte, len(names))
	for _, name := range names {
		out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(m.key(name)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", name, err)
		}
		data, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files[name] = data
	}
	m.log.Debug().Int("artifacts", len(files)).Msg("Pulled bundle from mirror")
	return files, nil
}
