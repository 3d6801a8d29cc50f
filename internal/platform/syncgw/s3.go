package syncgw

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
)

const (
	HierarchyObject = "hierarchy.json"
	CatalogObject   = "catalog.json"
)

// S3Config locates the exported hierarchy and catalog objects.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; MinIO and other S3-compatible stores
	Prefix    string
	PathStyle bool
}

// ObjectGetter is the subset of *s3.Client the source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads JSON exports of the backend from an S3 bucket.
type S3Source struct {
	client ObjectGetter
	bucket string
	prefix string
}

var _ protocol.Source = (*S3Source)(nil)

func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SourceWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3SourceWithClient(client ObjectGetter, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) FetchHierarchy(ctx context.Context) ([]protocol.Sector, error) {
	body, err := s.read(ctx, HierarchyObject)
	if err != nil {
		return nil, err
	}
	return DecodeHierarchy(body)
}

func (s *S3Source) FetchCatalog(ctx context.Context) ([]protocol.ExamCatalogEntry, error) {
	body, err := s.read(ctx, CatalogObject)
	if err != nil {
		return nil, err
	}
	return DecodeCatalog(body)
}

func (s *S3Source) read(ctx context.Context, name string) ([]byte, error) {
	key := s.prefix + name
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return body, nil
}
