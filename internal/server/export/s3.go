package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// URLValidity is how long a presigned download link stays valid.
const URLValidity = 15 * time.Minute

type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// loadDefaultAWSConfig is a seam for testing.
var loadDefaultAWSConfig = config.LoadDefaultConfig

// Bucket uploads exports and hands back a presigned GET URL.
type Bucket struct {
	bucket  string
	put     objectPutter
	presign getPresigner
	now     func() time.Time
}

func NewBucket(ctx context.Context, cfg S3Config) (*Bucket, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Bucket{
		bucket:  cfg.Bucket,
		put:     client,
		presign: s3.NewPresignClient(client),
		now:     time.Now,
	}, nil
}

// ObjectKey places an export under exports/YYYY/MM/DD/.
func ObjectKey(t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("exports/%04d/%02d/%02d/%s.csv", t.Year(), t.Month(), t.Day(), id)
}

func (b *Bucket) Store(ctx context.Context, data []byte) (Result, error) {
	key := ObjectKey(b.now(), uuid.NewString())

	_, err := b.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return Result{}, fmt.Errorf("upload export: %w", err)
	}

	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(URLValidity))
	if err != nil {
		return Result{}, fmt.Errorf("presign export: %w", err)
	}
	return Result{Key: key, URL: req.URL}, nil
}
