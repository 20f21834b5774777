package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes snapshots as JSON objects to an S3-compatible bucket.
type S3Exporter struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Exporter builds an exporter from cfg. It returns nil, nil when S3 export is disabled.
func NewS3Exporter(ctx context.Context, cfg config.ArchiveConfig) (*S3Exporter, error) {
	if !cfg.S3Enabled {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	log.Infof("[Archive] S3 export enabled for bucket: %s", cfg.Bucket)
	return &S3Exporter{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ObjectKey returns <prefix>/<YYYY-MM>/client-<id>.json.
func (e *S3Exporter) ObjectKey(snapshot *models.UsageSnapshot) string {
	key := fmt.Sprintf("%s/client-%d.json", snapshot.BillingMonth, snapshot.ClientID)
	if p := strings.Trim(e.prefix, "/"); p != "" {
		key = p + "/" + key
	}
	return key
}

// Export uploads snapshot.
func (e *S3Exporter) Export(ctx context.Context, snapshot *models.UsageSnapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	key := e.ObjectKey(snapshot)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"upload-source": "cryptogate-usage-reset",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Infof("[Archive] Exported s3://%s/%s", e.bucket, key)
	return nil
}
