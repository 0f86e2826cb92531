// Package media turns stored snapshot and clip references into URLs a
// dashboard can open.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
)

// ObjectPresigner is the part of s3.PresignClient used here.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Decorator fills Alert.SnapshotURL and Alert.VideoClipURL. s3://bucket/key
// references become presigned GET URLs; any other path is passed through.
type Decorator struct {
	presigner ObjectPresigner
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewDecorator loads the default AWS credential chain and builds a presign
// client from S3_REGION, S3_ENDPOINT and S3_USE_PATH_STYLE.
func NewDecorator(ctx context.Context, cfg *config.Config) (*Decorator, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		})
	}
	if cfg.S3UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewDecoratorWithPresigner(cfg, s3.NewPresignClient(client)), nil
}

// NewDecoratorWithPresigner uses a pre-configured presigner.
func NewDecoratorWithPresigner(cfg *config.Config, presigner ObjectPresigner) *Decorator {
	ttl := cfg.S3PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Decorator{
		presigner: presigner,
		ttl:       ttl,
		logger:    logging.NewServiceLogger(cfg, "media"),
	}
}

// Decorate implements postprocessing.AlertDecorator.
func (d *Decorator) Decorate(ctx context.Context, alert *models.Alert) {
	alert.SnapshotURL = d.URL(ctx, alert.SnapshotPath)
	alert.VideoClipURL = d.URL(ctx, alert.VideoClipPath)
}

// URL presents one stored reference. A presign failure yields "" so that a
// broken reference never hides the alert itself.
func (d *Decorator) URL(ctx context.Context, ref string) string {
	bucket, key, ok := ParseS3URI(ref)
	if !ok {
		return ref
	}

	req, err := d.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(d.ttl))
	if err != nil {
		d.logger.Warn().Err(err).Str("bucket", bucket).Str("key", key).Msg("Failed to presign media reference")
		return ""
	}
	return req.URL
}

// ParseS3URI splits "s3://bucket/key/with/slashes".
func ParseS3URI(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
