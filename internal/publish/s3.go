package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
)

// ObjectPutter is the part of the S3 client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client loads the default AWS credential chain. A custom endpoint switches to
// path-style addressing for MinIO and similar stores.
func NewS3Client(ctx context.Context, cfg common.PublishConfig) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, opts...), nil
}

// S3Publisher uploads run artifacts under a key prefix.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

func NewS3Publisher(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *S3Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// Key joins name onto the publisher prefix.
func (p *S3Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads body to the prefixed key.
func (p *S3Publisher) Publish(ctx context.Context, name string, body []byte, contentType string, meta map[string]string) error {
	key := p.Key(name)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		p.logger.Error("publish.put.failed", "bucket", p.bucket, "key", key, "error", err)
		return fmt.Errorf("put s3://%s/%s: %w", p.bucket, key, err)
	}
	p.logger.Info("publish.put.ok", "bucket", p.bucket, "key", key, "bytes", len(body))
	return nil
}

// Sink publishes the merged dataset, its covid subset and the run report after each run.
type Sink struct {
	Publisher *S3Publisher
	Covid     bool
}

func (s Sink) Name() string { return "s3" }

func (s Sink) Deliver(ctx context.Context, ds *dataset.Dataset, rep *batch.RunReport) error {
	meta := map[string]string{
		"run-id":       rep.RunID,
		"published-at": time.Now().UTC().Format(time.RFC3339),
	}

	all, err := dataset.Encode(ds)
	if err != nil {
		return err
	}
	if err := s.Publisher.Publish(ctx, "surveillance_all.csv", all, "text/csv; charset=utf-8", meta); err != nil {
		return err
	}

	if s.Covid {
		covid, err := dataset.Encode(ds.FilterPathogen(constants.SARSCoV2))
		if err != nil {
			return err
		}
		if err := s.Publisher.Publish(ctx, "surveillance_covid.csv", covid, "text/csv; charset=utf-8", meta); err != nil {
			return err
		}
	}

	report, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.Publisher.Publish(ctx, path.Join("runs", rep.RunID+".json"), report, "application/json", meta)
}
