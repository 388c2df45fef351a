// Package export downloads server-rendered reports of a collection and
// hands the bytes to a sink.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/natefinch/atomic"

	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/query"
	"github.com/h0rv/colsync/internal/transport"
)

// DefaultRegion is used by S3 sinks without an explicit region.
const DefaultRegion = "us-east-1"

// Sink stores a downloaded report.
type Sink interface {
	// Write stores data under name and returns where it went.
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Exporter downloads reports for one container.
type Exporter struct {
	t    transport.Transport
	c    *collection.Container
	path string
	name string
	sink Sink
}

// New creates an exporter that GETs path and stores the result as name.
// An empty name defaults to "<store>.xls".
func New(t transport.Transport, c *collection.Container, path, name string, sink Sink) *Exporter {
	if name == "" {
		name = c.Name() + ".xls"
	}
	return &Exporter{t: t, c: c, path: path, name: name, sink: sink}
}

// Export downloads the report for the container's current params, filters
// and groups and writes it to the sink.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	snap := e.c.Snapshot()
	params := query.BuildParams(snap.Params, snap.Filters, snap.Groups)

	data, err := e.t.Get(ctx, e.path, params)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", e.c.Name(), err)
	}
	location, err := e.sink.Write(ctx, e.name, data)
	if err != nil {
		return "", fmt.Errorf("write export %s: %w", e.name, err)
	}
	e.c.Logger().Info("export written", "store", e.c.Name(), "location", location, "bytes", len(data))
	return location, nil
}

// FileSink writes reports into a local directory. Files are replaced
// atomically so a reader never sees a partial report.
type FileSink struct {
	Dir string
}

// Write implements Sink.
func (s FileSink) Write(_ context.Context, name string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return path, nil
}

// S3Config configures an S3Sink.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional; enables path-style addressing (MinIO etc.)
}

// S3Sink uploads reports to an S3-compatible bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink using the default AWS credentials chain.
// Extra load options are applied after the region.
func NewS3Sink(ctx context.Context, cfg S3Config, opts ...func(*config.LoadOptions) error) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, opts...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, name string, data []byte) (string, error) {
	key := name
	if s.prefix != "" {
		key = s.prefix + "/" + name
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(name)),
	})
	if err != nil {
		return "", err
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
