package csvio

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/cleaning"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// Exporter writes tables to the configured export destination
type Exporter struct {
	logger   *logging.Logger
	config   config.ExportConfig
	uploader s3manageriface.UploaderAPI
}

// NewExporter creates an Exporter. An S3 uploader is created lazily on the
// first upload unless one is injected with WithUploader.
func NewExporter(cfg config.ExportConfig, logger *logging.Logger) *Exporter {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Exporter{logger: logger, config: cfg}
}

// WithUploader sets the S3 uploader
func (e *Exporter) WithUploader(u s3manageriface.UploaderAPI) *Exporter {
	e.uploader = u
	return e
}

// Export writes t under filename and returns the destination. Compressed
// exports get the ".sz" suffix.
func (e *Exporter) Export(ctx context.Context, t *analytics.Table, filename string) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: no data to export", analytics.ErrInvalidConfig)
	}
	if filename == "" {
		filename = cleaning.DefaultFilename + ".csv"
	}
	if e.config.Compress && !strings.HasSuffix(filename, SnappyExt) {
		filename += SnappyExt
	}

	data, err := Encode(t, e.config.Compress)
	if err != nil {
		return "", err
	}

	var dest string
	if e.config.IsS3() {
		dest, err = e.upload(ctx, filename, data)
	} else {
		dest, err = e.writeLocal(filename, data)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Exported table",
		"destination", dest,
		"rows", t.Len(),
		"columns", len(t.ColumnNames()),
		"bytes", len(data))
	return dest, nil
}

// ExportCleaned exports the analyzer's cleaned table as <filename>_cleaned.csv.
// It fails when no fill step has produced cleaned data.
func (e *Exporter) ExportCleaned(ctx context.Context, a *cleaning.Analyzer) (string, error) {
	if a.Cleaned() == nil {
		return "", fmt.Errorf("%w: no cleaned data to export", analytics.ErrInvalidConfig)
	}
	return e.Export(ctx, a.Cleaned(), a.CleanedFilename())
}

func (e *Exporter) writeLocal(filename string, data []byte) (string, error) {
	dest := filename
	if !filepath.IsAbs(filename) {
		dest = filepath.Join(e.config.Dir, filename)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, nil
}

func (e *Exporter) upload(ctx context.Context, filename string, data []byte) (string, error) {
	bucket, prefix, err := splitS3URL(e.config.Dir)
	if err != nil {
		return "", err
	}
	if e.uploader == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(e.config.S3Region),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create aws session: %w", err)
		}
		e.uploader = s3manager.NewUploader(sess)
	}

	key := path.Join(prefix, filename)
	contentType := "text/csv"
	if strings.HasSuffix(filename, SnappyExt) {
		contentType = "application/x-snappy-framed"
	}

	_, err = e.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

// splitS3URL splits "s3://bucket/prefix" into bucket and key prefix
func splitS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: invalid s3 destination %q", analytics.ErrInvalidConfig, raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
