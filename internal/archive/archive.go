// Package archive optionally snapshots each ingested article's raw body to
// S3 before enrichment mutates the store's copy, so the original text
// remains recoverable if a later enrichment pass needs re-processing with
// a different model. Disabled by default (§6 names no retention store for
// raw articles beyond the document store itself; this is a supplemented
// feature grounded on the donor's own S3 object-store usage).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
)

// Archiver snapshots raw article bytes to an S3 bucket.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// New builds an Archiver when cfg.Enabled; returns (nil, nil) otherwise, so
// callers can unconditionally invoke Snapshot without a nil check gate at
// every call site (Snapshot itself no-ops on a nil receiver).
func New(ctx context.Context, cfg config.ArchiveConfig, log zerolog.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		log:    log,
	}, nil
}

// Snapshot uploads the article's raw title+body under a key derived from
// its ID. Failures are logged and swallowed: archiving is best-effort and
// must never block ingestion, matching the error-isolation policy the rest
// of the pipeline applies to non-critical side effects (§7).
func (a *Archiver) Snapshot(ctx context.Context, articleID, title, body string) {
	if a == nil {
		return
	}
	key := a.fullKey(articleID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(title + "\n\n" + body)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		a.log.Warn().Err(err).Str("article_id", articleID).Msg("archive_snapshot_failed")
	}
}

func (a *Archiver) fullKey(articleID string) string {
	if a.prefix == "" {
		return articleID + ".txt"
	}
	return a.prefix + "/" + articleID + ".txt"
}
