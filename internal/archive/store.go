// Package archive stores analytics reports and converted journeys in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store writes archive objects to one bucket.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ReportKey is the object key of a report generated at the given time.
func ReportKey(tf conversion.Timeframe, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("reports/%s/%d/%02d/%02d.json", tf, at.Year(), at.Month(), at.Day())
}

// ArchiveReport writes the report as JSON and records it in the manifest.
// A report archived twice on the same day replaces the earlier one.
func (s *Store) ArchiveReport(ctx context.Context, r conversion.Report) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	at := r.EndDate
	if at.IsZero() {
		at = time.Now().UTC()
	}
	key := ReportKey(r.Timeframe, at)
	if err := s.putJSON(ctx, key, ReportRecord{Version: SchemaVersion, ArchivedAt: at, Report: r}); err != nil {
		return "", err
	}
	s.logger.Info("archived report to S3", "s3_key", key, "timeframe", r.Timeframe, "customers", r.Summary.TotalCustomers)

	entry := ManifestEntry{
		Kind:           KindReport,
		S3Key:          key,
		ArchivedAt:     at.Format(time.RFC3339),
		Timeframe:      string(r.Timeframe),
		Customers:      r.Summary.TotalCustomers,
		Conversions:    r.Summary.TotalConversions,
		ConversionRate: r.Summary.ConversionRate,
		Revenue:        r.Summary.TotalRevenue,
	}
	if err := s.appendManifest(ctx, at, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "s3_key", key)
	}
	return key, nil
}

// ArchiveJourney writes a scrubbed copy of a converted journey.
func (s *Store) ArchiveJourney(ctx context.Context, j *conversion.Journey) error {
	if !s.Enabled() || j == nil {
		return nil
	}
	at := j.LastInteraction.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	scrubbed := ScrubJourney(j)
	key := fmt.Sprintf("journeys/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), scrubbed.CustomerID)
	record := JourneyRecord{Version: SchemaVersion, CustomerHash: scrubbed.CustomerID, ArchivedAt: at, Journey: scrubbed}
	if err := s.putJSON(ctx, key, record); err != nil {
		return err
	}
	s.logger.Info("archived journey to S3", "s3_key", key, "interactions", j.Metrics.TotalInteractions)

	entry := ManifestEntry{
		Kind:         KindJourney,
		S3Key:        key,
		ArchivedAt:   at.Format(time.RFC3339),
		CustomerHash: scrubbed.CustomerID,
		Revenue:      j.Metrics.ConversionValue,
	}
	if err := s.appendManifest(ctx, at, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "s3_key", key)
	}
	return nil
}

// AppendManifest appends a JSONL line to the manifest of the current month.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	return s.appendManifest(ctx, time.Now().UTC(), entry)
}

func manifestKey(at time.Time) string {
	return fmt.Sprintf("manifests/%d-%02d.jsonl", at.Year(), at.Month())
}

// appendManifest uses read-modify-write since S3 doesn't support append.
func (s *Store) appendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	key := manifestKey(at.UTC())

	var existing []byte
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("archive: marshal %s: %w", key, err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}
