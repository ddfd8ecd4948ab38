package archive

import (
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
)

// SchemaVersion is written into every archived record.
const SchemaVersion = "1.0"

// Record kinds listed in the manifest.
const (
	KindReport  = "report"
	KindJourney = "journey"
)

// ReportRecord is an analytics report as archived to S3.
type ReportRecord struct {
	Version    string            `json:"version"`
	ArchivedAt time.Time         `json:"archived_at"`
	Report     conversion.Report `json:"report"`
}

// JourneyRecord is a converted journey with customer identifiers removed.
type JourneyRecord struct {
	Version      string              `json:"version"`
	CustomerHash string              `json:"customer_hash"`
	ArchivedAt   time.Time           `json:"archived_at"`
	Journey      *conversion.Journey `json:"journey"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	Kind           string  `json:"kind"`
	S3Key          string  `json:"s3_key"`
	ArchivedAt     string  `json:"archived_at"`
	Timeframe      string  `json:"timeframe,omitempty"`
	CustomerHash   string  `json:"customer_hash,omitempty"`
	Customers      int     `json:"customers,omitempty"`
	Conversions    int     `json:"conversions,omitempty"`
	ConversionRate float64 `json:"conversion_rate,omitempty"`
	Revenue        float64 `json:"revenue,omitempty"`
}
