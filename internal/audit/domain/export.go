package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

type ExportRequest struct {
	OrgID     *snowflake.ID
	StartDate time.Time
	EndDate   time.Time
	Format    ExportFormat
	// Actions optionally restricts the export to the named lifecycle actions.
	Actions []string
	// Compress snappy-encodes the payload. The checksum always covers the
	// uncompressed bytes so it can be verified after decoding.
	Compress bool
}

type ExportResult struct {
	Data       []byte
	Checksum   string
	Format     ExportFormat
	Count      int
	Compressed bool
}

type ExportService interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}
