package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"gorm.io/gorm"
)

type ExportService struct {
	db *gorm.DB
}

func NewExportService(db *gorm.DB) auditdomain.ExportService {
	return &ExportService{db: db}
}

func (s *ExportService) Export(ctx context.Context, req auditdomain.ExportRequest) (*auditdomain.ExportResult, error) {
	query := s.db.WithContext(ctx).Model(&auditdomain.Event{}).
		Where("created_at >= ? AND created_at < ?", req.StartDate, req.EndDate)

	if req.OrgID != nil {
		query = query.Where("org_id = ?", *req.OrgID)
	}
	if len(req.Actions) > 0 {
		query = query.Where("action IN ?", req.Actions)
	}

	var events []auditdomain.Event
	if err := query.Order("id ASC").Find(&events).Error; err != nil {
		return nil, err
	}

	var data []byte
	var err error
	switch req.Format {
	case auditdomain.ExportFormatCSV:
		data, err = formatCSV(events)
	case auditdomain.ExportFormatJSON:
		data, err = formatJSON(events)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", req.Format)
	}
	if err != nil {
		return nil, err
	}

	result := &auditdomain.ExportResult{
		Data:     data,
		Checksum: checksum(data),
		Format:   req.Format,
		Count:    len(events),
	}
	if req.Compress {
		result.Data = snappy.Encode(nil, data)
		result.Compressed = true
	}
	return result, nil
}

func formatCSV(events []auditdomain.Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"timestamp", "org_id", "action", "target_type", "target_id", "metadata"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, event := range events {
		metadataJSON, _ := json.Marshal(event.Metadata)
		row := []string{
			event.CreatedAt.Format(time.RFC3339),
			event.OrgID.String(),
			event.Action,
			event.TargetType,
			event.TargetID.String(),
			string(metadataJSON),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatJSON(events []auditdomain.Event) ([]byte, error) {
	type exportRecord struct {
		Timestamp  string         `json:"timestamp"`
		OrgID      string         `json:"org_id"`
		Action     string         `json:"action"`
		TargetType string         `json:"target_type"`
		TargetID   string         `json:"target_id"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}

	records := make([]exportRecord, 0, len(events))
	for _, event := range events {
		records = append(records, exportRecord{
			Timestamp:  event.CreatedAt.Format(time.RFC3339),
			OrgID:      event.OrgID.String(),
			Action:     event.Action,
			TargetType: event.TargetType,
			TargetID:   event.TargetID.String(),
			Metadata:   event.Metadata,
		})
	}
	return json.MarshalIndent(records, "", "  ")
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
