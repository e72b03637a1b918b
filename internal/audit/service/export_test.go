package service

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/snappy"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedEvents(t *testing.T) (*gorm.DB, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orgID := node.Generate()
	otherOrg := node.Generate()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	events := []auditdomain.Event{
		{ID: node.Generate(), OrgID: orgID, Action: auditdomain.ActionSubscriptionCreated, TargetType: "subscription", TargetID: node.Generate(), CreatedAt: base},
		{ID: node.Generate(), OrgID: orgID, Action: auditdomain.ActionInvoiceFinalized, TargetType: "invoice", TargetID: node.Generate(), Metadata: datatypes.JSONMap{"amount_cents": 1500}, CreatedAt: base.Add(time.Hour)},
		{ID: node.Generate(), OrgID: otherOrg, Action: auditdomain.ActionInvoiceVoided, TargetType: "invoice", TargetID: node.Generate(), CreatedAt: base.Add(2 * time.Hour)},
		// Outside the export range.
		{ID: node.Generate(), OrgID: orgID, Action: auditdomain.ActionInvoiceIssued, TargetType: "invoice", TargetID: node.Generate(), CreatedAt: base.AddDate(0, 1, 0)},
	}
	require.NoError(t, db.Create(&events).Error)
	return db, orgID
}

func TestExport_CSV(t *testing.T) {
	db, orgID := seedEvents(t)
	svc := NewExportService(db)

	result, err := svc.Export(context.Background(), auditdomain.ExportRequest{
		OrgID:     &orgID,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Format:    auditdomain.ExportFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.False(t, result.Compressed)

	hash := sha256.Sum256(result.Data)
	assert.Equal(t, hex.EncodeToString(hash[:]), result.Checksum)

	rows, err := csv.NewReader(strings.NewReader(string(result.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "org_id", "action", "target_type", "target_id", "metadata"}, rows[0])
	assert.Equal(t, auditdomain.ActionSubscriptionCreated, rows[1][2])
	assert.Equal(t, auditdomain.ActionInvoiceFinalized, rows[2][2])
}

func TestExport_JSONWithActionFilter(t *testing.T) {
	db, orgID := seedEvents(t)
	svc := NewExportService(db)

	result, err := svc.Export(context.Background(), auditdomain.ExportRequest{
		OrgID:     &orgID,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Format:    auditdomain.ExportFormatJSON,
		Actions:   []string{auditdomain.ActionInvoiceFinalized},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, auditdomain.ActionInvoiceFinalized, records[0]["action"])
	assert.Equal(t, orgID.String(), records[0]["org_id"])
}

func TestExport_CompressedChecksumCoversPlaintext(t *testing.T) {
	db, orgID := seedEvents(t)
	svc := NewExportService(db)

	req := auditdomain.ExportRequest{
		OrgID:     &orgID,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Format:    auditdomain.ExportFormatCSV,
	}

	plain, err := svc.Export(context.Background(), req)
	require.NoError(t, err)

	req.Compress = true
	compressed, err := svc.Export(context.Background(), req)
	require.NoError(t, err)
	require.True(t, compressed.Compressed)

	decoded, err := snappy.Decode(nil, compressed.Data)
	require.NoError(t, err)
	assert.Equal(t, plain.Data, decoded)
	assert.Equal(t, plain.Checksum, compressed.Checksum)
}

func TestExport_UnsupportedFormat(t *testing.T) {
	db, _ := seedEvents(t)
	svc := NewExportService(db)

	_, err := svc.Export(context.Background(), auditdomain.ExportRequest{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Format:    "parquet",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}
