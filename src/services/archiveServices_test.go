package services

import (
	"archive/zip"
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recman/recman-backend/src/dtos"
	"github.com/recman/recman-backend/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveNames(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	for _, entry := range zr.File {
		names = append(names, entry.Name)
	}
	return names
}

func TestExportArchiveBadType(t *testing.T) {
	svc := NewArchiveService(newTestDB(t), newTestStore(t))

	_, err := svc.ExportArchive("tarball")
	assert.ErrorIs(t, err, ErrBadExportType)
}

func TestExportDatabaseOnly(t *testing.T) {
	database := newTestDB(t)
	store := newTestStore(t)
	records := NewRecordService(database, store)
	svc := NewArchiveService(database, store)

	_, err := records.CreateRecord(
		&dtos.RecordFormDTO{Title: "only db"},
		[]*multipart.FileHeader{fileHeader(t, "blob.bin", "xx")},
	)
	require.NoError(t, err)

	buf, err := svc.ExportArchive(ExportTypeDatabase)
	require.NoError(t, err)
	assert.Equal(t, []string{DatabaseDumpEntry}, archiveNames(t, buf))
}

func TestExportFilesOnly(t *testing.T) {
	database := newTestDB(t)
	store := newTestStore(t)
	records := NewRecordService(database, store)
	svc := NewArchiveService(database, store)

	record, err := records.CreateRecord(
		&dtos.RecordFormDTO{Title: "only files"},
		[]*multipart.FileHeader{fileHeader(t, "blob.bin", "xx")},
	)
	require.NoError(t, err)

	buf, err := svc.ExportArchive(ExportTypeFiles)
	require.NoError(t, err)
	assert.Equal(t, []string{record.Files[0].Filename}, archiveNames(t, buf))
}

func TestExportImportRoundTrip(t *testing.T) {
	// source system with two records and their blobs
	srcDB := newTestDB(t)
	srcStore := newTestStore(t)
	srcRecords := NewRecordService(srcDB, srcStore)
	srcArchive := NewArchiveService(srcDB, srcStore)

	_, err := srcRecords.CreateRecord(
		&dtos.RecordFormDTO{Title: "Alpha report", Description: "annual", GroupName: "finance"},
		[]*multipart.FileHeader{fileHeader(t, "a.pdf", "alpha pdf bytes")},
	)
	require.NoError(t, err)
	_, err = srcRecords.CreateRecord(
		&dtos.RecordFormDTO{Title: "Beta 'minutes'", Description: "it's quoted", GroupName: "ops"},
		[]*multipart.FileHeader{fileHeader(t, "b.txt", "beta text")},
	)
	require.NoError(t, err)

	buf, err := srcArchive.ExportArchive(ExportTypeBoth)
	require.NoError(t, err)

	// fresh empty system
	dstDB := newTestDB(t)
	dstStore := newTestStore(t)
	dstArchive := NewArchiveService(dstDB, dstStore)

	summary, err := dstArchive.ImportArchive(buf.Bytes())
	require.NoError(t, err)
	// 2 record inserts + 2 file inserts + 2 blobs; the CREATE TABLE
	// statements hit the migrated schema and are skipped
	assert.Equal(t, 6, summary.Imported)
	assert.Equal(t, 2, summary.StatementsSkipped)
	assert.Equal(t, 2, summary.FilesExtracted)

	var records []models.RecordModel
	require.NoError(t, dstDB.Preload("Files").Order("id ASC").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, "Alpha report", records[0].Title)
	assert.Equal(t, "annual", records[0].Description)
	assert.Equal(t, "finance", records[0].GroupName)
	assert.Equal(t, "Beta 'minutes'", records[1].Title)
	assert.Equal(t, "it's quoted", records[1].Description)

	for _, record := range records {
		require.Len(t, record.Files, 1)
		srcBytes, err := os.ReadFile(srcStore.Path(record.Files[0].Filename))
		require.NoError(t, err)
		dstBytes, err := os.ReadFile(dstStore.Path(record.Files[0].Filename))
		require.NoError(t, err)
		assert.Equal(t, srcBytes, dstBytes)
	}
}

func TestExportImportRoundTripMultilineText(t *testing.T) {
	srcDB := newTestDB(t)
	srcStore := newTestStore(t)
	srcRecords := NewRecordService(srcDB, srcStore)
	srcArchive := NewArchiveService(srcDB, srcStore)

	_, err := srcRecords.CreateRecord(
		&dtos.RecordFormDTO{Title: "notes", Description: "line one\nline two"},
		nil,
	)
	require.NoError(t, err)
	_, err = srcRecords.CreateRecord(
		&dtos.RecordFormDTO{Title: "tricky", Description: "ends in semi;\nsecond line"},
		nil,
	)
	require.NoError(t, err)

	buf, err := srcArchive.ExportArchive(ExportTypeDatabase)
	require.NoError(t, err)

	// every dumped statement sits on its own line, line breaks in the data
	// notwithstanding
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	dump, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimRight(string(dump), "\n"), "\n") {
		assert.True(t, strings.HasSuffix(line, ";"), "dump line %q is not a whole statement", line)
	}

	dstDB := newTestDB(t)
	dstArchive := NewArchiveService(dstDB, newTestStore(t))

	_, err = dstArchive.ImportArchive(buf.Bytes())
	require.NoError(t, err)

	var records []models.RecordModel
	require.NoError(t, dstDB.Order("id ASC").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, "line one\nline two", records[0].Description)
	assert.Equal(t, "ends in semi;\nsecond line", records[1].Description)
}

func TestSqlQuote(t *testing.T) {
	assert.Equal(t, "'plain'", sqlQuote("plain"))
	assert.Equal(t, "'it''s'", sqlQuote("it's"))
	assert.Equal(t, "'a' || char(10) || 'b'", sqlQuote("a\nb"))
	assert.Equal(t, "'a' || char(13) || '' || char(10) || 'b'", sqlQuote("a\r\nb"))
	assert.NotContains(t, sqlQuote("x\ny"), "\n")
}

func TestImportIsIdempotent(t *testing.T) {
	srcDB := newTestDB(t)
	srcStore := newTestStore(t)
	srcRecords := NewRecordService(srcDB, srcStore)
	srcArchive := NewArchiveService(srcDB, srcStore)

	_, err := srcRecords.CreateRecord(
		&dtos.RecordFormDTO{Title: "once"},
		[]*multipart.FileHeader{fileHeader(t, "once.txt", "only once")},
	)
	require.NoError(t, err)

	buf, err := srcArchive.ExportArchive(ExportTypeBoth)
	require.NoError(t, err)

	dstDB := newTestDB(t)
	dstStore := newTestStore(t)
	dstArchive := NewArchiveService(dstDB, dstStore)

	_, err = dstArchive.ImportArchive(buf.Bytes())
	require.NoError(t, err)

	again, err := dstArchive.ImportArchive(buf.Bytes())
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Zero(t, again.FilesExtracted)
	assert.EqualValues(t, 1, again.FilesAlreadyStored)

	var records, files int64
	require.NoError(t, dstDB.Model(&models.RecordModel{}).Count(&records).Error)
	require.NoError(t, dstDB.Model(&models.FileModel{}).Count(&files).Error)
	assert.EqualValues(t, 1, records)
	assert.EqualValues(t, 1, files)
}

func TestImportExistingBlobIsNeverOverwritten(t *testing.T) {
	store := newTestStore(t)
	svc := NewArchiveService(newTestDB(t), store)

	require.NoError(t, store.Save("kept.txt", strings.NewReader("local version")))

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	entry, err := zw.Create("kept.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("archive version"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	summary, err := svc.ImportArchive(buf.Bytes())
	require.NoError(t, err)
	assert.Zero(t, summary.FilesExtracted)
	assert.EqualValues(t, 1, summary.FilesAlreadyStored)

	data, err := os.ReadFile(store.Path("kept.txt"))
	require.NoError(t, err)
	assert.Equal(t, "local version", string(data))
}

func TestImportRejectsNonZipData(t *testing.T) {
	svc := NewArchiveService(newTestDB(t), newTestStore(t))

	_, err := svc.ImportArchive([]byte("definitely not a zip"))
	assert.ErrorIs(t, err, ErrNotZipArchive)
}

func TestImportForeignDumpSkipsTransactionControl(t *testing.T) {
	dstDB := newTestDB(t)
	svc := NewArchiveService(dstDB, newTestStore(t))

	dump := strings.Join([]string{
		"BEGIN TRANSACTION;",
		"PRAGMA foreign_keys=OFF;",
		"INSERT INTO record_models (id, title, description, group_name, created_at) VALUES (1, 'from sqlite', '', '', '2024-05-01 00:00:00');",
		"COMMIT;",
	}, "\n") + "\n"

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	entry, err := zw.Create(DatabaseDumpEntry)
	require.NoError(t, err)
	_, err = entry.Write([]byte(dump))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	summary, err := svc.ImportArchive(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StatementsApplied)

	var record models.RecordModel
	require.NoError(t, dstDB.First(&record, 1).Error)
	assert.Equal(t, "from sqlite", record.Title)
}

func TestImportFatalStatementAborts(t *testing.T) {
	svc := NewArchiveService(newTestDB(t), newTestStore(t))

	dump := "INSERT INTO no_such_table (id) VALUES (1);\n"
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	entry, err := zw.Create(DatabaseDumpEntry)
	require.NoError(t, err)
	_, err = entry.Write([]byte(dump))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = svc.ImportArchive(buf.Bytes())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotZipArchive)
}

func TestSplitStatements(t *testing.T) {
	input := strings.Join([]string{
		"CREATE TABLE t (",
		"  id INTEGER",
		");",
		"",
		"INSERT INTO t VALUES (1);",
	}, "\n")

	statements, err := splitStatements(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE TABLE t ( id INTEGER );", statements[0])
	assert.Equal(t, "INSERT INTO t VALUES (1);", statements[1])
}

func TestExportRecordsToExcel(t *testing.T) {
	database := newTestDB(t)
	store := newTestStore(t)
	records := NewRecordService(database, store)
	svc := NewArchiveService(database, store)

	_, err := records.CreateRecord(&dtos.RecordFormDTO{Title: "sheet me"}, nil)
	require.NoError(t, err)

	buf, err := svc.ExportRecordsToExcel()
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
	// xlsx files are zip containers
	_, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.NoError(t, err)
}

func TestExportAbortsWhenBlobUnreadable(t *testing.T) {
	database := newTestDB(t)
	store := newTestStore(t)
	records := NewRecordService(database, store)
	svc := NewArchiveService(database, store)

	record, err := records.CreateRecord(
		&dtos.RecordFormDTO{Title: "broken"},
		[]*multipart.FileHeader{fileHeader(t, "gone.txt", "x")},
	)
	require.NoError(t, err)

	// swap the blob for a dangling symlink so reading it fails
	blobPath := store.Path(record.Files[0].Filename)
	require.NoError(t, os.Remove(blobPath))
	require.NoError(t, os.Symlink(filepath.Join(t.TempDir(), "missing"), blobPath))

	_, err = svc.ExportArchive(ExportTypeBoth)
	require.Error(t, err)
}
