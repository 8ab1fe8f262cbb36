package services

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/recman/recman-backend/src/dtos"
	"github.com/recman/recman-backend/src/models"
	excelize "github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// DatabaseDumpEntry is the archive entry holding the logical SQL dump.
const DatabaseDumpEntry = "database_export.sql"

const (
	ExportTypeDatabase = "database"
	ExportTypeFiles    = "files"
	ExportTypeBoth     = "both"
)

var (
	ErrBadExportType = errors.New("export type must be database, files or both")
	ErrNotZipArchive = errors.New("uploaded file is not a valid zip archive")
)

// Table DDL emitted into the dump. Replaying it onto a store that already
// carries the schema is expected and classified as a skip.
const (
	recordTableDDL = "CREATE TABLE record_models (id INTEGER PRIMARY KEY AUTOINCREMENT, title VARCHAR(120) NOT NULL, description TEXT, group_name VARCHAR(120), created_at DATETIME);"
	fileTableDDL   = "CREATE TABLE file_models (id INTEGER PRIMARY KEY AUTOINCREMENT, filename VARCHAR(255) NOT NULL, record_id INTEGER NOT NULL);"
)

type ArchiveService struct {
	db    *gorm.DB
	store *UploadStore
	// export and import both touch the whole store and the whole upload
	// tree, so they take turns
	mutex sync.Mutex
}

func NewArchiveService(db *gorm.DB, store *UploadStore) *ArchiveService {
	return &ArchiveService{db: db, store: store}
}

// ======================= EXPORT =======================

// ExportArchive builds the full zip in memory and only hands it out once
// every entry was written. Any store or filesystem error aborts the whole
// export, a partial archive is never returned.
func (s *ArchiveService) ExportArchive(exportType string) (*bytes.Buffer, error) {
	switch exportType {
	case ExportTypeDatabase, ExportTypeFiles, ExportTypeBoth:
	default:
		return nil, ErrBadExportType
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	if exportType == ExportTypeDatabase || exportType == ExportTypeBoth {
		if err := s.exportDatabase(zw); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if exportType == ExportTypeFiles || exportType == ExportTypeBoth {
		if err := s.exportFiles(zw); err != nil {
			zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// exportDatabase stages the logical dump in a scratch file that is removed
// again no matter how the export ends.
func (s *ArchiveService) exportDatabase(zw *zip.Writer) error {
	scratch, err := os.CreateTemp("", "database_export_*.sql")
	if err != nil {
		return fmt.Errorf("could not create scratch dump file: %w", err)
	}
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	if err := s.writeDump(scratch); err != nil {
		return err
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return err
	}

	entry, err := zw.Create(DatabaseDumpEntry)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, scratch)
	return err
}

// writeDump serializes the store as newline-terminated SQL statements, one
// per line, each ending with a semicolon. Rows are dumped with explicit ids
// so a replay onto a fresh store recreates them verbatim.
func (s *ArchiveService) writeDump(w io.Writer) error {
	var records []models.RecordModel
	if err := s.db.Order("id ASC").Find(&records).Error; err != nil {
		return fmt.Errorf("could not read records for export: %w", err)
	}
	var files []models.FileModel
	if err := s.db.Order("id ASC").Find(&files).Error; err != nil {
		return fmt.Errorf("could not read files for export: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, recordTableDDL)
	fmt.Fprintln(bw, fileTableDDL)

	for _, r := range records {
		fmt.Fprintf(bw, "INSERT INTO record_models (id, title, description, group_name, created_at) VALUES (%d, %s, %s, %s, %s);\n",
			r.Id, sqlQuote(r.Title), sqlQuote(r.Description), sqlQuote(r.GroupName),
			sqlQuote(r.CreatedAt.UTC().Format("2006-01-02 15:04:05")))
	}
	for _, f := range files {
		fmt.Fprintf(bw, "INSERT INTO file_models (id, filename, record_id) VALUES (%d, %s, %d);\n",
			f.Id, sqlQuote(f.Filename), f.RecordId)
	}

	return bw.Flush()
}

func (s *ArchiveService) exportFiles(zw *zip.Writer) error {
	return s.store.Walk(func(rel string, fullPath string) error {
		src, err := os.Open(fullPath)
		if err != nil {
			return fmt.Errorf("could not read upload %s: %w", rel, err)
		}
		defer src.Close()

		entry, err := zw.Create(rel)
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, src)
		return err
	})
}

// sqlQuote renders v as a SQL string expression that fits on a single line.
// Quotes are doubled, and line breaks are emitted as char() concatenations so
// a dumped statement never spans multiple lines.
func sqlQuote(v string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range v {
		switch r {
		case '\'':
			b.WriteString("''")
		case '\n':
			b.WriteString("' || char(10) || '")
		case '\r':
			b.WriteString("' || char(13) || '")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// ======================= IMPORT =======================

// ImportArchive restores a previously exported archive. The dump is replayed
// statement by statement with conflicts skipped, and blobs are extracted only
// when absent, which makes importing the same archive twice a no-op.
func (s *ArchiveService) ImportArchive(data []byte) (*dtos.ImportSummaryDTO, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotZipArchive, err)
	}

	summary := &dtos.ImportSummaryDTO{}

	for _, entry := range zr.File {
		if entry.Name == DatabaseDumpEntry {
			if err := s.replayDump(entry, summary); err != nil {
				return nil, err
			}
		}
	}

	for _, entry := range zr.File {
		if entry.Name == DatabaseDumpEntry || entry.FileInfo().IsDir() {
			continue
		}
		// existing blobs are never overwritten
		if s.store.Exists(entry.Name) {
			summary.FilesAlreadyStored++
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("could not read archive entry %s: %w", entry.Name, err)
		}
		err = s.store.Extract(entry.Name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		summary.FilesExtracted++
	}

	summary.Imported = summary.StatementsApplied + summary.FilesExtracted
	summary.Skipped = summary.StatementsSkipped + summary.FilesAlreadyStored

	return summary, nil
}

func (s *ArchiveService) replayDump(entry *zip.File, summary *dtos.ImportSummaryDTO) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("could not read %s: %w", DatabaseDumpEntry, err)
	}
	defer rc.Close()

	statements, err := splitStatements(rc)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", DatabaseDumpEntry, err)
	}

	for _, stmt := range statements {
		upper := strings.ToUpper(stmt)
		// transaction control and pragmas from foreign dumps carry no data
		if strings.HasPrefix(upper, "BEGIN") || strings.HasPrefix(upper, "COMMIT") ||
			strings.HasPrefix(upper, "PRAGMA") {
			continue
		}

		err := s.db.Exec(stmt).Error
		switch classifyReplayError(err) {
		case stmtApplied:
			summary.StatementsApplied++
		case stmtDuplicate:
			log.Printf("Import: skipping duplicate row: %v\n", err)
			summary.StatementsSkipped++
		case stmtAlreadyExists:
			log.Printf("Import: skipping existing schema object: %v\n", err)
			summary.StatementsSkipped++
		default:
			return fmt.Errorf("import failed on statement %q: %w", stmt, err)
		}
	}

	return nil
}

// splitStatements reads a dump into whole statements. Lines accumulate until
// one ends with the semicolon terminator.
func splitStatements(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var statements []string
	var buffer strings.Builder

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if buffer.Len() > 0 {
			buffer.WriteString(" ")
		}
		buffer.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, buffer.String())
			buffer.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return statements, nil
}

type replayOutcome int

const (
	stmtApplied replayOutcome = iota
	stmtDuplicate
	stmtAlreadyExists
	stmtFailed
)

// Recognized conflict signatures across the sqlite and postgres drivers.
var (
	duplicateSignatures = []string{
		"UNIQUE constraint failed",
		"duplicate key value violates unique constraint",
	}
	existsSignatures = []string{
		"already exists",
	}
)

func classifyReplayError(err error) replayOutcome {
	if err == nil {
		return stmtApplied
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return stmtDuplicate
	}
	msg := err.Error()
	for _, sig := range duplicateSignatures {
		if strings.Contains(msg, sig) {
			return stmtDuplicate
		}
	}
	for _, sig := range existsSignatures {
		if strings.Contains(msg, sig) {
			return stmtAlreadyExists
		}
	}
	return stmtFailed
}

// ======================= SPREADSHEET =======================

// ExportRecordsToExcel renders the full record listing as an xlsx workbook.
func (s *ArchiveService) ExportRecordsToExcel() (*bytes.Buffer, error) {
	var records []models.RecordModel
	if err := s.db.Preload("Files").Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("could not read records for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Records"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"ID", "Title", "Description", "Group", "Created", "Files"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, r := range records {
		values := []interface{}{
			r.Id, r.Title, r.Description, r.GroupName,
			r.CreatedAt.Format("2006-01-02 15:04"), len(r.Files),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return f.WriteToBuffer()
}
