package services

import (
	"bytes"
	"mime/multipart"
	"path/filepath"
	"testing"

	"github.com/recman/recman-backend/src/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")),
		&gorm.Config{TranslateError: true},
	)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&models.RecordModel{}, &models.FileModel{}))
	return database
}

func newTestStore(t *testing.T) *UploadStore {
	t.Helper()

	store, err := NewUploadStore(t.TempDir())
	require.NoError(t, err)
	return store
}

// fileHeader builds a real multipart file header so header.Open works the
// same way it does for an incoming request.
func fileHeader(t *testing.T, name, content string) *multipart.FileHeader {
	t.Helper()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	reader := multipart.NewReader(body, mw.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	return form.File["files"][0]
}
