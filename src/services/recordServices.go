package services

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/recman/recman-backend/src/dtos"
	"github.com/recman/recman-backend/src/models"
	"gorm.io/gorm"
)

var ErrTitleRequired = errors.New("title is required")

// Cache entry
type CacheEntry struct {
	Data      interface{}
	ExpiresAt time.Time
}

type RecordService struct {
	db    *gorm.DB
	store *UploadStore
	cache map[string]*CacheEntry
	mutex sync.RWMutex
}

func NewRecordService(db *gorm.DB, store *UploadStore) *RecordService {
	service := &RecordService{
		db:    db,
		store: store,
		cache: make(map[string]*CacheEntry),
	}

	// Clean up cache every 30 minutes
	go service.cleanupCache()

	return service
}

func (s *RecordService) cleanupCache() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mutex.Lock()
		now := time.Now()
		for key, entry := range s.cache {
			if now.After(entry.ExpiresAt) {
				delete(s.cache, key)
			}
		}
		s.mutex.Unlock()
	}
}

func (s *RecordService) setCache(key string, data interface{}, duration time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cache[key] = &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(duration),
	}
}

func (s *RecordService) getCache(key string) (interface{}, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.cache[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}

	return entry.Data, true
}

func (s *RecordService) invalidateCache(prefix string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key := range s.cache {
		if strings.HasPrefix(key, prefix) {
			delete(s.cache, key)
		}
	}
}

// ======================= RECORDS =======================

func (s *RecordService) GetRecordByID(id int) (*models.RecordModel, error) {
	cacheKey := fmt.Sprintf("record_%d", id)

	if cached, found := s.getCache(cacheKey); found {
		record := cached.(models.RecordModel)
		return &record, nil
	}

	var record models.RecordModel
	if err := s.db.Preload("Files").First(&record, id).Error; err != nil {
		return nil, err
	}

	s.setCache(cacheKey, record, 10*time.Minute)

	return &record, nil
}

func (s *RecordService) CreateRecord(form *dtos.RecordFormDTO, uploads []*multipart.FileHeader) (*models.RecordModel, error) {
	if strings.TrimSpace(form.Title) == "" {
		return nil, ErrTitleRequired
	}

	record := models.RecordModel{
		Title:       form.Title,
		Description: form.Description,
		GroupName:   form.GroupName,
		CreatedAt:   time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		rows, err := s.attachFiles(tx, record.Id, uploads)
		if err != nil {
			return err
		}
		record.Files = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache("record_")

	return &record, nil
}

func (s *RecordService) UpdateRecord(id int, form *dtos.RecordFormDTO, uploads []*multipart.FileHeader) (*models.RecordModel, error) {
	if strings.TrimSpace(form.Title) == "" {
		return nil, ErrTitleRequired
	}

	var record models.RecordModel
	if err := s.db.Preload("Files").First(&record, id).Error; err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// CreatedAt stays untouched on edit
		updates := map[string]interface{}{
			"title":       form.Title,
			"description": form.Description,
			"group_name":  form.GroupName,
		}
		if err := tx.Model(&record).Updates(updates).Error; err != nil {
			return err
		}

		// Existing files are never replaced, only appended
		rows, err := s.attachFiles(tx, record.Id, uploads)
		if err != nil {
			return err
		}
		record.Files = append(record.Files, rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(fmt.Sprintf("record_%d", id))

	return &record, nil
}

// DeleteFile removes a file's blob and its metadata row as one unit: the row
// delete is rolled back when the blob cannot be removed, so the store never
// keeps exactly one of the two.
func (s *RecordService) DeleteFile(fileId int) (*models.FileModel, error) {
	var file models.FileModel
	if err := s.db.First(&file, fileId).Error; err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.FileModel{}, fileId).Error; err != nil {
			return err
		}
		if err := s.store.Remove(file.Filename); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("could not remove file %s: %w", file.Filename, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(fmt.Sprintf("record_%d", file.RecordId))

	return &file, nil
}

// DeleteRecord cascades: file rows and blobs go together with the record.
func (s *RecordService) DeleteRecord(id int) error {
	var record models.RecordModel
	if err := s.db.Preload("Files").First(&record, id).Error; err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ?", id).Delete(&models.FileModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.RecordModel{}, id).Error; err != nil {
			return err
		}
		for _, file := range record.Files {
			if err := s.store.Remove(file.Filename); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("could not remove file %s: %w", file.Filename, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateCache("record_")

	return nil
}

// attachFiles saves uploaded blobs and their metadata rows. The blob is
// written first; when a later step fails, every blob written in this call is
// removed again so the surrounding transaction leaves no orphans behind.
func (s *RecordService) attachFiles(tx *gorm.DB, recordId int, uploads []*multipart.FileHeader) ([]models.FileModel, error) {
	var rows []models.FileModel
	var blobs []string

	cleanup := func() {
		for _, name := range blobs {
			_ = s.store.Remove(name)
		}
	}

	for _, header := range uploads {
		if header == nil || header.Filename == "" {
			continue
		}

		name, err := BlobName(recordId, header.Filename)
		if err != nil {
			cleanup()
			return nil, err
		}

		src, err := header.Open()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("could not read upload %s: %w", header.Filename, err)
		}
		err = s.store.Save(name, src)
		src.Close()
		if err != nil {
			cleanup()
			return nil, err
		}
		blobs = append(blobs, name)

		row := models.FileModel{Filename: name, RecordId: recordId}
		if err := tx.Create(&row).Error; err != nil {
			cleanup()
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}
