package controllers

import (
	"errors"
	"mime/multipart"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/dtos"
	"github.com/recman/recman-backend/src/services"
	"gorm.io/gorm"
)

type RecordController struct {
	service *services.RecordService
	store   *services.UploadStore
}

func NewRecordController(service *services.RecordService, store *services.UploadStore) *RecordController {
	return &RecordController{service: service, store: store}
}

func (rc *RecordController) GetRecordByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid ID format"})
		return
	}

	record, err := rc.service.GetRecordByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(404, gin.H{"error": "Record not found"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, record)
}

func (rc *RecordController) CreateRecord(c *gin.Context) {
	var form dtos.RecordFormDTO
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	record, err := rc.service.CreateRecord(&form, formUploads(c))
	switch {
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrEmptyFilename):
		c.JSON(400, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(201, record)
}

func (rc *RecordController) UpdateRecord(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid ID format"})
		return
	}

	var form dtos.RecordFormDTO
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	record, err := rc.service.UpdateRecord(id, &form, formUploads(c))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(404, gin.H{"error": "Record not found"})
		return
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrEmptyFilename):
		c.JSON(400, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, record)
}

func (rc *RecordController) DeleteRecord(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid ID format"})
		return
	}

	err = rc.service.DeleteRecord(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(404, gin.H{"error": "Record not found"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"message": "Record deleted successfully"})
}

func (rc *RecordController) DeleteFile(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid ID format"})
		return
	}

	file, err := rc.service.DeleteFile(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(404, gin.H{"error": "File not found"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"message": "File deleted successfully", "recordId": file.RecordId})
}

func (rc *RecordController) ServeUpload(c *gin.Context) {
	name := services.SanitizeFilename(c.Param("filename"))
	if name == "" {
		c.JSON(400, gin.H{"error": "Invalid filename"})
		return
	}

	path := rc.store.Path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.JSON(404, gin.H{"error": "File not found"})
		return
	}
	c.File(path)
}

// formUploads collects the multipart "files" parts, if any. A plain JSON
// body simply yields no uploads.
func formUploads(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["files"]
}
