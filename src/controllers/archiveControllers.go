package controllers

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/services"
)

type ArchiveController struct {
	service *services.ArchiveService
}

func NewArchiveController(service *services.ArchiveService) *ArchiveController {
	return &ArchiveController{service: service}
}

func (ac *ArchiveController) Export(c *gin.Context) {
	exportType := c.PostForm("export_type")
	if exportType == "" {
		exportType = services.ExportTypeBoth
	}

	buf, err := ac.service.ExportArchive(exportType)
	if errors.Is(err, services.ErrBadExportType) {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="export.zip"`)
	c.Data(200, "application/zip", buf.Bytes())
}

func (ac *ArchiveController) Import(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(400, gin.H{"error": "No file part"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		c.JSON(400, gin.H{"error": "No selected file"})
		return
	}
	// only .zip uploads make it past the boundary
	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		c.JSON(400, gin.H{"error": "Expected a .zip archive"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(500, gin.H{"error": "Could not read uploaded file"})
		return
	}

	summary, err := ac.service.ImportArchive(data)
	if errors.Is(err, services.ErrNotZipArchive) {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, summary)
}

func (ac *ArchiveController) ExportExcel(c *gin.Context) {
	buf, err := ac.service.ExportRecordsToExcel()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="records.xlsx"`)
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
