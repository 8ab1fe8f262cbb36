package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/controllers"
	"github.com/recman/recman-backend/src/services"
)

func SetupArchiveRoutes(router *gin.Engine, service *services.ArchiveService) {
	controller := controllers.NewArchiveController(service)

	archiveGroup := router.Group("/archive")
	{
		archiveGroup.POST("/export", controller.Export)
		archiveGroup.POST("/import", controller.Import)
		archiveGroup.GET("/records.xlsx", controller.ExportExcel)
	}
}
