package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/controllers"
	"github.com/recman/recman-backend/src/services"
)

func SetupRecordRoutes(router *gin.Engine, service *services.RecordService, store *services.UploadStore) {
	controller := controllers.NewRecordController(service, store)

	recordGroup := router.Group("/records")
	{
		// CRUD
		recordGroup.GET("/:id", controller.GetRecordByID)
		recordGroup.POST("", controller.CreateRecord)
		recordGroup.PUT("/:id", controller.UpdateRecord)
		recordGroup.DELETE("/:id", controller.DeleteRecord)
	}

	// Attached files
	router.DELETE("/files/:id", controller.DeleteFile)
	router.GET("/uploads/:filename", controller.ServeUpload)
}
