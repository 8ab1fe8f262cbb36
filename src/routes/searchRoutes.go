package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/controllers"
	"github.com/recman/recman-backend/src/services"
)

func SetupSearchRoutes(router *gin.Engine, service *services.SearchService) {
	controller := controllers.NewSearchController(service)

	// The listing is the same endpoint without filters
	router.GET("/search", controller.Search)
	router.GET("/records", controller.Search)
}
