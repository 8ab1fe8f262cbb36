package controllers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/recman/recman-backend/src/services"
)

type SearchController struct {
	service *services.SearchService
}

func NewSearchController(service *services.SearchService) *SearchController {
	return &SearchController{service: service}
}

func (sc *SearchController) Search(c *gin.Context) {
	page := 1
	if p := c.Query("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			c.JSON(400, gin.H{"error": "Invalid page parameter"})
			return
		}
		page = parsed
	}

	params := &services.SearchParams{
		Query:     c.Query("query"),
		GroupName: c.Query("group_name"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Page:      page,
	}

	result, err := sc.service.Search(params)
	if errors.Is(err, services.ErrInvalidDate) {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"items":   result.Items,
		"page":    result.Page,
		"total":   result.Total,
		"hasNext": result.HasNext,
		"hasPrev": result.HasPrev,
	}
	// filter params round-trip unchanged through the navigation links
	if result.HasNext {
		response["nextUrl"] = pageURL(c, page+1)
	}
	if result.HasPrev {
		response["prevUrl"] = pageURL(c, page-1)
	}
	if result.Truncated {
		response["warning"] = fmt.Sprintf("query truncated to the first %d words", services.MaxQueryWords)
	}

	c.JSON(200, response)
}

func pageURL(c *gin.Context, page int) string {
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(page))
	return c.Request.URL.Path + "?" + q.Encode()
}
