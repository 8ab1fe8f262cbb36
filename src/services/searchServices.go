package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/recman/recman-backend/src/dtos"
	"github.com/recman/recman-backend/src/models"
	"gorm.io/gorm"
)

const (
	SearchPageSize = 10
	MaxQueryWords  = 10
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// SearchParams are the raw filter inputs as they arrive from the caller.
// Empty strings mean "filter not supplied".
type SearchParams struct {
	Query     string
	GroupName string
	DateFrom  string
	DateTo    string
	Page      int
}

type SearchService struct {
	db *gorm.DB
}

func NewSearchService(db *gorm.DB) *SearchService {
	return &SearchService{db: db}
}

// Search returns one page of records ranked by relevance weight:
// 3 per query word hitting the title, 2 per word hitting the description,
// plus 1 when the group filter matched. Filter categories combine with AND,
// words within the text category with OR. Without any filter the listing is
// an unranked scan ordered by id.
func (s *SearchService) Search(params *SearchParams) (*dtos.SearchResultDTO, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}

	words := strings.Fields(params.Query)
	truncated := false
	if len(words) > MaxQueryWords {
		words = words[:MaxQueryWords]
		truncated = true
	}

	group := strings.TrimSpace(params.GroupName)

	var dateFrom, dateTo time.Time
	if params.DateFrom != "" {
		t, err := time.Parse("2006-01-02", params.DateFrom)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, params.DateFrom)
		}
		dateFrom = t
	}
	if params.DateTo != "" {
		t, err := time.Parse("2006-01-02", params.DateTo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, params.DateTo)
		}
		dateTo = t
	}

	// Fresh query per use so Count and Scan do not share builder state
	filtered := func() *gorm.DB {
		q := s.db.Model(&models.RecordModel{})
		if len(words) > 0 {
			var conds []string
			var args []interface{}
			for _, word := range words {
				pattern := "%" + strings.ToLower(word) + "%"
				conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
				args = append(args, pattern, pattern)
			}
			q = q.Where(strings.Join(conds, " OR "), args...)
		}
		if group != "" {
			q = q.Where("LOWER(group_name) LIKE ?", "%"+strings.ToLower(group)+"%")
		}
		if !dateFrom.IsZero() {
			q = q.Where("created_at >= ?", dateFrom)
		}
		if !dateTo.IsZero() {
			// date_to is inclusive, so the cut is the following midnight
			q = q.Where("created_at < ?", dateTo.AddDate(0, 0, 1))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, err
	}

	weightExpr, weightArgs := buildWeightExpr(words, group)

	type rankedRow struct {
		Id          int
		Title       string
		Description string
		GroupName   string    `gorm:"column:group_name"`
		CreatedAt   time.Time `gorm:"column:created_at"`
		Weight      int
	}
	var rows []rankedRow

	err := filtered().
		Select("record_models.*, ("+weightExpr+") AS weight", weightArgs...).
		Order("weight DESC, id ASC").
		Limit(SearchPageSize).
		Offset((page - 1) * SearchPageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Id)
	}
	filesByRecord, err := s.filesFor(ids)
	if err != nil {
		return nil, err
	}

	items := make([]dtos.RankedRecordDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, dtos.RankedRecordDTO{
			RecordModel: models.RecordModel{
				Id:          row.Id,
				Title:       row.Title,
				Description: row.Description,
				GroupName:   row.GroupName,
				CreatedAt:   row.CreatedAt,
				Files:       filesByRecord[row.Id],
			},
			Weight: row.Weight,
		})
	}

	return &dtos.SearchResultDTO{
		Items:     items,
		Page:      page,
		Total:     total,
		HasNext:   int64(page)*SearchPageSize < total,
		HasPrev:   page > 1,
		Truncated: truncated,
	}, nil
}

// buildWeightExpr renders the relevance weight as a SQL CASE sum so ordering
// happens in the store, not in memory.
func buildWeightExpr(words []string, group string) (string, []interface{}) {
	var parts []string
	var args []interface{}

	for _, word := range words {
		pattern := "%" + strings.ToLower(word) + "%"
		parts = append(parts,
			"(CASE WHEN LOWER(title) LIKE ? THEN 3 ELSE 0 END)",
			"(CASE WHEN LOWER(description) LIKE ? THEN 2 ELSE 0 END)")
		args = append(args, pattern, pattern)
	}
	if group != "" {
		parts = append(parts, "(CASE WHEN LOWER(group_name) LIKE ? THEN 1 ELSE 0 END)")
		args = append(args, "%"+strings.ToLower(group)+"%")
	}

	if len(parts) == 0 {
		return "0", nil
	}
	return strings.Join(parts, " + "), args
}

func (s *SearchService) filesFor(ids []int) (map[int][]models.FileModel, error) {
	if len(ids) == 0 {
		return map[int][]models.FileModel{}, nil
	}

	var files []models.FileModel
	if err := s.db.Where("record_id IN ?", ids).Find(&files).Error; err != nil {
		return nil, err
	}

	byRecord := make(map[int][]models.FileModel, len(ids))
	for _, f := range files {
		byRecord[f.RecordId] = append(byRecord[f.RecordId], f)
	}
	return byRecord, nil
}
