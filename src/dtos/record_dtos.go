package dtos

import "github.com/recman/recman-backend/src/models"

// RecordFormDTO carries the editable fields of a record, both on create and
// on update. Attached files travel separately as multipart parts.
type RecordFormDTO struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
	GroupName   string `form:"group_name" json:"groupName"`
}

// RankedRecordDTO is one search hit together with its relevance weight.
type RankedRecordDTO struct {
	models.RecordModel
	Weight int `json:"weight"`
}

// SearchResultDTO is one page of ranked search hits.
type SearchResultDTO struct {
	Items     []RankedRecordDTO `json:"items"`
	Page      int               `json:"page"`
	Total     int64             `json:"total"`
	HasNext   bool              `json:"hasNext"`
	HasPrev   bool              `json:"hasPrev"`
	Truncated bool              `json:"truncated"`
}

// ImportSummaryDTO reports what an archive import applied and what it
// skipped as already present.
type ImportSummaryDTO struct {
	Imported           int `json:"imported"`
	Skipped            int `json:"skipped"`
	StatementsApplied  int `json:"statementsApplied"`
	StatementsSkipped  int `json:"statementsSkipped"`
	FilesExtracted     int `json:"filesExtracted"`
	FilesAlreadyStored int `json:"filesAlreadyStored"`
}
