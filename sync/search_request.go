package sync

import (
	"strconv"
	"time"
)

const (
	DefaultSearchPageSize = 100

	FilterOperatorGTE = "GTE"
	FilterOperatorLTE = "LTE"

	SortAscending = "ASCENDING"
)

// SearchRequest is the body of a CRM object search.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Sorts        []Sort        `json:"sorts"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
}

type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

// ModificationWindow bounds the modification time of searched records.
// A nil From means a full scan.
type ModificationWindow struct {
	From *time.Time
	To   time.Time
}

// BuildSearchRequest builds the search for one page of modified records.
// Bounds are inclusive and sent as epoch milliseconds.
func BuildSearchRequest(entity EntityType, window ModificationWindow, cursor PaginationCursor, properties []string, pageSize int) SearchRequest {
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}
	property := entity.ModifiedDateProperty()
	result := SearchRequest{
		FilterGroups: []FilterGroup{},
		Sorts: []Sort{
			{PropertyName: property, Direction: SortAscending},
		},
		Properties: append([]string{}, properties...),
		Limit:      pageSize,
	}
	if window.From != nil {
		result.FilterGroups = append(result.FilterGroups, FilterGroup{
			Filters: []Filter{
				{PropertyName: property, Operator: FilterOperatorGTE, Value: epochMillis(*window.From)},
				{PropertyName: property, Operator: FilterOperatorLTE, Value: epochMillis(window.To)},
			},
		})
	}
	if cursor.After > 0 {
		result.After = strconv.Itoa(cursor.After)
	}
	return result
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
