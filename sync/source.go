package sync

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// Source wraps raw CRM json so fields can be read by gjson path.
type Source struct {
	data gjson.Result
}

func NewSource(json string) Source {
	return Source{data: gjson.Parse(json)}
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) IntForPath(path string) (int64, bool) {
	result := s.data.Get(path)
	return result.Int(), result.Exists() && (result.Value() != nil)
}

func (s Source) FloatForPath(path string) (float64, bool) {
	result := s.data.Get(path)
	return result.Float(), result.Exists() && (result.Value() != nil)
}

func (s Source) BoolForPath(path string) (bool, bool) {
	result := s.data.Get(path)
	return result.Bool(), result.Exists() && (result.Value() != nil)
}

func (s Source) Data() map[string]interface{} {
	if v := s.data.Value(); v != nil {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

// Record is a single CRM object as returned by search or get by id.
type Record struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Properties Source
}

// HasProperties reports whether the record carries a non empty properties object.
func (r Record) HasProperties() bool {
	return r.Properties.data.IsObject() && len(r.Properties.data.Map()) > 0
}

// HasTimestamps reports whether both createdAt and updatedAt were parsed.
func (r Record) HasTimestamps() bool {
	return !r.CreatedAt.IsZero() && !r.UpdatedAt.IsZero()
}

// RecordFromJSON reads a record object. Unparsable timestamps are left as zero
// values so the record can be skipped downstream instead of failing the page.
func RecordFromJSON(result gjson.Result) (Record, error) {
	if !result.IsObject() {
		return Record{}, errors.New("record is not a json object")
	}
	record := Record{
		ID:         result.Get("id").String(),
		Properties: Source{data: result.Get("properties")},
	}
	if record.ID == "" {
		return record, errors.New("record is missing an id")
	}
	record.CreatedAt = parseCRMTimestamp(result.Get("createdAt"))
	record.UpdatedAt = parseCRMTimestamp(result.Get("updatedAt"))
	return record, nil
}

func parseCRMTimestamp(value gjson.Result) time.Time {
	if !value.Exists() {
		return time.Time{}
	}
	if value.Type == gjson.Number {
		return time.UnixMilli(value.Int()).UTC()
	}
	t, err := time.Parse(time.RFC3339, value.String())
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// SearchPage is one page of search results.
type SearchPage struct {
	Results   []Record
	Total     int64
	NextAfter string
}

// LastUpdatedAt returns the updatedAt of the final record of the page.
func (p SearchPage) LastUpdatedAt() (time.Time, bool) {
	if len(p.Results) == 0 {
		return time.Time{}, false
	}
	last := p.Results[len(p.Results)-1]
	return last.UpdatedAt, !last.UpdatedAt.IsZero()
}

// SearchPageFromJSON parses a search response body.
// Results that are not objects or have no id are dropped.
func SearchPageFromJSON(json string) (SearchPage, int, error) {
	var result SearchPage
	if !gjson.Valid(json) {
		return result, 0, errors.New("invalid json response")
	}
	body := gjson.Parse(json)
	result.Total = body.Get("total").Int()
	result.NextAfter = body.Get("paging.next.after").String()
	dropped := 0
	for _, v := range body.Get("results").Array() {
		record, err := RecordFromJSON(v)
		if err != nil {
			dropped++
			continue
		}
		result.Results = append(result.Results, record)
	}
	return result, dropped, nil
}
