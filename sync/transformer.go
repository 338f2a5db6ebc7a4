package sync

import (
	"strconv"
	"strings"
	"time"
)

// CompanyActionDateOffset is subtracted from the action date of company actions.
const CompanyActionDateOffset = 2 * time.Second

// BuiltinSearchProperties are the properties the builtin action properties are read from.
func BuiltinSearchProperties(entity EntityType) []string {
	switch entity {
	case Companies:
		return []string{"domain", "industry"}
	case Contacts:
		return []string{"firstname", "lastname", "jobtitle", "email", "hubspotscore", "hs_lead_status", "hs_analytics_source"}
	case Meetings:
		return []string{"hs_meeting_title", "hs_meeting_start_time", "hs_meeting_end_time"}
	}
	return nil
}

// BuiltinPropertyKeys are the keys of the builtin properties object of an action.
func BuiltinPropertyKeys(entity EntityType) []string {
	switch entity {
	case Companies:
		return []string{"company_id", "company_domain", "company_industry"}
	case Contacts:
		return []string{"contact_name", "contact_title", "contact_source", "contact_status", "contact_score", "company_id"}
	case Meetings:
		return []string{"meeting_id", "meeting_title", "meeting_start_time", "meeting_end_time", "attendees"}
	}
	return nil
}

// ActionTransformer turns records of one entity phase into actions.
type ActionTransformer struct {
	Entity    EntityType
	Watermark *time.Time
	Config    EntityConfig
}

// Eligible reports whether a record can become an action.
func (t ActionTransformer) Eligible(r Record) bool {
	if !r.HasProperties() || !r.HasTimestamps() {
		return false
	}
	if t.Entity == Contacts {
		email, _ := r.Properties.StringForPath("email")
		return email != ""
	}
	return true
}

// Header classifies the record as created or updated relative to the watermark.
func (t ActionTransformer) Header(r Record) ActionHeader {
	result := ActionHeader{IncludeInAnalytics: 0}
	if t.Watermark == nil || r.CreatedAt.After(*t.Watermark) {
		result.ActionName = t.Entity.CreatedActionName()
		result.ActionDate = r.CreatedAt
	} else {
		result.ActionName = t.Entity.UpdatedActionName()
		result.ActionDate = r.UpdatedAt
	}
	if t.Entity == Companies {
		result.ActionDate = result.ActionDate.Add(-CompanyActionDateOffset)
	}
	return result
}

func (t ActionTransformer) custom(r Record) (CustomProperties, error) {
	result := CustomProperties{}
	MapFields(t.Config.CustomFieldMappings, r.Properties, result)
	if err := ApplyFieldTransforms(t.Config.FieldTransforms, result); err != nil {
		return nil, err
	}
	result.DropNullFields()
	return result, nil
}

func (t ActionTransformer) Company(r Record) (*CompanyAction, error) {
	custom, err := t.custom(r)
	if err != nil {
		return nil, err
	}
	return &CompanyAction{
		ActionHeader: t.Header(r),
		Properties: CompanyProperties{
			CompanyID:       r.ID,
			CompanyDomain:   optionalString(r.Properties, "domain"),
			CompanyIndustry: optionalString(r.Properties, "industry"),
		},
		Custom: custom,
	}, nil
}

// Contact builds a contact action. companyID is empty when the contact has no company.
func (t ActionTransformer) Contact(r Record, companyID string) (*ContactAction, error) {
	custom, err := t.custom(r)
	if err != nil {
		return nil, err
	}
	email, _ := r.Properties.StringForPath("email")
	result := &ContactAction{
		ActionHeader: t.Header(r),
		Identity:     email,
		Properties: ContactProperties{
			ContactName:   contactName(r.Properties),
			ContactTitle:  optionalString(r.Properties, "jobtitle"),
			ContactSource: optionalString(r.Properties, "hs_analytics_source"),
			ContactStatus: optionalString(r.Properties, "hs_lead_status"),
			ContactScore:  contactScore(r.Properties),
		},
		Custom: custom,
	}
	if companyID != "" {
		result.Properties.CompanyID = &companyID
	}
	return result, nil
}

// Meeting builds a meeting action from the resolved attendee emails.
func (t ActionTransformer) Meeting(r Record, attendees []string) (*MeetingAction, error) {
	custom, err := t.custom(r)
	if err != nil {
		return nil, err
	}
	if attendees == nil {
		attendees = []string{}
	}
	return &MeetingAction{
		ActionHeader: t.Header(r),
		Properties: MeetingProperties{
			MeetingID:        r.ID,
			MeetingTitle:     optionalString(r.Properties, "hs_meeting_title"),
			MeetingStartTime: optionalString(r.Properties, "hs_meeting_start_time"),
			MeetingEndTime:   optionalString(r.Properties, "hs_meeting_end_time"),
			Attendees:        attendees,
		},
		Custom: custom,
	}, nil
}

func optionalString(s Source, path string) *string {
	if v, exists := s.StringForPath(path); exists {
		return &v
	}
	return nil
}

func contactName(s Source) *string {
	first, _ := s.StringForPath("firstname")
	last, _ := s.StringForPath("lastname")
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return nil
	}
	return &name
}

// contactScore parses the leading integer of hubspotscore, so "12.5" is 12.
// Absent or non numeric scores are 0.
func contactScore(s Source) int64 {
	v, exists := s.StringForPath("hubspotscore")
	if !exists {
		return 0
	}
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && (v[end] >= '0' && v[end] <= '9' || end == 0 && (v[end] == '-' || v[end] == '+')) {
		end++
	}
	i, err := strconv.ParseInt(v[:end], 10, 64)
	if err != nil {
		return 0
	}
	return i
}
