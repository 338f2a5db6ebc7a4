package sync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/sjson"
)

// ActionDateFormat is the wire format of actionDate.
const ActionDateFormat = "2006-01-02T15:04:05.000Z07:00"

// ActionEvent is an action emitted for one CRM record. It is one of
// CompanyAction, ContactAction or MeetingAction.
type ActionEvent interface {
	Entity() EntityType
	Header() ActionHeader
	IsCompanyAction() bool
	AsCompanyAction() *CompanyAction // Returns self if company action, nil otherwise
	IsContactAction() bool
	AsContactAction() *ContactAction // Returns self if contact action, nil otherwise
	IsMeetingAction() bool
	AsMeetingAction() *MeetingAction // Returns self if meeting action, nil otherwise

	propertiesJSON() ([]byte, error)
	identity() string
}

type ActionHeader struct {
	ActionName         string
	ActionDate         time.Time
	IncludeInAnalytics int
}

func (h ActionHeader) Header() ActionHeader { return h }

func (h ActionHeader) IsCreated() bool { return strings.HasSuffix(h.ActionName, " Created") }

// CustomProperties holds configured property mappings. Values are never nil
// once attached to an action.
type CustomProperties map[string]interface{}

func (c CustomProperties) GetFields() map[string]interface{} { return c }

func (c CustomProperties) SetField(key string, value interface{}) { c[key] = value }

func (c CustomProperties) DeleteField(key string) { delete(c, key) }

// DropNullFields removes every key with a nil value.
func (c CustomProperties) DropNullFields() {
	for k, v := range c {
		if v == nil {
			delete(c, k)
		}
	}
}

type CompanyProperties struct {
	CompanyID       string  `json:"company_id"`
	CompanyDomain   *string `json:"company_domain,omitempty"`
	CompanyIndustry *string `json:"company_industry,omitempty"`
}

type CompanyAction struct {
	ActionHeader
	Properties CompanyProperties
	Custom     CustomProperties
}

func (a *CompanyAction) Entity() EntityType              { return Companies }
func (a *CompanyAction) IsCompanyAction() bool           { return true }
func (a *CompanyAction) AsCompanyAction() *CompanyAction { return a }
func (a *CompanyAction) IsContactAction() bool           { return false }
func (a *CompanyAction) AsContactAction() *ContactAction { return nil }
func (a *CompanyAction) IsMeetingAction() bool           { return false }
func (a *CompanyAction) AsMeetingAction() *MeetingAction { return nil }
func (a *CompanyAction) identity() string                { return "" }

func (a *CompanyAction) propertiesJSON() ([]byte, error) {
	return encodeProperties(a.Properties, a.Custom)
}

type ContactProperties struct {
	ContactName   *string `json:"contact_name,omitempty"`
	ContactTitle  *string `json:"contact_title,omitempty"`
	ContactSource *string `json:"contact_source,omitempty"`
	ContactStatus *string `json:"contact_status,omitempty"`
	ContactScore  int64   `json:"contact_score"`
	CompanyID     *string `json:"company_id,omitempty"`
}

type ContactAction struct {
	ActionHeader
	// Identity is the contact email.
	Identity   string
	Properties ContactProperties
	Custom     CustomProperties
}

func (a *ContactAction) Entity() EntityType              { return Contacts }
func (a *ContactAction) IsCompanyAction() bool           { return false }
func (a *ContactAction) AsCompanyAction() *CompanyAction { return nil }
func (a *ContactAction) IsContactAction() bool           { return true }
func (a *ContactAction) AsContactAction() *ContactAction { return a }
func (a *ContactAction) IsMeetingAction() bool           { return false }
func (a *ContactAction) AsMeetingAction() *MeetingAction { return nil }
func (a *ContactAction) identity() string                { return a.Identity }

func (a *ContactAction) propertiesJSON() ([]byte, error) {
	return encodeProperties(a.Properties, a.Custom)
}

type MeetingProperties struct {
	MeetingID        string   `json:"meeting_id"`
	MeetingTitle     *string  `json:"meeting_title,omitempty"`
	MeetingStartTime *string  `json:"meeting_start_time,omitempty"`
	MeetingEndTime   *string  `json:"meeting_end_time,omitempty"`
	Attendees        []string `json:"attendees"`
}

type MeetingAction struct {
	ActionHeader
	Properties MeetingProperties
	Custom     CustomProperties
}

func (a *MeetingAction) Entity() EntityType              { return Meetings }
func (a *MeetingAction) IsCompanyAction() bool           { return false }
func (a *MeetingAction) AsCompanyAction() *CompanyAction { return nil }
func (a *MeetingAction) IsContactAction() bool           { return false }
func (a *MeetingAction) AsContactAction() *ContactAction { return nil }
func (a *MeetingAction) IsMeetingAction() bool           { return true }
func (a *MeetingAction) AsMeetingAction() *MeetingAction { return a }
func (a *MeetingAction) identity() string                { return "" }

func (a *MeetingAction) propertiesJSON() ([]byte, error) {
	p := a.Properties
	if p.Attendees == nil {
		p.Attendees = []string{}
	}
	return encodeProperties(p, a.Custom)
}

// encodeProperties marshals the builtin properties then sets custom keys in sorted order.
func encodeProperties(builtin interface{}, custom CustomProperties) ([]byte, error) {
	result, err := json.Marshal(builtin)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(custom))
	for k, v := range custom {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		result, err = sjson.SetBytes(result, escapeSJSONKey(k), custom[k])
		if err != nil {
			return nil, fmt.Errorf("failed to set custom property '%s' %w", k, err)
		}
	}
	return result, nil
}

var sjsonKeyEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`)

func escapeSJSONKey(key string) string {
	return sjsonKeyEscaper.Replace(key)
}

// PropertiesKey returns the name of the properties object of an encoded action, e.g. "companyProperties".
func PropertiesKey(entity EntityType) string {
	return strcase.ToLowerCamel(entity.Singular() + "_properties")
}

// EncodeAction renders an action in the sink wire format.
// The output for a given action is always byte identical.
func EncodeAction(a ActionEvent) ([]byte, error) {
	h := a.Header()
	result := []byte(`{}`)
	var err error
	set := func(path string, value interface{}) {
		if err == nil {
			result, err = sjson.SetBytes(result, path, value)
		}
	}
	set("actionName", h.ActionName)
	set("actionDate", h.ActionDate.UTC().Format(ActionDateFormat))
	set("includeInAnalytics", h.IncludeInAnalytics)
	if identity := a.identity(); identity != "" {
		set("identity", identity)
	}
	if err != nil {
		return nil, err
	}
	properties, err := a.propertiesJSON()
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(result, PropertiesKey(a.Entity()), properties)
}

// EncodeActions renders a batch as a json array.
func EncodeActions(actions []ActionEvent) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, a := range actions {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := EncodeAction(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %w", a.Header().ActionName, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
