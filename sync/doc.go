package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// FieldDocRow represents a single row in the field mapping documentation.
type FieldDocRow struct {
	Entity     EntityType
	FieldName  string // Key within the action properties object (e.g., "company_domain")
	IsBuiltin  bool
	FieldType  string
	SourcePath string // CRM property or gjson path the value is read from
	Notes      string
}

// FieldDocumentation lists every property emitted per entity type.
type FieldDocumentation struct {
	Rows []FieldDocRow
}

type builtinFieldDoc struct {
	name       string
	fieldType  string
	sourcePath string
	notes      string
}

var builtinFieldDocs = map[EntityType][]builtinFieldDoc{
	Companies: {
		{"company_id", "Text", "id", "Record id"},
		{"company_domain", "Text", "domain", ""},
		{"company_industry", "Text", "industry", ""},
	},
	Contacts: {
		{"contact_name", "Text", "firstname lastname", "First and last name joined and trimmed"},
		{"contact_title", "Text", "jobtitle", ""},
		{"contact_source", "Text", "hs_analytics_source", ""},
		{"contact_status", "Text", "hs_lead_status", ""},
		{"contact_score", "Whole number", "hubspotscore", "Defaults to 0"},
		{"company_id", "Text", "(association)", "First associated company"},
	},
	Meetings: {
		{"meeting_id", "Text", "id", "Record id"},
		{"meeting_title", "Text", "hs_meeting_title", ""},
		{"meeting_start_time", "Time and date", "hs_meeting_start_time", ""},
		{"meeting_end_time", "Time and date", "hs_meeting_end_time", ""},
		{"attendees", "List", "(association)", "Emails of associated contacts"},
	},
}

// GenerateFieldDocumentation generates field documentation from a configuration.
func GenerateFieldDocumentation(config Config) FieldDocumentation {
	doc := FieldDocumentation{Rows: []FieldDocRow{}}

	for _, entity := range SyncOrder {
		for _, f := range builtinFieldDocs[entity] {
			doc.Rows = append(doc.Rows, FieldDocRow{
				Entity:     entity,
				FieldName:  f.name,
				IsBuiltin:  true,
				FieldType:  f.fieldType,
				SourcePath: f.sourcePath,
				Notes:      f.notes,
			})
		}
		ec := config.Entity(entity)
		mappings := ec.CustomFieldMappings
		values := make(map[string]string)
		for _, m := range []map[string]string{mappings.Strings, mappings.Texts, mappings.Decimals, mappings.Booleans, mappings.Timestamps, mappings.Phones, mappings.Integers} {
			for k, v := range m {
				values[k] = v
			}
		}
		for _, field := range sortedKeys(values) {
			doc.Rows = append(doc.Rows, createFieldDocRow(entity, field, values[field], mappings.FieldType(field), ec.FieldTransforms))
		}
	}

	// Entities in sync order, builtin fields first, then custom fields alphabetically.
	order := make(map[EntityType]int)
	for i, e := range SyncOrder {
		order[e] = i
	}
	sort.SliceStable(doc.Rows, func(i, j int) bool {
		if doc.Rows[i].Entity != doc.Rows[j].Entity {
			return order[doc.Rows[i].Entity] < order[doc.Rows[j].Entity]
		}
		if doc.Rows[i].IsBuiltin != doc.Rows[j].IsBuiltin {
			return doc.Rows[i].IsBuiltin
		}
		if doc.Rows[i].IsBuiltin {
			return false
		}
		return doc.Rows[i].FieldName < doc.Rows[j].FieldName
	})

	return doc
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func createFieldDocRow(entity EntityType, field string, sourcepathwithtransforms string, fieldtype string, transforms map[string]string) FieldDocRow {
	row := FieldDocRow{
		Entity:    entity,
		FieldName: field,
		FieldType: fieldtype,
	}

	sourcePath, inlineTransforms := parseSourcePath(sourcepathwithtransforms)
	row.SourcePath = sourcePath

	notes := []string{}
	for _, transform := range inlineTransforms {
		notes = append(notes, formatTransformNote(transform))
	}
	if transform, exists := transforms[field]; exists {
		notes = append(notes, formatTransformNote(transform))
	}
	row.Notes = strings.Join(notes, " | ")

	return row
}

// parseSourcePath extracts the source path and inline transforms from a mapping value.
// e.g., "country|@countryName" -> ("country", ["@countryName"])
func parseSourcePath(value string) (string, []string) {
	if value == "" {
		return "(computed)", nil
	}
	if len(value) >= 2 && value[0] == '`' && value[len(value)-1] == '`' {
		return "(static)", []string{"static:" + value[1:len(value)-1]}
	}

	parts := strings.Split(value, "|")
	sourcePath := parts[0]
	var transforms []string

	for i := 1; i < len(parts); i++ {
		if strings.HasPrefix(parts[i], "@") {
			transforms = append(transforms, parts[i])
		}
	}

	return sourcePath, transforms
}

// formatTransformNote formats a transform into a human-readable note.
func formatTransformNote(transform string) string {
	switch {
	case strings.HasPrefix(transform, "static:"):
		return fmt.Sprintf("Static value %q", strings.TrimPrefix(transform, "static:"))
	case transform == "warnIfEqual:":
		return "Warns if empty"
	case strings.HasPrefix(transform, "warnIfEqual:"):
		return fmt.Sprintf("Warns if equal to %q", strings.TrimPrefix(transform, "warnIfEqual:"))
	case strings.HasPrefix(transform, "onlyIfNotDefault:"):
		arg := strings.TrimPrefix(transform, "onlyIfNotDefault:")
		return fmt.Sprintf("Only syncs if not default (%q)", arg)
	case strings.HasPrefix(transform, "@countryName"):
		return "Uses @countryName transform"
	case strings.HasPrefix(transform, "@countryCode"):
		return "Uses @countryCode transform"
	case strings.HasPrefix(transform, "@phone:"):
		arg := strings.TrimPrefix(transform, "@phone:")
		return fmt.Sprintf("Uses @phone:%s transform", arg)
	case strings.HasPrefix(transform, "@int"):
		return "Uses @int transform"
	case strings.HasPrefix(transform, "@gte:"):
		arg := strings.TrimPrefix(transform, "@gte:")
		return fmt.Sprintf("Uses @gte:%s transform", arg)
	case strings.HasPrefix(transform, "@contains:"):
		arg := strings.TrimPrefix(transform, "@contains:")
		return fmt.Sprintf("Uses @contains:%s transform", arg)
	case transform == "toLower":
		return "Converts to lowercase"
	case transform == "toUpper":
		return "Converts to uppercase"
	case transform == "trim":
		return "Trims whitespace"
	default:
		return fmt.Sprintf("Transform: %s", transform)
	}
}

// FormatCSV formats the field documentation as CSV.
func (d FieldDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Entity", "Property", "Built-in", "Type", "Source Path", "Mapping Notes"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}

	for _, row := range d.Rows {
		builtinMark := ""
		if row.IsBuiltin {
			builtinMark = "yes"
		}
		record := []string{string(row.Entity), row.FieldName, builtinMark, row.FieldType, row.SourcePath, row.Notes}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
