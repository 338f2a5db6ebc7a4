package sync

import (
	"fmt"
	"strings"
)

// EntityType identifies a CRM object collection that is pulled incrementally.
type EntityType string

const (
	Companies EntityType = "companies"
	Contacts  EntityType = "contacts"
	Meetings  EntityType = "meetings"
)

// SyncOrder is the order entity phases run in for each account.
var SyncOrder = []EntityType{Companies, Contacts, Meetings}

func ParseEntityType(s string) (EntityType, error) {
	switch e := EntityType(strings.ToLower(s)); e {
	case Companies, Contacts, Meetings:
		return e, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Singular returns the lower case singular name, e.g. "company".
func (e EntityType) Singular() string {
	switch e {
	case Companies:
		return "company"
	case Contacts:
		return "contact"
	case Meetings:
		return "meeting"
	}
	return string(e)
}

// ActionPrefix returns the prefix of action names, e.g. "Company" for "Company Created".
func (e EntityType) ActionPrefix() string {
	s := e.Singular()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ModifiedDateProperty is the property searched and sorted on when pulling changes.
// Contacts predate the hs_ prefixed property in the CRM.
func (e EntityType) ModifiedDateProperty() string {
	if e == Contacts {
		return "lastmodifieddate"
	}
	return "hs_lastmodifieddate"
}

// AssociationName is the object name used by the associations API.
func (e EntityType) AssociationName() string {
	return strings.ToUpper(string(e))
}

func (e EntityType) CreatedActionName() string {
	return e.ActionPrefix() + " Created"
}

func (e EntityType) UpdatedActionName() string {
	return e.ActionPrefix() + " Updated"
}
