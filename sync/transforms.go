package sync

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

var fieldTransformFunctions = map[string]bool{
	"toLower":          true,
	"toUpper":          true,
	"trim":             true,
	"onlyIfNotDefault": true,
	"warnIfEqual":      true,
}

func parseFieldTransform(transform string) (function string, arg string, err error) {
	parts := strings.SplitN(transform, ":", 2)
	function = parts[0]
	if len(parts) > 1 {
		arg = parts[1]
	}
	if !fieldTransformFunctions[function] {
		return function, arg, fmt.Errorf("unknown transform '%s'", function)
	}
	return function, arg, nil
}

// ApplyFieldTransforms applies configured transforms to mapped fields of destination.
func ApplyFieldTransforms(transforms map[string]string, destination Mappable) error {
	if len(transforms) == 0 {
		return nil
	}

	fields := destination.GetFields()

	for field, transform := range transforms {
		if _, exists := fields[field]; !exists {
			return fmt.Errorf("invalid transform, field %s does not exist", field)
		}

		function, arg, err := parseFieldTransform(transform)
		if err != nil {
			return err
		}

		switch function {
		case "onlyIfNotDefault":
			if fieldValue, ok := fields[field].(string); ok && fieldValue == arg {
				destination.DeleteField(field)
			}

		case "warnIfEqual":
			if s := fmt.Sprintf("%v", fields[field]); arg == s {
				log.WithField("field", field).Warnf("Field has value of '%v'.", s)
			}

		case "toLower":
			if fieldValue, ok := fields[field].(string); ok {
				destination.SetField(field, strings.ToLower(fieldValue))
			}

		case "toUpper":
			if fieldValue, ok := fields[field].(string); ok {
				destination.SetField(field, strings.ToUpper(fieldValue))
			}

		case "trim":
			if fieldValue, ok := fields[field].(string); ok {
				destination.SetField(field, strings.TrimSpace(fieldValue))
			}
		}
	}

	return nil
}
