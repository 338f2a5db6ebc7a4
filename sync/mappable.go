package sync

// Mappable is implemented by property bags that custom field mappings write to.
type Mappable interface {
	GetFields() map[string]interface{}
	SetField(key string, value interface{})
	DeleteField(key string)
}

// fieldReader reads one mapped value from a record. The second result is
// false when the value is absent.
type fieldReader func(source Source, path string) (interface{}, bool)

func readString(source Source, path string) (interface{}, bool) {
	// static values are escaped in backticks to tell them apart from paths
	if len(path) >= 2 && path[0] == '`' && path[len(path)-1] == '`' {
		return path[1 : len(path)-1], true
	}
	return source.StringForPath(path)
}

func readText(source Source, path string) (interface{}, bool) {
	return source.StringForPath(path)
}

func readDecimal(source Source, path string) (interface{}, bool) {
	return source.FloatForPath(path)
}

func readBoolean(source Source, path string) (interface{}, bool) {
	return source.BoolForPath(path)
}

func readInteger(source Source, path string) (interface{}, bool) {
	return source.IntForPath(path)
}

func readNonEmptyString(source Source, path string) (interface{}, bool) {
	v, exists := source.StringForPath(path)
	return v, exists && v != ""
}

// MapFields copies every mapped value from source to destination.
// Fields missing from the source are set to nil.
func MapFields(mappings FieldMappings, source Source, destination Mappable) {
	kinds := []struct {
		fields map[string]string
		read   fieldReader
	}{
		{mappings.Strings, readString},
		{mappings.Texts, readText},
		{mappings.Decimals, readDecimal},
		{mappings.Booleans, readBoolean},
		{mappings.Timestamps, readText},
		{mappings.Phones, readNonEmptyString},
		{mappings.Integers, readInteger},
	}
	for _, kind := range kinds {
		for field, path := range kind.fields {
			if v, exists := kind.read(source, path); exists {
				destination.SetField(field, v)
			} else {
				destination.SetField(field, nil)
			}
		}
	}
}
