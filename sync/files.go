package sync

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
)

//go:embed mappings/*.yaml
var defaultMappingsFS embed.FS

// DefaultMappings are the mapping files shipped with the package.
var DefaultMappings = EmbeddedMappings{Root: "mappings", Files: defaultMappingsFS}

type MappingFile struct {
	Name   string
	Reader io.Reader
	Length int
}

func NewMappingFile(name string, data []byte) MappingFile {
	return MappingFile{
		Name:   name,
		Reader: bytes.NewReader(data),
		Length: len(data),
	}
}

// MappingFileFromPath reads an override mapping file from disk.
func MappingFileFromPath(p string) (MappingFile, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return MappingFile{}, fmt.Errorf("failed to read mapping file %s %w", p, err)
	}
	return NewMappingFile(p, data), nil
}

type EmbeddedMappings struct {
	Root  string
	Files EmbeddedFS
}

type EmbeddedFS interface {
	Open(name string) (fs.File, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

func (em EmbeddedMappings) MustFindRootMappingFile(filename string) (MappingFile, error) {
	var result MappingFile
	name := path.Join(em.Root, filename)
	data, err := em.Files.ReadFile(name)
	if err == nil {
		result = NewMappingFile(name, data)
	}
	return result, err
}

func (em EmbeddedMappings) MustFindRequiredMappingFile() (MappingFile, error) {
	return em.MustFindRootMappingFile("required.yaml")
}

func (em EmbeddedMappings) MustFindDefaultsMappingFile() (MappingFile, error) {
	return em.MustFindRootMappingFile("defaults.yaml")
}
