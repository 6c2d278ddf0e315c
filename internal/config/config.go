// Package config loads and validates pipeline documents: the
// top-level version/metadata/stages[] YAML or JSON shape every pipeline
// definition is written in.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

// Metadata describes a pipeline document, independent of its stage graph.
type Metadata struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string   `yaml:"version" json:"version"`
	Author      string   `yaml:"author,omitempty" json:"author,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Document is one pipeline definition loaded from YAML or JSON.
type Document struct {
	Version  string        `yaml:"version" json:"version"`
	Metadata Metadata      `yaml:"metadata" json:"metadata"`
	Stages   []stage.Config `yaml:"stages" json:"stages"`
}

// LoadFile loads a pipeline document from path, choosing YAML or JSON
// unmarshaling by file extension (.json vs anything else).
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &eegpipe.Error{Op: "config.LoadFile", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(data)
	}
	return LoadYAML(data)
}

// LoadYAML parses a YAML pipeline document, rejecting unknown top-level
// and stage fields.
func LoadYAML(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &eegpipe.Error{Op: "config.LoadYAML", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}
	return &doc, nil
}

// LoadJSON parses a JSON pipeline document. encoding/json has no
// first-class deny-unknown-fields option for arbitrary structs short of a
// Decoder with DisallowUnknownFields, which is applied here for parity
// with LoadYAML.
func LoadJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &eegpipe.Error{Op: "config.LoadJSON", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}
	return &doc, nil
}

// ResolvePath finds the pipeline document file for id inside dir, trying
// the extensions pipeline documents are written in. Control-plane callers
// identify pipelines by id alone;
// this is where that id is turned into a file on disk.
func ResolvePath(dir, id string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", &eegpipe.Error{Op: "config.ResolvePath", Code: eegpipe.ErrCodeStageNotFound, StageName: id}
}

// Save writes doc as YAML to dir/<id>.yaml, creating dir if necessary.
// Used by `POST /api/pipelines/{id}` to persist an updated pipeline
// document.
func Save(dir, id string, doc *Document) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &eegpipe.Error{Op: "config.Save", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return &eegpipe.Error{Op: "config.Save", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}
	path := filepath.Join(dir, id+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &eegpipe.Error{Op: "config.Save", Code: eegpipe.ErrCodeBadConfig, Inner: err}
	}
	return nil
}

// Validate checks doc's static well-formedness: every stage references a
// registered type and the document declares a version. It does not build
// the DAG (see internal/graph.Build for edge resolution and cycle
// detection).
func Validate(doc *Document) error {
	if doc.Version == "" {
		return &eegpipe.Error{Op: "config.Validate", Code: eegpipe.ErrCodeBadConfig}
	}
	for _, s := range doc.Stages {
		if !s.IsEnabled() {
			continue
		}
		if !stage.IsRegistered(s.Type) {
			return &eegpipe.Error{Op: "config.Validate", Code: eegpipe.ErrCodeUnknownStageType, StageName: s.Name}
		}
	}
	return nil
}
