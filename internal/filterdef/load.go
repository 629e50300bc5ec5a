package filterdef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatCUE
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return 0, defErr(ErrCodeParse, "", "unsupported document %q: want .yaml, .yml or .cue", path)
	}
}

// Load reads and decodes the document at path.
func Load(fs afero.Fs, path string) (*Document, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, format, path)
}

// Parse decodes a document. name is used in CUE error positions.
//
// YAML documents are decoded strictly: unknown keys are errors.
func Parse(data []byte, format Format, name string) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, defErr(ErrCodeParse, "", "empty document")
			}
			return nil, defErr(ErrCodeParse, "", "%v", err)
		}
	case FormatCUE:
		v := cuecontext.New().CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}
		if err := v.Decode(&doc); err != nil {
			return nil, formatCUEError(err)
		}
	default:
		return nil, defErr(ErrCodeParse, "", "unknown format %d", format)
	}
	return &doc, nil
}
