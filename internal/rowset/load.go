package rowset

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DecodeYAML reads a YAML sequence of mappings, one mapping per row:
//
//	- item.itemid: EST-1
//	  item.listprice: 16.5
//	- item.itemid: EST-2
//	  item.listprice: null
func DecodeYAML(r io.Reader) ([]Record, error) {
	var raw []map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	records := make([]Record, len(raw))
	for i, m := range raw {
		if m == nil {
			m = map[string]any{}
		}
		records[i] = Record(m)
	}
	return records, nil
}

// ReadParquet reads every row of a Parquet file. Column names become the
// record keys.
func ReadParquet(fs afero.Fs, path string) ([]Record, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	reader := parquet.NewReader(pqFile)
	defer func() { _ = reader.Close() }()

	records := []Record{}
	for {
		row := make(map[string]any)
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, Record(row))
	}
	return records, nil
}

// Load reads rows from path, choosing the format by extension: .parquet,
// or .yaml / .yml.
func Load(fs afero.Fs, path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return ReadParquet(fs, path)
	case ".yaml", ".yml":
		f, err := fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		return DecodeYAML(f)
	default:
		return nil, fmt.Errorf("unsupported row file %q: want .yaml, .yml or .parquet", path)
	}
}
