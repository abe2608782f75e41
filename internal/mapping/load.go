package mapping

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a mapping table from path. The format follows the extension:
//
//	.tsv, .txt   criterionID<TAB>zip per line
//	.yaml, .yml  zip: criterionID
//	.toml        [zips] table of zip = "criterionID"
//	.json        {"zip": "criterionID"}
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var m map[string]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tsv", ".txt":
		m, err = parseTSV(data)
	case ".yaml", ".yml":
		m, err = parseYAML(data)
	case ".toml":
		m, err = parseTOML(data)
	case ".json":
		m, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported mapping file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := validate(m); err != nil {
		return nil, fmt.Errorf("invalid mapping %s: %w", path, err)
	}
	return New(m), nil
}

func parseTSV(data []byte) (map[string]string, error) {
	m := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, "\t")
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: want criterionID<TAB>zip, got %d field(s)", line, len(parts))
		}
		criterion, zip := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		m[zip] = criterion
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseYAML(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return stringify(raw)
}

type tomlFile struct {
	Zips map[string]any `toml:"zips"`
}

func parseTOML(data []byte) (map[string]string, error) {
	var f tomlFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, err
	}
	return stringify(f.Zips)
}

func parseJSON(data []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return stringify(raw)
}

// stringify accepts criterion ids written as strings or integers.
func stringify(raw map[string]any) (map[string]string, error) {
	m := make(map[string]string, len(raw))
	for zip, v := range raw {
		switch x := v.(type) {
		case string:
			m[zip] = strings.TrimSpace(x)
		case int:
			m[zip] = strconv.Itoa(x)
		case int64:
			m[zip] = strconv.FormatInt(x, 10)
		case json.Number:
			m[zip] = x.String()
		default:
			return nil, fmt.Errorf("zip %s: criterion id must be a string or integer, got %T", zip, v)
		}
	}
	return m, nil
}

func validate(m map[string]string) error {
	if len(m) == 0 {
		return fmt.Errorf("mapping table is empty")
	}
	for zip, criterion := range m {
		if zip == "" {
			return fmt.Errorf("empty zip code for criterion %q", criterion)
		}
		if _, err := strconv.ParseUint(criterion, 10, 64); err != nil {
			return fmt.Errorf("zip %s: criterion id %q is not numeric", zip, criterion)
		}
	}
	return nil
}
