package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned for a document without any content.
var ErrEmpty = errors.New("empty description")

// Format is the encoding of a description file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from the file extension. Anything that is not
// ".json" is read as YAML.
func FormatOf(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return FormatJSON
	}
	return FormatYAML
}

// Decode reads data into a generic tree of maps, slices and scalars.
func Decode(data []byte, format Format) (map[string]any, error) {
	var tree map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse json description: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse yaml description: %w", err)
		}
	}
	if tree == nil {
		return nil, ErrEmpty
	}
	return tree, nil
}

// FromTree maps a decoded tree onto a Definition. Unknown keys are rejected.
func FromTree(tree map[string]any) (*Definition, error) {
	var def Definition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  stepIDHook,
		ErrorUnused: true,
		Result:      &def,
		TagName:     "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, fmt.Errorf("failed to decode description: %w", err)
	}
	return &def, nil
}

// Parse decodes a description without shape validation.
func Parse(data []byte, format Format) (*Definition, error) {
	tree, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return FromTree(tree)
}

// ParseFile reads and parses the description at path. A description without
// a name is named after the file.
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}
	def, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = Stem(path)
	}
	return def, nil
}

// Stem is the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var stepIDType = reflect.TypeOf(domain.StepID(""))

// stepIDHook lets integer ids decode into StepID.
func stepIDHook(from, to reflect.Type, data any) (any, error) {
	if to != stepIDType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("step id %v is not an integer", v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return data, nil
}
