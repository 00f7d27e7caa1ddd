package fieldconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/fields"
	"gopkg.in/yaml.v3"
)

// LoadTemplate reads the bootstrap template. It accepts the keyed object
// shape of the configuration file, the legacy array of entries carrying an
// "id", and either of them written as YAML (.yaml or .yml). A missing
// template is an empty catalogue.
func LoadTemplate(path string) (fields.Catalogue, error) {
	if path == "" {
		return fields.Catalogue{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fields.Catalogue{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("%w: template %s: %v", common.ErrConfigParse, path, err)
		}
	}

	c, err := decodeTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", common.ErrConfigParse, path, err)
	}
	return c, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func decodeTemplate(data []byte) (fields.Catalogue, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fields.Catalogue{}, nil
	}
	if data[0] != '[' {
		var c fields.Catalogue
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return migrateLegacy(data)
}

// migrateLegacy converts [{"id":"cf.1","label":...}, ...] to the keyed
// shape. Items without an id are dropped; a later duplicate id wins.
func migrateLegacy(data []byte) (fields.Catalogue, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	c := fields.Catalogue{}
	for i, item := range items {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if strings.TrimSpace(head.ID) == "" {
			continue
		}
		var e fields.FieldEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		c[head.ID] = e
	}
	c.Normalize()
	return c, nil
}
