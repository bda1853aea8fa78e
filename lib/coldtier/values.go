// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coldtier

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func encodeValue(value map[string]any) ([]byte, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return data, nil
}

// decodeValue parses a YAML member into the same generic form the
// hot store decodes values into: map[string]any, []any, string,
// int64, float64, bool.
func decodeValue(data []byte) (map[string]any, error) {
	var value map[string]any
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decoding YAML: %w", err)
	}
	if value == nil {
		value = map[string]any{}
	}
	return normalize(value).(map[string]any), nil
}

func normalize(value any) any {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case uint64:
		return int64(typed)
	case []any:
		for i := range typed {
			typed[i] = normalize(typed[i])
		}
		return typed
	case map[string]any:
		for key, element := range typed {
			typed[key] = normalize(element)
		}
		return typed
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, element := range typed {
			converted[fmt.Sprint(key)] = normalize(element)
		}
		return converted
	default:
		return value
	}
}
