package validation

import (
	"encoding/json"
	"sort"
)

const draft2020 = "https://json-schema.org/draft/2020-12/schema"

// InferSchema derives a JSON Schema from sample records. A property is
// required when every sample has a non-null value for it. Types are taken
// from the values; when samples disagree the property is left untyped.
// String formats are kept only when every sample agrees.
func InferSchema(samples ...map[string]any) map[string]any {
	schema := inferObject(samples)
	schema["$schema"] = draft2020
	return schema
}

type fieldAnalysis struct {
	presentCount int
	jsonType     string
	mixed        bool
	format       string
	formatMixed  bool
	objects      []map[string]any
	items        []any
}

func inferObject(samples []map[string]any) map[string]any {
	fields := analyzeFields(samples)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	properties := make(map[string]any, len(fields))
	required := make([]string, 0)
	for _, name := range names {
		info := fields[name]
		if info.presentCount == len(samples) {
			required = append(required, name)
		}
		properties[name] = propertySchema(info)
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func propertySchema(info *fieldAnalysis) map[string]any {
	prop := map[string]any{}
	if info.mixed {
		return prop
	}
	prop["type"] = info.jsonType

	switch info.jsonType {
	case "string":
		if info.format != "" && !info.formatMixed {
			prop["format"] = info.format
		}
	case "object":
		nested := inferObject(info.objects)
		prop["properties"] = nested["properties"]
		if req, ok := nested["required"]; ok {
			prop["required"] = req
		}
	case "array":
		if items := inferItems(info.items); len(items) > 0 {
			prop["items"] = items
		}
	}
	return prop
}

func inferItems(items []any) map[string]any {
	if len(items) == 0 {
		return nil
	}
	wrapped := make([]map[string]any, 0, len(items))
	for _, item := range items {
		wrapped = append(wrapped, map[string]any{"item": item})
	}
	fields := analyzeFields(wrapped)
	info, ok := fields["item"]
	if !ok {
		return nil
	}
	return propertySchema(info)
}

// analyzeFields analyzes all fields across sample records
func analyzeFields(samples []map[string]any) map[string]*fieldAnalysis {
	result := make(map[string]*fieldAnalysis)

	for _, item := range samples {
		for name, value := range item {
			if value == nil {
				continue
			}

			info, exists := result[name]
			if !exists {
				info = &fieldAnalysis{}
				result[name] = info
			}
			info.presentCount++

			t := jsonType(value)
			switch {
			case info.jsonType == "":
				info.jsonType = t
			case info.jsonType == t:
			case isNumeric(info.jsonType) && isNumeric(t):
				info.jsonType = "number"
			default:
				info.mixed = true
			}

			switch v := value.(type) {
			case string:
				f := DetectFormat(v)
				if info.presentCount == 1 {
					info.format = f
				} else if info.format != f {
					info.formatMixed = true
				}
			case map[string]any:
				info.objects = append(info.objects, v)
			case []any:
				info.items = append(info.items, v...)
			}
		}
	}
	return result
}

// jsonType returns the JSON Schema type name of a decoded JSON value.
func jsonType(value any) string {
	switch v := value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	case float32:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "string"
	}
}

func isNumeric(t string) bool {
	return t == "integer" || t == "number"
}
