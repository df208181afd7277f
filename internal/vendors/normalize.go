package vendors

import "strings"

// Normalize reduces a raw vendor response to {id, data, timestamp, source, cleaned_data}.
// Only the address, the preferences and the allow-listed additional_data fields
// survive from raw_data. A nil response is returned unchanged.
//
// Normalizing an already normalized result yields an empty cleaned_data because
// the second pass finds no raw_data.
func Normalize(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}

	cleaned := map[string]any{
		"id":           raw["id"],
		"data":         raw["data"],
		"timestamp":    raw["timestamp"],
		"source":       raw["source"],
		"cleaned_data": map[string]any{},
	}

	rawData, ok := raw["raw_data"].(map[string]any)
	if !ok {
		return cleaned
	}

	data := map[string]any{
		"address":     trimmedAddress(rawData["address"]),
		"preferences": preferences(rawData["preferences"]),
	}

	if extra, ok := rawData["additional_data"].(map[string]any); ok {
		allowed := map[string]any{}
		for _, field := range []string{"credit_score", "last_purchase"} {
			if v, present := extra[field]; present {
				allowed[field] = v
			}
		}
		data["additional_data"] = allowed
	}

	cleaned["cleaned_data"] = data
	return cleaned
}

func trimmedAddress(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return strings.TrimSpace(s)
}

func preferences(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}
