package approval

// BuildPayload prepares a staging dataset dict for the production catalog.
// The input is never mutated.
func BuildPayload(local map[string]any, remoteOrgID string) map[string]any {
	payload := deepCopy(local).(map[string]any)

	delete(payload, "id")
	delete(payload, "creator_user_id")

	delete(payload, "organization")
	if remoteOrgID != "" {
		payload["owner_org"] = remoteOrgID
	} else {
		delete(payload, "owner_org")
	}

	if resources, ok := payload["resources"].([]any); ok {
		for _, item := range resources {
			if res, ok := item.(map[string]any); ok {
				delete(res, "id")
				delete(res, "package_id")
			}
		}
	}
	return payload
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return val
	}
}
