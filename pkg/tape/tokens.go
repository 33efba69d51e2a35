package tape

/*
EstimateTokens sizes a context slice. When a run event recorded real usage
the newest input_tokens figure wins; otherwise each message counts
len(content)/4 with a floor of one, and every other entry a flat ten.
*/
func EstimateTokens(entries []Entry) int {
	if usage := latestInputTokens(entries); usage > 0 {
		return usage
	}

	total := 0

	for _, entry := range entries {
		if entry.Kind == KindMessage {
			if content, ok := entry.Payload["content"].(string); ok {
				estimate := len(content) / 4
				if estimate < 1 {
					estimate = 1
				}
				total += estimate
				continue
			}
		}
		total += 10
	}

	return total
}

func latestInputTokens(entries []Entry) int {
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		if entry.Kind != KindEvent {
			continue
		}

		data, ok := entry.Payload["data"].(map[string]any)
		if !ok {
			continue
		}

		usage, ok := data["usage"].(map[string]any)
		if !ok {
			continue
		}

		if tokens := asInt(usage["input_tokens"]); tokens > 0 {
			return tokens
		}
	}

	return 0
}

// asInt tolerates the numeric types JSON decoding produces.
func asInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
