package collect

import "encoding/json"

// SerializedSize returns the size in bytes of the JSON form of v, or 0 when
// v cannot be marshaled.
func SerializedSize(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// TrimToSize removes elements from the end of items until its JSON form fits
// maxBytes or the slice is empty. A maxBytes <= 0 disables the limit. The
// input slice is not modified.
func TrimToSize[T any](items []T, maxBytes int) []T {
	if maxBytes <= 0 {
		return items
	}

	trimmed := items
	for len(trimmed) > 0 && SerializedSize(trimmed) > maxBytes {
		trimmed = trimmed[:len(trimmed)-1]
	}

	// Copy so callers never alias the original backing array.
	result := make([]T, len(trimmed))
	copy(result, trimmed)
	return result
}

// clipLines truncates text to at most maxLines lines. A maxLines <= 0
// disables the limit.
func clipLines(text string, maxLines int) string {
	if maxLines <= 0 || text == "" {
		return text
	}

	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' {
			continue
		}
		count++
		if count == maxLines {
			return text[:i]
		}
	}

	return text
}
