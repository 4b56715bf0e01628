package messaging

// Preview truncates content to at most limit runes for the conversation's
// last-message preview, appending an ellipsis when anything was cut.
func Preview(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
