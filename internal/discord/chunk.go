package discord

// MaxMessageLen is Discord's per-message character limit.
const MaxMessageLen = 2000

// ChunkMessage splits text into pieces that each fit within limit characters.
// It prefers to break on a newline; if the best newline sits in the first half
// of the window (the chunk would be tiny) it hard-cuts at limit instead,
// mid-word if need be. The limit counts runes, not bytes, so a cut never lands
// inside a multibyte sequence. Leading newlines are stripped from each
// remainder, so joining the chunks back together is not guaranteed to
// reproduce the input exactly.
func ChunkMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		splitAt := lastNewline(runes[:limit])
		if splitAt == -1 || splitAt < limit/2 {
			splitAt = limit
		}

		chunks = append(chunks, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
