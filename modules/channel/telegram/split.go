package telegram

import "errors"

// ErrInvalidChunkSize is returned by SplitText for a non-positive chunk
// size.
var ErrInvalidChunkSize = errors.New("telegram: chunk size must be positive")

// SplitText splits text into ordered non-empty chunks of at most chunkSize
// code points whose concatenation equals the input.
//
// A chunk never ends with a backslash unless it is the last chunk: escaped
// MarkdownV2 sequences like \* must not be cut between the backslash and
// its successor. When the greedy cut would land right after a backslash,
// the cut moves one position left; if that would empty the chunk, it moves
// one position right instead so progress is guaranteed.
func SplitText(text string, chunkSize int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}, nil
	}

	var chunks []string
	for i := 0; i < len(runes); {
		end := min(i+chunkSize, len(runes))
		if end < len(runes) && runes[end-1] == '\\' {
			end--
			if end == i {
				end = i + 2
			}
		}
		chunks = append(chunks, string(runes[i:end]))
		i = end
	}
	return chunks, nil
}
