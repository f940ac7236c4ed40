package knowledge

import (
	"strings"
	"unicode"
)

// splitSentences breaks text at '.', '!' or '?' followed by whitespace and
// an upper-case letter. Short capitalized abbreviations ("Dr.", "Mr.") and
// dotted ones ("e.g.") do not end a sentence.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+2 >= len(runes) || runes[i+1] != ' ' || !unicode.IsUpper(runes[i+2]) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
		start = i + 2
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isAbbreviation(before []rune) bool {
	j := len(before)
	for j > 0 && before[j-1] != ' ' {
		j--
	}
	word := before[j:]
	if len(word) == 2 && unicode.IsUpper(word[0]) && unicode.IsLower(word[1]) {
		return true
	}
	for _, r := range word {
		if r == '.' {
			return true
		}
	}
	return false
}

// chunkText groups sentences into chunks of at most size characters. Each
// chunk after the first starts with the trailing sentences of the previous
// one whose combined length fits in overlap. Sentences longer than size are
// split on word boundaries first.
func chunkText(text string, size, overlap int) []string {
	var sentences []string
	for _, sentence := range splitSentences(text) {
		if len(sentence) > size {
			sentences = append(sentences, enforceCharLimit([]string{sentence}, size)...)
			continue
		}
		sentences = append(sentences, sentence)
	}

	var chunks []string
	for i := 0; i < len(sentences); {
		var current []string
		currentSize := 0
		for j := i; j < len(sentences); j++ {
			add := len(sentences[j])
			if len(current) > 0 {
				add++
			}
			if currentSize+add > size && len(current) > 0 {
				break
			}
			current = append(current, sentences[j])
			currentSize += add
		}
		chunks = append(chunks, strings.Join(current, " "))

		if i+len(current) >= len(sentences) {
			break
		}
		overlapSize, overlapCount := 0, 0
		for k := len(current) - 1; k >= 0; k-- {
			n := len(current[k])
			if k < len(current)-1 {
				n++
			}
			if overlapSize+n > overlap {
				break
			}
			overlapSize += n
			overlapCount++
		}
		next := i + len(current) - overlapCount
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}

// enforceCharLimit splits any chunk whose character count exceeds maxChars
// at word boundaries. A single word longer than maxChars is kept whole.
func enforceCharLimit(chunks []string, maxChars int) []string {
	var result []string
	for _, chunk := range chunks {
		if len(chunk) <= maxChars {
			result = append(result, chunk)
			continue
		}
		var buf strings.Builder
		for _, w := range strings.Fields(chunk) {
			if buf.Len() > 0 && buf.Len()+1+len(w) > maxChars {
				result = append(result, buf.String())
				buf.Reset()
			}
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(w)
		}
		if buf.Len() > 0 {
			result = append(result, buf.String())
		}
	}
	return result
}
