package luis

import "unicode/utf16"

// AlignSpan returns the text covered by the span and how many earlier,
// possibly overlapping, occurrences of that text start before it. Offsets are
// UTF-16 code units, as reported by the prediction service.
func AlignSpan(utterance string, startIndex, length int) (string, int, error) {
	units := utf16.Encode([]rune(utterance))
	if startIndex < 0 || length < 0 || startIndex > len(units) || length > len(units)-startIndex {
		return "", 0, &FormatError{Reason: "span metadata inconsistent with utterance text: span out of range"}
	}
	needle := units[startIndex : startIndex+length]
	matchText := string(utf16.Decode(needle))

	matchIndex := 0
	for from := 0; from <= startIndex; {
		found := indexUnits(units, needle, from)
		if found < 0 || found > startIndex {
			break
		}
		if found == startIndex {
			return matchText, matchIndex, nil
		}
		matchIndex++
		from = found + 1
	}
	return "", 0, &FormatError{Reason: "span metadata inconsistent with utterance text"}
}

func indexUnits(haystack, needle []uint16, from int) int {
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
