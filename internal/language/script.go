package language

import "unicode"

var scripts = []struct {
	table *unicode.RangeTable
	code  string
}{
	{unicode.Bengali, "bn"},
	{unicode.Latin, "en"},
	{unicode.Devanagari, "hi"},
	{unicode.Arabic, "ar"},
	{unicode.Han, "zh"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Cyrillic, "ru"},
	{unicode.Greek, "el"},
	{unicode.Tamil, "ta"},
	{unicode.Thai, "th"},
}

// ScriptDetector guesses the language from the dominant Unicode script.
// Latin text is reported as English. It needs no models and is fast, but
// cannot tell Latin-script languages apart.
type ScriptDetector struct{}

// Detect returns the code of the script with the most letters.
func (ScriptDetector) Detect(text string) (string, bool) {
	counts := make(map[string]int)
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[s.code]++
				break
			}
		}
	}
	best, bestN := "", 0
	// Iterate the table, not the map, so ties resolve deterministically.
	for _, s := range scripts {
		if n := counts[s.code]; n > bestN {
			best, bestN = s.code, n
		}
	}
	return best, bestN > 0
}
