package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LinguaDetector detects languages with lingua's statistical models.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over every language lingua knows, so
// that queries in a third language are reported as such instead of being
// forced onto English or Bangla.
func NewLinguaDetector(lowAccuracy bool) *LinguaDetector {
	b := lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	if lowAccuracy {
		b = b.WithLowAccuracyMode()
	}
	return &LinguaDetector{detector: b.Build()}
}

// Detect returns the ISO 639-1 code of the most likely language.
func (d *LinguaDetector) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}
