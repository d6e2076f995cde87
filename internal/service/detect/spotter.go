// Package detect classifies finalized transcripts for wake words and
// emergency keywords.
package detect

import (
	"strings"

	"emergency-escalation-service/internal/models"
)

// DefaultWakeWords are the phrases that invoke the assistant directly.
var DefaultWakeWords = []string{
	"medai",
	"med.ai",
	"med ai",
	"hey medai",
	"med ai madad",
	"med ai madad karo",
	"hey med ai",
}

// DefaultEmergencyKeywords are distress terms whose presence alone
// indicates a possible emergency. Includes transliterated Hindi terms.
var DefaultEmergencyKeywords = []string{
	"help",
	"dying",
	"can't breathe",
	"cant breathe",
	"fainting",
	"coughing blood",
	"poisoned",
	"severe pain",
	"chest pain",
	"blood",
	"emergency",
	"ambulance",
	"madad",
	"bachao",
}

// SupportedLanguages lists the BCP-47 codes the listener can be
// configured with.
var SupportedLanguages = []string{"en-US", "hi-IN", "mr-IN", "ta-IN", "gu-IN", "bn-IN"}

// Spotter performs substring containment checks against fixed
// vocabularies. It is stateless and safe for concurrent use.
type Spotter struct {
	wakeWords []string
	keywords  []string
}

// New creates a Spotter with the default vocabularies.
func New() *Spotter {
	return NewWithVocabulary(DefaultWakeWords, DefaultEmergencyKeywords)
}

// NewWithVocabulary creates a Spotter with custom vocabularies.
// Entries are matched case-insensitively.
func NewWithVocabulary(wakeWords, keywords []string) *Spotter {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, w := range in {
			out[i] = strings.ToLower(w)
		}
		return out
	}
	return &Spotter{
		wakeWords: lower(wakeWords),
		keywords:  lower(keywords),
	}
}

// Classify derives an EmergencyDetection from a transcript. Pure and
// deterministic; called on every finalized transcript.
//
// Confidence policy, in tie-break order:
//  1. high   - wake word present AND at least 2 distinct keywords
//  2. medium - wake word present OR at least 1 keyword
//  3. low    - otherwise
func (s *Spotter) Classify(transcript, language string) models.EmergencyDetection {
	lower := strings.ToLower(transcript)

	hasWakeWord := false
	for _, w := range s.wakeWords {
		if strings.Contains(lower, w) {
			hasWakeWord = true
			break
		}
	}

	var detected []string
	for _, k := range s.keywords {
		if strings.Contains(lower, k) {
			detected = append(detected, k)
		}
	}

	confidence := models.ConfidenceLow
	switch {
	case hasWakeWord && len(detected) >= 2:
		confidence = models.ConfidenceHigh
	case hasWakeWord || len(detected) >= 1:
		confidence = models.ConfidenceMedium
	}

	return models.EmergencyDetection{
		IsEmergency:      hasWakeWord || len(detected) > 0,
		Confidence:       confidence,
		DetectedKeywords: detected,
		Transcript:       transcript,
		Language:         language,
	}
}
