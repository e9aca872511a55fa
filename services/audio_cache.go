package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// AudioCache keeps synthesized audio for the fixed lines every call reuses
type AudioCache struct {
	cache *cache.Cache
}

// Opening customer line per emotion, spoken when a chunked call starts
var OpeningLines = map[string]string{
	"happy":      "Hi there! I've got a few minutes. What did you want to show me?",
	"non-caring": "Yeah, hi. I guess I can listen for a bit.",
	"angry":      "Look, I'm really busy today. What is this about?",
	"confused":   "Hello? Sorry, I'm not quite sure what this call is about.",
}

const defaultOpeningLine = "Hello, who am I speaking with?"

// Closing line sent when the salesperson ends the call
const ClosingLine = "Alright, thanks for your time. I'll think about it."

// OpeningLine returns the customer's first line for an emotion
func OpeningLine(emotion string) string {
	if line, ok := OpeningLines[strings.ToLower(emotion)]; ok {
		return line
	}
	return defaultOpeningLine
}

func NewAudioCache() *AudioCache {
	return &AudioCache{
		cache: cache.New(24*time.Hour, 1*time.Hour),
	}
}

// IsCommonPhrase checks if the given text is a fixed line worth caching
func (ac *AudioCache) IsCommonPhrase(text string) bool {
	if text == defaultOpeningLine || text == ClosingLine {
		return true
	}
	for _, line := range OpeningLines {
		if line == text {
			return true
		}
	}
	return false
}

func (ac *AudioCache) generateCacheKey(text, voiceID string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", text, voiceID)))
	return hex.EncodeToString(hash[:])
}

// Get retrieves cached audio data if it exists
func (ac *AudioCache) Get(ctx context.Context, text, voiceID string) ([]byte, bool) {
	if !ac.IsCommonPhrase(text) {
		return nil, false
	}
	if x, found := ac.cache.Get(ac.generateCacheKey(text, voiceID)); found {
		slog.Debug("Cache hit for common phrase", "text", text, "voice_id", voiceID)
		return x.([]byte), true
	}
	return nil, false
}

// Set stores audio data for a common phrase; other text is ignored
func (ac *AudioCache) Set(ctx context.Context, text, voiceID string, audioData []byte) {
	if !ac.IsCommonPhrase(text) {
		return
	}
	ac.cache.Set(ac.generateCacheKey(text, voiceID), audioData, cache.DefaultExpiration)
	slog.Info("Cached common phrase audio", "text", text, "voice_id", voiceID, "size", len(audioData))
}

// GetOrGenerate gets cached audio or generates new audio and caches it
func (ac *AudioCache) GetOrGenerate(ctx context.Context, text, voiceID string, generator func() (io.ReadCloser, error)) ([]byte, error) {
	if cachedData, found := ac.Get(ctx, text, voiceID); found {
		return cachedData, nil
	}

	audioReader, err := generator()
	if err != nil {
		return nil, err
	}
	defer audioReader.Close()

	audioData, err := io.ReadAll(audioReader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio data: %v", ErrSynthesis, err)
	}

	ac.Set(ctx, text, voiceID, audioData)
	return audioData, nil
}

// ItemCount returns the number of cached clips
func (ac *AudioCache) ItemCount() int {
	return ac.cache.ItemCount()
}
