package services

import (
	"crypto/sha1"
	"encoding/binary"
	"strings"

	"github.com/jasonachkar/persuade/models"
)

const defaultElevenLabsVoice = "pNInz6obpgDQGcFmaJgB" // Adam

// Stock ElevenLabs voice IDs for each gender
var elevenLabsFemaleVoices = []string{
	"EXAVITQu4vr4xnSDxMaL", // Rachel
	"21m00Tcm4TlvDq8ikWAM", // Domi
	"AZnzlk1XvdvUeBnXmlld", // Bella
	"ErXwobaYiN019PkySvjV", // Elli
	"MF3mGyEYCl7XYWbV9V6O", // Dorothy
}

var elevenLabsMaleVoices = []string{
	"pNInz6obpgDQGcFmaJgB", // Adam
	"TxGEqnHWrfWFTfGW9XjX", // Antoni
	"VR6AewLTigWG4xSOukaG", // Josh
	"yoZ06aMxZJJ28mfd3POQ", // Arnold
	"bVMeCyTHy58xNoL34h3p", // Clyde
}

var googleFemaleVoices = []string{
	"en-US-Standard-F",
	"en-US-Standard-C",
	"en-US-Standard-E",
}

var googleMaleVoices = []string{
	"en-US-Standard-B",
	"en-US-Standard-D",
	"en-US-Standard-I",
}

// PickScenarioVoice returns a stable voice for a scenario so the same customer
// always sounds the same.
func PickScenarioVoice(scenario models.ScenarioSelection, female, male []string) string {
	pool := append(append([]string{}, female...), male...)
	if len(pool) == 0 {
		return defaultElevenLabsVoice
	}
	key := strings.ToLower(scenario.Product + "|" + scenario.Emotion + "|" + scenario.Difficulty)
	h := sha1.New()
	h.Write([]byte(key))
	sum := h.Sum(nil)
	idx := binary.BigEndian.Uint16(sum) % uint16(len(pool))
	return pool[idx]
}
