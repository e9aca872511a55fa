package services

import "errors"

var (
	ErrCredential    = errors.New("realtime credential request failed")
	ErrNegotiation   = errors.New("realtime session negotiation failed")
	ErrTranscription = errors.New("transcription failed")
	ErrReply         = errors.New("reply generation failed")
	ErrSynthesis     = errors.New("speech synthesis failed")
	ErrEvaluation    = errors.New("evaluation failed")
	ErrStore         = errors.New("store operation failed")
	ErrValidation    = errors.New("validation failed")
)

// StartFailureStatus is the status text shown when a call cannot be set up
const StartFailureStatus = "Error: failed to start session"
