package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/jasonachkar/persuade/models"
	ws "github.com/jasonachkar/persuade/websocket"
)

var errProviderDown = errors.New("provider unavailable")

type fakeScorer struct {
	raw   string
	err   error
	calls int
}

func (f *fakeScorer) ScoreConversation(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	return f.raw, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeReplier struct {
	reply   string
	err     error
	history []models.Message
	system  string
}

func (f *fakeReplier) GenerateReply(ctx context.Context, system string, history []models.Message) (string, error) {
	f.system = system
	f.history = history
	return f.reply, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.audio)), nil
}

func (f *fakeSynthesizer) VoiceFor(scenario models.ScenarioSelection) string {
	return "test-voice"
}

type fakeRealtimeProvider struct {
	cred        *EphemeralCredential
	credErr     error
	answer      string
	exchangeErr error

	gotSecret       string
	gotOffer        string
	gotInstructions string
	exchanges       int
}

func (f *fakeRealtimeProvider) CreateEphemeralCredential(ctx context.Context) (*EphemeralCredential, error) {
	if f.credErr != nil {
		return nil, f.credErr
	}
	return f.cred, nil
}

func (f *fakeRealtimeProvider) ExchangeSDP(ctx context.Context, secret, offer, instructions string) (string, error) {
	f.exchanges++
	f.gotSecret, f.gotOffer, f.gotInstructions = secret, offer, instructions
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return f.answer, nil
}

type fakePeer struct {
	offer     string
	offerErr  error
	answer    string
	events    chan []byte
	closeCall int
}

func (p *fakePeer) CreateOffer(ctx context.Context) (string, error) {
	return p.offer, p.offerErr
}

func (p *fakePeer) SetRemoteAnswer(answer string) error {
	p.answer = answer
	return nil
}

func (p *fakePeer) Events() <-chan []byte {
	if p.events == nil {
		return nil
	}
	return p.events
}

func (p *fakePeer) Close() error {
	p.closeCall++
	return nil
}

// recordingSender captures every message sent on a call
type recordingSender struct {
	mu   sync.Mutex
	msgs []ws.Message
}

func (s *recordingSender) SendMessage(msg ws.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return true
}

func (s *recordingSender) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (s *recordingSender) last(msgType string) (ws.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Type == msgType {
			return s.msgs[i], true
		}
	}
	return ws.Message{}, false
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}
