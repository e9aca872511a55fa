package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jasonachkar/persuade/models"
)

// BridgeState is the lifecycle of one realtime call
type BridgeState string

const (
	StateIdle                 BridgeState = "idle"
	StateRequestingCredential BridgeState = "requesting_credential"
	StateNegotiating          BridgeState = "negotiating"
	StateConnected            BridgeState = "connected"
	StateEnded                BridgeState = "ended"
	StateError                BridgeState = "error"
)

// Realtime data-channel event types that carry transcript text
const (
	eventInputTranscriptDelta     = "conversation.item.input_audio_transcription.delta"
	eventInputTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	eventOutputTranscriptDelta    = "response.audio_transcript.delta"
	eventOutputTranscriptDone     = "response.audio_transcript.done"
	eventError                    = "error"
)

// Peer is the local end of the WebRTC connection. Close releases the
// connection and any capture device it holds.
type Peer interface {
	CreateOffer(ctx context.Context) (string, error)
	SetRemoteAnswer(answer string) error
	// Events delivers raw data-channel messages; nil when the peer has none
	Events() <-chan []byte
	Close() error
}

// Bridge drives one realtime voice call:
// Idle -> RequestingCredential -> Negotiating -> Connected -> Ended,
// with any failure moving to Error. Ended and Error are terminal.
type Bridge struct {
	provider RealtimeProvider
	peer     Peer

	mu           sync.Mutex
	state        BridgeState
	credential   *EphemeralCredential
	scenario     models.ScenarioSelection
	conversation *models.Conversation
	lastErr      error
	peerClosed   bool
	done         chan struct{}
	loopDone     chan struct{}
}

func NewBridge(provider RealtimeProvider, peer Peer) *Bridge {
	return &Bridge{
		provider:     provider,
		peer:         peer,
		state:        StateIdle,
		conversation: models.NewConversation(),
		done:         make(chan struct{}),
	}
}

// Start requests a credential and negotiates the session in one go
func (b *Bridge) Start(ctx context.Context, scenario models.ScenarioSelection) (string, error) {
	if _, err := b.RequestEphemeralCredential(ctx); err != nil {
		return "", err
	}
	return b.NegotiateSession(ctx, scenario)
}

// RequestEphemeralCredential obtains the short-lived secret. Not retried.
func (b *Bridge) RequestEphemeralCredential(ctx context.Context) (*EphemeralCredential, error) {
	b.mu.Lock()
	if b.state != StateIdle {
		state := b.state
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot request credential in state %s", ErrCredential, state)
	}
	b.state = StateRequestingCredential
	b.mu.Unlock()

	cred, err := b.provider.CreateEphemeralCredential(ctx)
	if err != nil {
		b.fail(err)
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateRequestingCredential {
		return nil, fmt.Errorf("%w: call ended while requesting credential", ErrCredential)
	}
	b.credential = cred
	return cred, nil
}

// NegotiateSession sends the local offer along with the scenario instructions
// and applies the provider's answer. Instructions are sent only here.
func (b *Bridge) NegotiateSession(ctx context.Context, scenario models.ScenarioSelection) (string, error) {
	b.mu.Lock()
	if b.state != StateRequestingCredential || b.credential == nil {
		state := b.state
		b.mu.Unlock()
		return "", fmt.Errorf("%w: cannot negotiate in state %s", ErrNegotiation, state)
	}
	b.state = StateNegotiating
	b.scenario = scenario
	secret := b.credential.Value
	b.mu.Unlock()

	offer, err := b.peer.CreateOffer(ctx)
	if err != nil {
		err = fmt.Errorf("%w: failed to create offer: %v", ErrNegotiation, err)
		b.fail(err)
		return "", err
	}

	answer, err := b.provider.ExchangeSDP(ctx, secret, offer, BuildRealtimeInstructions(scenario))
	if err != nil {
		b.fail(err)
		return "", err
	}

	if err := b.peer.SetRemoteAnswer(answer); err != nil {
		err = fmt.Errorf("%w: failed to apply answer: %v", ErrNegotiation, err)
		b.fail(err)
		return "", err
	}

	b.mu.Lock()
	if b.state != StateNegotiating {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: call ended during negotiation", ErrNegotiation)
	}
	b.state = StateConnected
	events := b.peer.Events()
	if events != nil {
		b.loopDone = make(chan struct{})
		go b.consumeEvents(events, b.loopDone)
	}
	b.mu.Unlock()

	slog.Info("Realtime session connected",
		"difficulty", scenario.Difficulty,
		"emotion", scenario.Emotion,
		"product", scenario.Product)
	return answer, nil
}

func (b *Bridge) consumeEvents(events <-chan []byte, loopDone chan struct{}) {
	defer close(loopDone)
	for {
		select {
		case <-b.done:
			b.drainEvents(events)
			return
		case raw, ok := <-events:
			if !ok {
				return
			}
			b.HandleEvent(raw)
		}
	}
}

// drainEvents applies whatever was already queued when the call ended
func (b *Bridge) drainEvents(events <-chan []byte) {
	for {
		select {
		case raw, ok := <-events:
			if !ok {
				return
			}
			b.HandleEvent(raw)
		default:
			return
		}
	}
}

type realtimeEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HandleEvent folds one data-channel message into the transcript
func (b *Bridge) HandleEvent(raw []byte) {
	var ev realtimeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		slog.Warn("Ignoring malformed realtime event", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case eventInputTranscriptDelta:
		b.conversation.AppendDelta(models.RoleUser, ev.Delta)
	case eventInputTranscriptCompleted:
		b.conversation.Complete(models.RoleUser, ev.Transcript)
	case eventOutputTranscriptDelta:
		b.conversation.AppendDelta(models.RoleAssistant, ev.Delta)
	case eventOutputTranscriptDone:
		b.conversation.Complete(models.RoleAssistant, ev.Transcript)
	case eventError:
		msg := ""
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		slog.Warn("Realtime provider reported an error", "message", msg)
	}
}

// Teardown releases the peer. Safe to call in any state and more than once.
func (b *Bridge) Teardown() error {
	b.mu.Lock()
	if b.state != StateError {
		b.state = StateEnded
	}
	if b.peerClosed {
		b.mu.Unlock()
		return nil
	}
	b.peerClosed = true
	close(b.done)
	loopDone := b.loopDone
	b.mu.Unlock()

	if err := b.peer.Close(); err != nil {
		slog.Warn("Failed to close peer", "error", err)
	}
	if loopDone != nil {
		<-loopDone
	}
	return nil
}

// Hangup ends the call and evaluates what was said
func (b *Bridge) Hangup(ctx context.Context, evaluator *Evaluator) *models.EvaluationResult {
	b.Teardown()
	return evaluator.Evaluate(ctx, b.Transcript(), b.Scenario())
}

// Scenario is the selection the call was negotiated with
func (b *Bridge) Scenario() models.ScenarioSelection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scenario
}

func (b *Bridge) fail(err error) {
	b.mu.Lock()
	if b.state != StateEnded {
		b.state = StateError
		b.lastErr = err
	}
	b.mu.Unlock()

	slog.Error("Realtime session failed", "error", err)
	b.Teardown()
}

// Transcript returns the conversation captured so far
func (b *Bridge) Transcript() []models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversation.Messages()
}

func (b *Bridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the failure that moved the bridge to Error, if any
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// StatusText is the user-facing status line for the current state
func (b *Bridge) StatusText() string {
	switch b.State() {
	case StateIdle:
		return "Ready"
	case StateRequestingCredential, StateNegotiating:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateEnded:
		return "Call ended"
	}
	return StartFailureStatus
}

// relayPeer stands in for a browser peer: the browser already created its
// offer, applies the answer itself and forwards its data-channel events.
type relayPeer struct {
	offer  string
	answer string
	events chan []byte
	closed chan struct{}
	once   sync.Once
}

const relayEventBuffer = 256

var errPeerClosed = errors.New("peer closed")

func newRelayPeer(offer string) *relayPeer {
	return &relayPeer{
		offer:  offer,
		events: make(chan []byte, relayEventBuffer),
		closed: make(chan struct{}),
	}
}

func (p *relayPeer) CreateOffer(ctx context.Context) (string, error) {
	if p.offer == "" {
		return "", fmt.Errorf("missing offer SDP")
	}
	return p.offer, nil
}

func (p *relayPeer) SetRemoteAnswer(answer string) error {
	p.answer = answer
	return nil
}

// Forward queues one data-channel message from the browser
func (p *relayPeer) Forward(ctx context.Context, raw []byte) error {
	select {
	case <-p.closed:
		return errPeerClosed
	default:
	}
	select {
	case p.events <- raw:
		return nil
	case <-p.closed:
		return errPeerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *relayPeer) Events() <-chan []byte { return p.events }

func (p *relayPeer) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
