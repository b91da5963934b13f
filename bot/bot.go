// Package bot wires the Discord gateway to the stream poller. It tracks the
// connection lifecycle, starts the poll loop on the first Ready event, and
// filters out the bot's own messages.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// State is the bot lifecycle stage.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateRunning
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Gateway is the chat connection the bot registers its handlers on.
type Gateway interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// Runner is the long-running poll loop started once the bot is ready.
type Runner interface {
	Run(ctx context.Context) error
}

// MessageHandler receives messages not authored by the bot.
type MessageHandler func(s *discordgo.Session, m *discordgo.MessageCreate)

type Bot struct {
	gateway   Gateway
	poller    Runner
	onMessage MessageHandler

	state     atomic.Int32
	startOnce sync.Once

	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	removes []func()
}

// New creates a bot on gateway that runs poller after login. onMessage may be nil.
func New(gateway Gateway, poller Runner, onMessage MessageHandler) *Bot {
	if onMessage == nil {
		onMessage = ignoreMessage
	}
	return &Bot{gateway: gateway, poller: poller, onMessage: onMessage}
}

// State returns the current lifecycle stage.
func (b *Bot) State() State { return State(b.state.Load()) }

func (b *Bot) setState(s State) {
	old := State(b.state.Swap(int32(s)))
	if old != s {
		slog.Debug("bot state", slog.String("from", old.String()), slog.String("to", s.String()), slog.String("component", "bot"))
	}
}

// Start registers event handlers and opens the gateway. The poll loop runs under
// a context derived from ctx once the Ready event arrives.
func (b *Bot) Start(ctx context.Context) error {
	slog.Info("starting bot", slog.String("component", "bot"))

	b.mu.Lock()
	b.runCtx, b.cancel = context.WithCancel(ctx)
	b.removes = append(b.removes,
		b.gateway.AddHandler(b.OnReady),
		b.gateway.AddHandler(b.OnMessageCreate),
	)
	b.mu.Unlock()

	b.setState(StateConnecting)
	if err := b.gateway.Open(); err != nil {
		b.setState(StateDisconnected)
		b.cancel()
		return err
	}
	return nil
}

// OnReady handles the gateway Ready event. Only the first Ready starts the poller;
// later ones come from reconnects.
func (b *Bot) OnReady(s *discordgo.Session, r *discordgo.Ready) {
	if r != nil && r.User != nil {
		slog.Info("logged in", slog.String("user", r.User.String()), slog.String("user_id", r.User.ID), slog.String("component", "bot"))
	}
	if b.State() == StateRunning {
		return
	}
	b.setState(StateReady)
	b.startOnce.Do(b.startPoller)
}

func (b *Bot) startPoller() {
	b.mu.Lock()
	ctx := b.runCtx
	if ctx == nil {
		b.mu.Unlock()
		slog.Error("ready before start; poller not launched", slog.String("component", "bot"))
		return
	}
	done := make(chan struct{})
	b.done = done
	b.mu.Unlock()

	b.setState(StateRunning)
	go func() {
		defer close(done)
		if err := b.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("poller exited", slog.Any("err", err), slog.String("component", "bot"))
		}
	}()
}

// OnMessageCreate ignores the bot's own messages and hands the rest to the message handler.
func (b *Bot) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if isSelf(s, m.Author) {
		return
	}
	b.onMessage(s, m)
}

func isSelf(s *discordgo.Session, author *discordgo.User) bool {
	if s == nil || s.State == nil || s.State.User == nil {
		// Own identity unknown until Ready; treat as self so nothing responds early.
		return true
	}
	return author.ID == s.State.User.ID
}

func ignoreMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	slog.Debug("message ignored", slog.String("channel_id", m.ChannelID), slog.String("author_id", m.Author.ID), slog.String("component", "bot"))
}

// Stop cancels the poll loop, waits for it to exit, and closes the gateway.
func (b *Bot) Stop() {
	slog.Info("stopping", slog.String("component", "bot"))

	b.mu.Lock()
	cancel, done, removes := b.cancel, b.done, b.removes
	b.removes = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	for _, remove := range removes {
		remove()
	}
	if err := b.gateway.Close(); err != nil {
		slog.Error("close gateway", slog.Any("err", err), slog.String("component", "bot"))
	}
	b.setState(StateStopped)
	slog.Info("stopped", slog.String("component", "bot"))
}
