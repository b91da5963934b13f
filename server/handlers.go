package server

import (
	"context"

	"github.com/luminbot/luminbot-discord/bot"
	"github.com/luminbot/luminbot-discord/poller"
)

// LifecycleReporter reports the bot's connection stage.
type LifecycleReporter interface {
	State() bot.State
}

// StatusReporter reports the poll loop's last observed state.
type StatusReporter interface {
	Status() poller.Status
}

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the handlers report on. DataSource may be nil when
// the configured source has no connectivity check.
type Deps struct {
	Bot        LifecycleReporter
	Poller     StatusReporter
	DataSource Pinger
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	bot        LifecycleReporter
	poller     StatusReporter
	dataSource Pinger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		bot:        deps.Bot,
		poller:     deps.Poller,
		dataSource: deps.DataSource,
	}
}
