// Package discord wraps a discordgo session with the three calls the bot makes:
// setting a "watching" presence, resolving the promotion channel, and sending a
// message to it.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrChannelNotFound is returned when a channel is neither cached nor retrievable.
var ErrChannelNotFound = errors.New("discord channel not found")

// Intents requested on the gateway. Message content is needed for message handling.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

// restAPI is the subset of *discordgo.Session REST calls the client uses.
type restAPI interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Client struct {
	session *discordgo.Session
	api     restAPI
	state   *discordgo.State
}

// NewClient creates a bot session for token. The session is not opened.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord token empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = Intents
	return &Client{session: session, api: session, state: session.State}, nil
}

// Session exposes the underlying session for handler registration.
func (c *Client) Session() *discordgo.Session { return c.session }

// AddHandler registers an event handler on the session; see discordgo.Session.AddHandler.
func (c *Client) AddHandler(handler interface{}) func() { return c.session.AddHandler(handler) }

// Open connects to the gateway. Authentication failures surface here.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error { return c.session.Close() }

// SetWatching sets the bot presence to "Watching <text>".
func (c *Client) SetWatching(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.api.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{
			Name: text,
			Type: discordgo.ActivityTypeWatching,
		}},
	})
}

// ResolveChannel looks a channel up in the state cache, then over REST.
func (c *Client) ResolveChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channelID == "" {
		return nil, fmt.Errorf("%w: no channel id", ErrChannelNotFound)
	}
	if c.state != nil {
		if ch, err := c.state.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	ch, err := c.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusNotFound, http.StatusForbidden:
				return nil, fmt.Errorf("%w: %s (status %d)", ErrChannelNotFound, channelID, restErr.Response.StatusCode)
			}
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrChannelNotFound, channelID, err)
	}
	return ch, nil
}

// SendMessage posts message to channelID after resolving the channel.
func (c *Client) SendMessage(ctx context.Context, channelID, message string) error {
	ch, err := c.ResolveChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if _, err := c.api.ChannelMessageSend(ch.ID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message to %s: %w", ch.ID, err)
	}
	slog.Debug("discord message sent", slog.String("channel_id", ch.ID), slog.String("component", "discord"))
	return nil
}
