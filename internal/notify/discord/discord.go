// Package discord implements the notify.Notifier for Discord.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/openhouse-labs/keyturn/internal/notify"
)

// Embed colors by event severity.
const (
	colorInfo    = 0x439fe0
	colorWarning = 0xdaa038
	colorError   = 0xa30200
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendEmbed(channelID, embed, options...)
}

// Notifier posts events to a Discord channel as embeds.
type Notifier struct {
	sess      session
	channelID string

	mu     sync.Mutex
	opened bool
	closed bool
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real gateway.
	Session session
}

// New creates a Discord Notifier. The gateway connection is opened lazily on
// first Send.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}

	n := &Notifier{channelID: opts.ChannelID}
	if opts.Session != nil {
		n.sess = opts.Session
	} else {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		n.sess = &realSession{s: s}
	}
	return n, nil
}

// Send posts the event as a severity-colored embed.
func (n *Notifier) Send(ctx context.Context, ev notify.Event) error {
	if err := n.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       severityColor(ev.Severity),
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}

	if _, err := n.sess.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		return fmt.Errorf("discord: post to %s: %w", n.channelID, err)
	}
	return nil
}

// Close shuts down the gateway connection.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || !n.opened {
		n.closed = true
		return nil
	}
	n.closed = true
	if err := n.sess.Close(); err != nil {
		return fmt.Errorf("discord: close: %w", err)
	}
	return nil
}

func (n *Notifier) ensureOpen() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("discord: notifier already closed")
	}
	if n.opened {
		return nil
	}
	if err := n.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	n.opened = true
	return nil
}

func severityColor(severity string) int {
	switch severity {
	case notify.SeverityError:
		return colorError
	case notify.SeverityWarning:
		return colorWarning
	default:
		return colorInfo
	}
}
