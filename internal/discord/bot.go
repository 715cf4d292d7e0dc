// Package discord provides the Discord surface for Parley. It owns the
// discordgo.Session lifecycle and routes slash command interactions to
// registered handlers.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/parley/pkg/audio"
	discordaudio "github.com/MrWong99/parley/pkg/audio/discord"
)

// HandlerFunc handles one slash command interaction.
type HandlerFunc func(s *discordgo.Session, i *discordgo.InteractionCreate)

// Bot owns the Discord gateway connection and routes interactions to
// registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordaudio.Platform
	guildID   string
	defs      []*discordgo.ApplicationCommand
	handlers  map[string]HandlerFunc
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and installs the interaction
// dispatcher.
func New(_ context.Context, token, guildID string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		session:  session,
		platform: discordaudio.New(session, guildID),
		guildID:  guildID,
		handlers: make(map[string]HandlerFunc),
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.dispatch(s, i)
	})

	return b, nil
}

// Platform returns the audio.Platform for voice channel connections.
func (b *Bot) Platform() audio.Platform {
	return b.platform
}

// GuildID returns the target guild ID.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// BotUserID returns the bot's own user ID, used to suppress self-triggered
// captures.
func (b *Bot) BotUserID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session.State.User.ID
}

// RegisterCommand registers a top-level slash command and its handler.
// Must be called before Run.
func (b *Bot) RegisterCommand(def *discordgo.ApplicationCommand, h HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defs = append(b.defs, def)
	b.handlers[def.Name] = h
}

func (b *Bot) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name

	b.mu.RLock()
	h, ok := b.handlers[name]
	b.mu.RUnlock()
	if !ok {
		slog.Warn("discord: no handler for command", "name", name)
		RespondEphemeral(s, i, "Unknown command.")
		return
	}
	h(s, i)
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	defs := b.defs
	b.mu.RUnlock()

	if len(defs) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, defs)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
