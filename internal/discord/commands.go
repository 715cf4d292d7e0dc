package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/relay"
)

const (
	// joinTimeout bounds the voice channel handshake.
	joinTimeout = 30 * time.Second

	// turnTimeout bounds a full text-triggered turn: LLM, synthesis and
	// playback combined.
	turnTimeout = 2 * time.Minute
)

// VoiceCommands holds the slash command handlers that drive voice sessions.
type VoiceCommands struct {
	registry *app.VoiceSessionRegistry
	bot      *Bot
}

// NewVoiceCommands creates the command set and registers it with the bot.
func NewVoiceCommands(bot *Bot, registry *app.VoiceSessionRegistry) *VoiceCommands {
	vc := &VoiceCommands{
		registry: registry,
		bot:      bot,
	}
	vc.register()
	return vc
}

func (vc *VoiceCommands) register() {
	textOption := func(desc string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "text",
				Description: desc,
				Required:    true,
			},
		}
	}

	vc.bot.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "join",
		Description: "Join your current voice channel and start listening",
	}, vc.handleJoin)

	vc.bot.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "leave",
		Description: "Leave the voice channel and end the session",
	}, vc.handleLeave)

	vc.bot.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "ask",
		Description: "Ask a question by text; the answer is spoken in the channel",
		Options:     textOption("What to ask"),
	}, vc.handleAsk)

	vc.bot.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "say",
		Description: "Make the bot speak the given text verbatim",
		Options:     textOption("What to say"),
	}, vc.handleSay)

	vc.bot.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "status",
		Description: "Show the state of the active voice session",
	}, vc.handleStatus)

	vc.bot.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "reset",
		Description: "Clear the conversation history",
	}, vc.handleReset)
}

// handleJoin handles /join.
func (vc *VoiceCommands) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID := vc.bot.GuildID()
	userID := interactionUserID(i)

	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		RespondEphemeral(s, i, "You must be in a voice channel for me to join.")
		return
	}

	if _, ok := vc.registry.Get(guildID); ok {
		RespondEphemeral(s, i, "I am already in a voice channel here. Use `/leave` first.")
		return
	}

	// Connecting may take a moment.
	DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	sess, err := vc.registry.Join(ctx, guildID, vs.ChannelID)
	if err != nil {
		FollowUp(s, i, fmt.Sprintf("Failed to join: %v", err))
		return
	}

	FollowUp(s, i, fmt.Sprintf("Joined <#%s>. I am listening.", sess.ChannelID))
}

// handleLeave handles /leave.
func (vc *VoiceCommands) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	err := vc.registry.Leave(ctx, vc.bot.GuildID())
	if errors.Is(err, app.ErrNoSession) {
		RespondEphemeral(s, i, "I am not in a voice channel.")
		return
	}
	if err != nil {
		RespondError(s, i, err)
		return
	}
	RespondEphemeral(s, i, "Left the voice channel.")
}

// handleAsk handles /ask: the text goes through the conversation pipeline
// and the reply is spoken in the voice channel.
func (vc *VoiceCommands) handleAsk(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := vc.registry.Get(vc.bot.GuildID())
	if !ok {
		RespondEphemeral(s, i, "I am not in a voice channel. Use `/join` first.")
		return
	}
	text := stringOption(i, "text")
	if text == "" {
		RespondEphemeral(s, i, "Nothing to ask.")
		return
	}

	DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	err := sess.Coordinator().Ask(ctx, interactionUsername(i), text)
	if errors.Is(err, relay.ErrBusy) {
		FollowUp(s, i, "I am in the middle of another reply. Try again in a moment.")
		return
	}
	if err != nil {
		FollowUp(s, i, fmt.Sprintf("Failed: %v", err))
		return
	}
	FollowUp(s, i, "Answered in the voice channel.")
}

// handleSay handles /say: the text is synthesized and played verbatim,
// without touching the conversation history.
func (vc *VoiceCommands) handleSay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := vc.registry.Get(vc.bot.GuildID())
	if !ok {
		RespondEphemeral(s, i, "I am not in a voice channel. Use `/join` first.")
		return
	}
	text := stringOption(i, "text")
	if text == "" {
		RespondEphemeral(s, i, "Nothing to say.")
		return
	}

	DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	err := sess.Coordinator().Say(ctx, text)
	if errors.Is(err, relay.ErrBusy) {
		FollowUp(s, i, "I am in the middle of another reply. Try again in a moment.")
		return
	}
	if err != nil {
		FollowUp(s, i, fmt.Sprintf("Failed: %v", err))
		return
	}
	FollowUp(s, i, "Said it.")
}

// handleStatus handles /status.
func (vc *VoiceCommands) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := vc.registry.Get(vc.bot.GuildID())
	if !ok {
		RespondEphemeral(s, i, "No active voice session.")
		return
	}

	st := sess.Coordinator().Status()
	RespondEphemeral(s, i, fmt.Sprintf(
		"**Channel:** <#%s>\n**Busy:** %t\n**Speaking:** %t\n**Active captures:** %d\n**History turns:** %d",
		sess.ChannelID,
		st.Busy,
		st.BotSpeaking,
		st.ActiveCaptures,
		st.HistoryLen,
	))
}

// handleReset handles /reset.
func (vc *VoiceCommands) handleReset(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := vc.registry.Get(vc.bot.GuildID())
	if !ok {
		RespondEphemeral(s, i, "No active voice session.")
		return
	}
	sess.Coordinator().Reset()
	RespondEphemeral(s, i, "Conversation history cleared.")
}

// stringOption extracts a required string option by name.
func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// interactionUserID extracts the user ID from an interaction, handling
// both guild (Member) and DM (User) contexts.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// interactionUsername extracts a display name for the conversation history.
func interactionUsername(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return "someone"
}
