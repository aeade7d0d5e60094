package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/virgil28labs/timesync/models"
)

// Discord defines the interface for the Discord client.
type Discord interface {
	WriteMessage(channelNameOrID, msg string) error
	Observe(ev models.SyncEvent)
	Start(ctx context.Context) error
	Stop()
}

// MessageSender is the part of *discordgo.Session used to post messages.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Status is what the chat commands report on. *coordinator.Controller
// satisfies it.
type Status interface {
	SelfID() string
	LeaderID() string
	IsLeader() bool
	Peers() []models.PeerRecord
	Latest() models.TimeUpdate
}
