package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/virgil28labs/timesync/logger"
	"github.com/virgil28labs/timesync/models"
)

var _ Discord = (*DefaultDiscord)(nil)

const commandPrefix = "!"

// DefaultDiscord posts coordination alerts to a channel and answers a few
// status commands there. Alerts are queued and posted by a single worker so
// that Observe never blocks the coordinator; when the queue is full the
// alert is dropped.
type DefaultDiscord struct {
	session      *discordgo.Session
	sender       MessageSender
	alertChannel string
	status       Status
	logger       logger.Logger
	now          func() time.Time

	queue         chan string
	removeHandler func()

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

type Params struct {
	Config Config
	Status Status
	Logger logger.Logger

	// Sender replaces the Discord session. Used by tests.
	Sender MessageSender
}

func New(p Params) (*DefaultDiscord, error) {
	cfg := p.Config
	cfg.Defaults()

	log := logger.OrNop(p.Logger)

	c := &DefaultDiscord{
		sender:       p.Sender,
		alertChannel: cfg.AlertChannel,
		status:       p.Status,
		logger:       log,
		now:          time.Now,
		queue:        make(chan string, cfg.QueueSize),
	}

	if c.sender == nil {
		if cfg.Token == "" {
			return nil, errors.New("discord token is required")
		}
		session, err := discordgo.New("Bot " + cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("create discord session: %w", err)
		}
		session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
		c.session = session
		c.sender = session
	}

	return c, nil
}

func (c *DefaultDiscord) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	if c.session != nil {
		if err := c.session.Open(); err != nil {
			return fmt.Errorf("open discord connection: %w", err)
		}
		c.removeHandler = c.session.AddHandler(c.handleMessage)
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.started = true
	go c.runAlerts(ctx)

	return nil
}

func (c *DefaultDiscord) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false

	if c.removeHandler != nil {
		c.removeHandler()
		c.removeHandler = nil
	}
	close(c.stop)
	<-c.done

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.WarnW("close discord session", "error", err)
		}
	}
}

// Observe queues an alert for the events worth a human's attention.
func (c *DefaultDiscord) Observe(ev models.SyncEvent) {
	msg, ok := formatAlert(ev)
	if !ok {
		return
	}

	select {
	case c.queue <- msg:
	default:
		c.logger.WarnW("discord alert queue full, dropping alert", "kind", ev.Kind)
	}
}

func (c *DefaultDiscord) runAlerts(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case msg := <-c.queue:
			if err := c.WriteMessage(c.alertChannel, msg); err != nil {
				c.logger.WarnW("post discord alert", "channel", c.alertChannel, "error", err)
			}
		}
	}
}

func (c *DefaultDiscord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if m.ChannelID != c.alertChannel {
		return
	}

	response, ok := c.respond(m.Content)
	if !ok {
		return
	}
	if err := c.WriteMessage(m.ChannelID, response); err != nil {
		c.logger.ErrorW("failed to send response", "error", err)
	}
}

// respond returns the reply to a chat command, or false when content is not
// a command this client knows.
func (c *DefaultDiscord) respond(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, commandPrefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, commandPrefix))
	if len(fields) == 0 {
		return "", false
	}

	switch strings.ToLower(fields[0]) {
	case "peers":
		if c.status == nil {
			return "Coordinator not running.", true
		}
		return formatPeers(c.status.Peers(), c.now()), true
	case "time":
		if c.status == nil {
			return "Coordinator not running.", true
		}
		return formatTime(c.status.Latest(), c.status.LeaderID(), c.status.IsLeader()), true
	case "help":
		return cmdHelp(), true
	}
	return "", false
}

func cmdHelp() string {
	var sb strings.Builder
	sb.WriteString("**Commands**\n")
	sb.WriteString("`!peers` - known peers and the current leader\n")
	sb.WriteString("`!time` - the time this peer last delivered\n")
	sb.WriteString("`!help` - this message")
	return sb.String()
}

func (c *DefaultDiscord) WriteMessage(channelID, msg string) error {
	if c.sender == nil {
		return errors.New("discord session is nil")
	}
	if channelID == "" {
		return errors.New("discord channel is empty")
	}
	_, err := c.sender.ChannelMessageSend(channelID, msg)
	return err
}
