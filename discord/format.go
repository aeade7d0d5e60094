package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/virgil28labs/timesync/models"
)

// Discord ANSI escape codes for code blocks
const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiGray   = "\033[90m"
)

// quietAfter marks a peer gray in !peers when it has not been heard from
// for this long. It is well under the staleness threshold.
const quietAfter = 5 * time.Second

func formatAlert(ev models.SyncEvent) (string, bool) {
	switch ev.Kind {
	case models.EventLeaderChanged:
		if ev.LeaderID == "" {
			return "", false
		}
		if ev.Detail == "" {
			return fmt.Sprintf(":crown: `%s` elected leader (%d peers)", ev.LeaderID, ev.Peers), true
		}
		return fmt.Sprintf(":crown: leader moved from `%s` to `%s` (%d peers)", ev.Detail, ev.LeaderID, ev.Peers), true
	case models.EventPeerLost:
		return fmt.Sprintf(":ghost: peer `%s` went silent and was dropped", ev.PeerID), true
	case models.EventDriftCorrected:
		if ev.Detail != "local" {
			return "", false
		}
		return fmt.Sprintf(":warning: `%s` corrected a clock jump of %s", ev.PeerID, ev.Drift.Round(time.Millisecond)), true
	}
	return "", false
}

func formatPeers(peers []models.PeerRecord, now time.Time) string {
	if len(peers) == 0 {
		return "No peers known."
	}

	maxID := 0
	for _, p := range peers {
		if len(p.ID) > maxID {
			maxID = len(p.ID)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Peers (%d)**\n```ansi\n", len(peers)))
	for _, p := range peers {
		color, role := ansiReset, "follower"
		switch {
		case p.IsLeader:
			color, role = ansiGreen, "leader"
		case now.Sub(p.LastSeenAt) > quietAfter:
			color = ansiGray
		}
		ago := now.Sub(p.LastSeenAt).Round(time.Second)
		if ago < 0 {
			ago = 0
		}
		sb.WriteString(fmt.Sprintf("%s%-*s  %-8s  %s ago%s\n", color, maxID, p.ID, role, ago, ansiReset))
	}
	sb.WriteString("```")
	return sb.String()
}

func formatTime(u models.TimeUpdate, leaderID string, isLeader bool) string {
	source := fmt.Sprintf("following `%s`", leaderID)
	if isLeader {
		source = "leading"
	}
	return fmt.Sprintf("```ansi\n%s%s%s\n%s\n```%s", ansiYellow, u.CurrentTimeText, ansiReset, u.CurrentDateText, source)
}
