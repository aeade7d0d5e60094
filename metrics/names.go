package metrics

const (
	IsLeaderH = "Whether this peer currently leads (1) or follows (0)"
	IsLeaderN = "timesync_is_leader"
	PeersH    = "The number of known peers, including self"
	PeersN    = "timesync_peers"

	LastDriftH          = "The most recently corrected clock drift in seconds"
	LastDriftN          = "timesync_last_drift_seconds"
	DriftCorrectionsH   = "The total number of drift corrections delivered to subscribers"
	DriftCorrectionsN   = "timesync_drift_corrections_total"
	LeaderChangesH      = "The total number of leader changes observed by this peer"
	LeaderChangesN      = "timesync_leader_changes_total"
	PeersJoinedH        = "The total number of peers seen for the first time"
	PeersJoinedN        = "timesync_peers_joined_total"
	PeersLostH          = "The total number of peers pruned as stale"
	PeersLostN          = "timesync_peers_lost_total"
	MessagesSentH       = "The total number of messages sent, by kind"
	MessagesSentN       = "timesync_messages_sent_total"
	MessagesReceivedH   = "The total number of messages received, by kind"
	MessagesReceivedN   = "timesync_messages_received_total"
	SendFailuresH       = "The total number of messages the transport failed to send"
	SendFailuresN       = "timesync_send_failures_total"
	SyncRejectedH       = "The total number of TIME_SYNC messages rejected"
	SyncRejectedN       = "timesync_sync_rejected_total"
	SyncLatencySecondsH = "The magnitude of the estimated one-way latency of applied TIME_SYNC messages"
	SyncLatencySecondsN = "timesync_sync_latency_seconds"

	UpdatesDeliveredH  = "The total number of time updates delivered to local subscribers"
	UpdatesDeliveredN  = "timesync_updates_delivered_total"
	LastUpdateSecondsH = "The instant carried by the most recent time update, in Unix seconds"
	LastUpdateSecondsN = "timesync_last_update_timestamp_seconds"
)
