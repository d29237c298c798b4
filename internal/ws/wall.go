package ws

// WallHub streams gallery events (clicks, likes, status flips) so open
// gallery views update without polling. Owners additionally receive
// notices when billing pauses their campaigns.
type WallHub struct {
	*Hub
}

func NewWallHub() *WallHub {
	return &WallHub{Hub: NewHub()}
}

// WallEvent is the broadcast payload for public gallery updates.
type WallEvent struct {
	Type     string  `json:"type"` // ad_clicked | ad_liked | ad_status
	AdID     uint    `json:"ad_id"`
	Clicks   int64   `json:"clicks,omitempty"`
	Likes    int64   `json:"likes,omitempty"`
	Status   string  `json:"status,omitempty"`
	BidScore float64 `json:"bid_score,omitempty"`
}

// OwnerNotice is sent only to an ad owner's connections.
type OwnerNotice struct {
	Type         string `json:"type"` // campaigns_paused
	Reason       string `json:"reason"`
	PausedCount  int64  `json:"paused_count"`
	BalanceCents int64  `json:"balance_cents"`
}

func (w *WallHub) PublishAdClicked(adID uint, clicks int64, score float64) {
	w.BroadcastAll(WallEvent{Type: "ad_clicked", AdID: adID, Clicks: clicks, BidScore: score})
}

func (w *WallHub) PublishAdLiked(adID uint, likes int64) {
	w.BroadcastAll(WallEvent{Type: "ad_liked", AdID: adID, Likes: likes})
}

func (w *WallHub) PublishAdStatus(adID uint, status string) {
	w.BroadcastAll(WallEvent{Type: "ad_status", AdID: adID, Status: status})
}

func (w *WallHub) NotifyOwnerPaused(ownerID uint, pausedCount, balanceCents int64) {
	w.BroadcastToUser(ownerID, OwnerNotice{
		Type:         "campaigns_paused",
		Reason:       "insufficient_funds",
		PausedCount:  pausedCount,
		BalanceCents: balanceCents,
	})
}
