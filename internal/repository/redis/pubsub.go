package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// VenuesPubSub announces venues whose occupancy changed on a Redis channel.
// Front ends and other readers outside this service subscribe to it to
// refresh what they render.
type VenuesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewVenuesPubSub(rdb *redis.Client) *VenuesPubSub {
	return &VenuesPubSub{
		rdb:     rdb,
		channel: ChannelVenuesChanged(),
	}
}

type VenueChange struct {
	VenueID string   `json:"venue_id"`
	Months  []string `json:"months"`
	TsUnix  int64    `json:"ts_unix"`
}

type venueChangedMsg struct {
	Type string `json:"type"`
	VenueChange
}

func (p *VenuesPubSub) PublishVenueChanged(ctx context.Context, venueID string, months []string) error {
	msg := venueChangedMsg{
		Type: "venue_changed",
		VenueChange: VenueChange{
			VenueID: venueID,
			Months:  months,
			TsUnix:  time.Now().Unix(),
		},
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}
