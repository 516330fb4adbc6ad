package redis

import "fmt"

const ns = "venuehold:v1"

func KeyVenueCalendar(venueID, month string) string {
	return fmt.Sprintf("%s:venue:%s:calendar:%s", ns, venueID, month)
}

func KeyIdemHold(venueID, owner, idemKey string) string {
	return fmt.Sprintf("%s:idem:holds:%s:%s:%s", ns, venueID, owner, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelVenuesChanged() string {
	return ns + ":venues:changed"
}
