package redis

import "fmt"

const ns = "seatflow:v1"

func KeyFlightDetails(flightID string) string {
	return fmt.Sprintf("%s:flight:%s:details", ns, flightID)
}

func KeyIdemSubmit(sessionID, idemKey string) string {
	return fmt.Sprintf("%s:idem:submit:%s:%s", ns, sessionID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelFlightsChanged() string {
	return ns + ":flights:changed"
}
