package usecases

// Session storage keys. The names match the ones the browser client used so
// exported session dumps stay readable.
const (
	labelKeyPrefix = "tower_label_"
	numberMapKey   = "gw_tower_index_map_v1"
)

// sessionKey namespaces key under sessionID. An empty session maps to the bare key.
func sessionKey(sessionID, key string) string {
	if sessionID == "" {
		return key
	}
	return "session:" + sessionID + ":" + key
}

// LabelKey returns the store key holding the cached label of zoneID.
func LabelKey(sessionID, zoneID string) string {
	return sessionKey(sessionID, labelKeyPrefix+zoneID)
}

// NumberMapKey returns the store key holding the zone-number map of a session.
func NumberMapKey(sessionID string) string {
	return sessionKey(sessionID, numberMapKey)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
