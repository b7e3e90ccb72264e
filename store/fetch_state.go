package store

// FetchState records the last completed fetch per resource key. It backs
// the fetch coordinator's TTL enforcement across restarts; the in-flight
// guard itself is process-local. Owned exclusively by the coordinator.
type FetchState struct {
	ResourceKey string
	LastFetchTs int64
	ResultCount int32
}
