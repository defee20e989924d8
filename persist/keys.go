package persist

// Namespace prefixes mirror make_map_stored_key/make_list_stored_key from
// the original: session records live in the map- namespace, queued
// offline messages in the list- namespace. Each backend gives the two
// families their own store.Store instance carrying one of these as its
// key prefix, so a single physical database can hold both without key
// collisions.
const (
	sessionPrefix = "map-"
	offlinePrefix = "list-"
)
