package xguard

// envelopeKey returns the Redis key a value envelope is stored under,
// per spec §6: "<cache-name>::<user-key>".
func envelopeKey(cacheName, key string) string {
	return cacheName + "::" + key
}

// envelopePrefix returns the prefix CLEAR scans to enumerate every
// entry belonging to cacheName.
func envelopePrefix(cacheName string) string {
	return cacheName + "::"
}

// refreshLockKey is the conventional distributed-lock identity for a
// pre-refresh job, per spec §6: "<prefix>:<cache-name>::<user-key>:refresh".
func refreshLockKey(prefix, cacheName, key string) string {
	if prefix == "" {
		prefix = "breakdown"
	}
	return prefix + ":" + envelopeKey(cacheName, key) + ":refresh"
}

// evictLockKey is the conventional distributed-lock identity for the
// delayed double-delete, per spec §6: "cache:evict:<cache-name>::<user-key>".
func evictLockKey(cacheName, key string) string {
	return "cache:evict:" + envelopeKey(cacheName, key)
}
