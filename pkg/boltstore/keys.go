package boltstore

// Bucket name constants for bbolt storage.
var (
	bucketMeta     = []byte("meta")
	bucketAccounts = []byte("accounts")
	bucketSnapshot = []byte("snapshot")
)

// Key constants.
var (
	keyCurrent = []byte("current")
	keySavedAt = []byte("savedat")
)
