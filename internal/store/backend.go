package store

// Backend is the injected persistence layer: a flat key/value record
// store. Load returns (nil, nil) for a missing key.
type Backend interface {
	Load(key string) ([]byte, error)
	Save(key string, value []byte) error
	Delete(key string) error
	Close() error
}
