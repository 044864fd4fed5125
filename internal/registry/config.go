package registry

import "time"

const (
	DefaultTTL       = 30 * time.Minute
	DefaultKeyPrefix = "registry:"
)

// Config holds registry settings.
type Config struct {
	TTL       time.Duration `env:"REGISTRY_TTL" envDefault:"30m"`
	KeyPrefix string        `env:"REGISTRY_KEY_PREFIX" envDefault:"registry:"`
}
