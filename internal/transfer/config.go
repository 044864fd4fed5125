package transfer

import "time"

const (
	DefaultTTL       = 300 * time.Second
	DefaultKeyPrefix = "transfer:token:"
	// keyPurpose binds derived keys to this use of the configured secret.
	keyPurpose = "handoff/transfer-token/v1"
)

// Config holds token settings.
type Config struct {
	Secret    string        `env:"TRANSFER_TOKEN_SECRET"`
	TTL       time.Duration `env:"TRANSFER_TOKEN_TTL" envDefault:"300s"`
	QRSize    int           `env:"TRANSFER_QR_SIZE" envDefault:"256"`
	KeyPrefix string        `env:"TRANSFER_KEY_PREFIX" envDefault:"transfer:token:"`
}
