package handoff

const (
	DefaultMobileLimit = 3
	DefaultKioskLimit  = 8
)

// Config holds coordinator settings.
type Config struct {
	MobileLimit int `env:"HANDOFF_MOBILE_LIMIT" envDefault:"3"`
	KioskLimit  int `env:"HANDOFF_KIOSK_LIMIT" envDefault:"8"`
}
