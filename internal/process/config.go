package process

import "time"

// Config is the immutable launch descriptor for a server subprocess. It
// mirrors spec §3's ServerConfig; internal/config decodes it from JSON and
// hands it down unmodified.
type Config struct {
	Name                 string
	Command              string
	Args                 []string
	Cwd                  string
	Env                  map[string]string
	StartupTimeout       time.Duration
	RequestTimeout       time.Duration
	PostInitializeDelay  time.Duration
	ReadyPattern         string // regex over stderr signaling readiness; empty means "ready immediately"
	ClientName           string
	ClientVersion        string
	RequestsPerSecond    float64 // caps outbound test requests against this server; 0 means unlimited
}
