package cfg

type Cfg struct {
	// Digest configuration
	ConfigFile string

	// Storage configuration
	DBPath    string
	RedisAddr string

	// Application configuration
	Port         string
	APIAccessKey string
	SMTPSecret   string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
