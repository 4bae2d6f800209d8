package config

const (
	defaultDataDir                = "~/.local/share/bookclub"
	defaultLogDir                 = "~/.local/share/bookclub/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultMaxMembers             = 6
	defaultGroupDurationDays      = 30
	defaultMaxMessageLength       = 1000
	defaultMessagePageSize        = 50
	defaultAlmostReadyMin         = 2
	defaultAlmostReadyLimit       = 20
	defaultBookPageSize           = 20
	defaultNotifyRequestTimeout   = 10
	defaultNotifyBreakerFailures  = 5
	defaultNotifyBreakerCooldown  = 60
	defaultNtfyBaseURL            = "https://ntfy.sh"
	defaultEnvFile                = ".env"
	minGroupMembers               = 3
	maxGroupMembers               = 10
	maxMessageLengthCeiling       = 4000
	defaultCORSOrigin             = "http://localhost:3000"
	defaultRequireProgressMembers = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
			EnvFile: defaultEnvFile,
		},
		Groups: Groups{
			MaxMembers:   defaultMaxMembers,
			DurationDays: defaultGroupDurationDays,
		},
		Interaction: Interaction{
			MaxMessageLength:             defaultMaxMessageLength,
			MessagePageSize:              defaultMessagePageSize,
			RequireMembershipForProgress: defaultRequireProgressMembers,
		},
		Catalog: Catalog{
			AlmostReadyMin:   defaultAlmostReadyMin,
			AlmostReadyLimit: defaultAlmostReadyLimit,
			PageSize:         defaultBookPageSize,
		},
		API: API{
			CORSAllowedOrigins: []string{defaultCORSOrigin},
		},
		Notifications: Notifications{
			BaseURL:             defaultNtfyBaseURL,
			RequestTimeout:      defaultNotifyRequestTimeout,
			GroupFormed:         true,
			MemberLeft:          true,
			DiscussionCompleted: true,
			GroupClosed:         true,
			BreakerFailures:     defaultNotifyBreakerFailures,
			BreakerCooldown:     defaultNotifyBreakerCooldown,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
