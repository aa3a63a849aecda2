// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// ports, TLS, log level and request limits; everything specific to team
// allocation lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Identity
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: capstone-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration
	JWTSecret     string // Enables bearer tokens for API clients when set

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty disables CORS handling.
	CORSAllowedOrigins []string

	// Email/SMTP configuration
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// NotifyEnabled turns on email notifications. Off uses notify.Nop.
	NotifyEnabled bool
	SiteName      string
	BaseURL       string // used for links in notification emails

	// Audit logging destinations: all | db | log | off
	AuditLogAllocation string
	AuditLogProjects   string

	// Capacity defaults
	MentorDefaultMaxTeams  int
	ProjectDefaultMaxTeams int

	// Housekeeping
	ProjectRejectionRetention time.Duration
	ExpirySweepInterval       time.Duration

	// Team codes and joining
	TeamCodeMaxAttempts int
	JoinRateLimit       int           // join attempts allowed per JoinRateWindow
	JoinRateWindow      time.Duration // window for JoinRateLimit

	// AdminEmail names an administrator created on startup if missing.
	AdminEmail string
}
