// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/capstone/internal/app/system/auditlog"
	"github.com/dalemusser/capstone/internal/app/system/indexes"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the allocation service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CAPSTONE_MONGO_URI, CAPSTONE_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "capstone", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "capstone-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},
	{Name: "jwt_secret", Default: "", Desc: "HS256 secret for bearer tokens (blank disables them)"},
	{Name: "cors_allowed_origins", Default: "", Desc: "Comma-separated origins allowed to call the API"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@capstone.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Capstone Allocation", Desc: "From display name"},
	{Name: "notify_enabled", Default: false, Desc: "Send email notifications on allocation events"},
	{Name: "site_name", Default: "Capstone Allocation", Desc: "Name used in notification subjects"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for links in emails"},

	// Audit logging settings
	{Name: "audit_log_allocation", Default: "all", Desc: "Team/mentoring/allocation event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_projects", Default: "all", Desc: "Project bank event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Capacity defaults
	{Name: "mentor_default_max_teams", Default: models.DefaultMentorMaxTeams, Desc: "Capacity given to mentors registered without one"},
	{Name: "project_default_max_teams", Default: models.DefaultProjectMaxTeams, Desc: "Capacity given to proposals that do not state one"},

	// Housekeeping
	{Name: "project_rejection_retention", Default: "48h", Desc: "How long rejected proposals are kept"},
	{Name: "expiry_sweep_interval", Default: "1h", Desc: "How often expired proposals are swept"},

	// Team codes and joining
	{Name: "teamcode_max_attempts", Default: 1000, Desc: "Draws allowed when generating a unique team code"},
	{Name: "join_rate_limit", Default: 20, Desc: "Join attempts allowed per student per join_rate_window"},
	{Name: "join_rate_window", Default: "1m", Desc: "Window for join_rate_limit"},

	// Administrator bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of an administrator to create on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env, config files,
// CAPSTONE_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CAPSTONE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:         appValues.String("session_key"),
		SessionName:        appValues.String("session_name"),
		SessionDomain:      appValues.String("session_domain"),
		SessionMaxAge:      appValues.Duration("session_max_age", 24*time.Hour),
		JWTSecret:          appValues.String("jwt_secret"),
		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),

		MailSMTPHost:  appValues.String("mail_smtp_host"),
		MailSMTPPort:  appValues.Int("mail_smtp_port"),
		MailSMTPUser:  appValues.String("mail_smtp_user"),
		MailSMTPPass:  appValues.String("mail_smtp_pass"),
		MailFrom:      appValues.String("mail_from"),
		MailFromName:  appValues.String("mail_from_name"),
		NotifyEnabled: appValues.Bool("notify_enabled"),
		SiteName:      appValues.String("site_name"),
		BaseURL:       appValues.String("base_url"),

		AuditLogAllocation: appValues.String("audit_log_allocation"),
		AuditLogProjects:   appValues.String("audit_log_projects"),

		MentorDefaultMaxTeams:  appValues.Int("mentor_default_max_teams"),
		ProjectDefaultMaxTeams: appValues.Int("project_default_max_teams"),

		ProjectRejectionRetention: appValues.Duration("project_rejection_retention", indexes.DefaultRejectionRetention),
		ExpirySweepInterval:       appValues.Duration("expiry_sweep_interval", time.Hour),

		TeamCodeMaxAttempts: appValues.Int("teamcode_max_attempts"),
		JoinRateLimit:       appValues.Int("join_rate_limit"),
		JoinRateWindow:      appValues.Duration("join_rate_window", time.Minute),

		AdminEmail: appValues.String("admin_email"),
	}
	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before connecting; capacities, windows and
// audit destinations are checked so that a typo fails startup instead of
// silently changing allocation behaviour.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	var problems []string
	if strings.TrimSpace(appCfg.SessionKey) == "" {
		problems = append(problems, "session_key must be set")
	}
	if appCfg.MentorDefaultMaxTeams <= 0 {
		problems = append(problems, "mentor_default_max_teams must be positive")
	}
	if appCfg.ProjectDefaultMaxTeams <= 0 {
		problems = append(problems, "project_default_max_teams must be positive")
	}
	if appCfg.ProjectRejectionRetention <= 0 {
		problems = append(problems, "project_rejection_retention must be positive")
	}
	if appCfg.ExpirySweepInterval <= 0 {
		problems = append(problems, "expiry_sweep_interval must be positive")
	}
	if appCfg.TeamCodeMaxAttempts <= 0 {
		problems = append(problems, "teamcode_max_attempts must be positive")
	}
	if appCfg.JoinRateLimit < 0 || appCfg.JoinRateWindow <= 0 {
		problems = append(problems, "join_rate_limit must not be negative and join_rate_window must be positive")
	}
	for _, kv := range [][2]string{
		{"audit_log_allocation", appCfg.AuditLogAllocation},
		{"audit_log_projects", appCfg.AuditLogProjects},
	} {
		switch kv[1] {
		case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			problems = append(problems, fmt.Sprintf("%s must be all, db, log or off (got %q)", kv[0], kv[1]))
		}
	}
	if appCfg.NotifyEnabled && appCfg.MailFrom == "" {
		problems = append(problems, "notify_enabled requires mail_from")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
