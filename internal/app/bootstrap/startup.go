// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/capstone/internal/app/allocation"
	"github.com/dalemusser/capstone/internal/app/projectbank"
	"github.com/dalemusser/capstone/internal/app/store/audit"
	projectstore "github.com/dalemusser/capstone/internal/app/store/projects"
	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/auditlog"
	"github.com/dalemusser/capstone/internal/app/system/mailer"
	"github.com/dalemusser/capstone/internal/app/system/notify"
	"github.com/dalemusser/capstone/internal/app/system/ratelimit"
	"github.com/dalemusser/capstone/internal/app/system/tasks"
	"github.com/dalemusser/capstone/internal/app/system/teamcode"
	"github.com/dalemusser/capstone/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup builds the services shared by every handler and starts the
// housekeeping scheduler. It runs after the schema is in place.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	rt := deps.Runtime

	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Allocation:  appCfg.AuditLogAllocation,
		ProjectBank: appCfg.AuditLogProjects,
	})

	var notifier notify.Notifier = notify.Nop{}
	if appCfg.NotifyEnabled {
		m := mailer.New(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
		rt.Mail = notify.NewMail(m, userstore.New(db), appCfg.SiteName, appCfg.BaseURL, logger)
		notifier = rt.Mail
		logger.Info("email notifications enabled", zap.String("smtp_host", appCfg.MailSMTPHost))
	}

	if appCfg.JoinRateLimit > 0 {
		rt.JoinLimiter = ratelimit.New(appCfg.JoinRateLimit, appCfg.JoinRateWindow)
	}

	rt.Allocation = allocation.New(db, logger, allocation.Options{
		Audit:                 auditLog,
		Notifier:              notifier,
		Codes:                 teamcode.New(appCfg.TeamCodeMaxAttempts),
		JoinLimiter:           rt.JoinLimiter,
		DefaultMentorMaxTeams: appCfg.MentorDefaultMaxTeams,
	})
	rt.ProjectBank = projectbank.New(db, logger, auditLog, notifier, appCfg.ProjectDefaultMaxTeams)
	rt.ProjectBank.RejectionRetention = appCfg.ProjectRejectionRetention

	if err := ensureAdmin(ctx, userstore.New(db), appCfg.AdminEmail, logger); err != nil {
		return err
	}

	rt.Scheduler = tasks.NewScheduler(logger)
	rt.Scheduler.Add(tasks.ProjectExpiryJob(projectstore.New(db), auditLog, logger,
		appCfg.ProjectRejectionRetention, appCfg.ExpirySweepInterval))
	rt.Scheduler.Start(context.Background())
	return nil
}

// ensureAdmin creates an administrator for email when none exists. An
// existing account with another role is left alone.
func ensureAdmin(ctx context.Context, users *userstore.Store, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role != models.RoleAdmin {
			logger.Warn("admin_email belongs to a non-administrator; not promoting",
				zap.String("email", email), zap.String("role", u.Role))
		}
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return err
	}

	created, err := users.Create(ctx, models.User{FullName: "Administrator", Email: email, Role: models.RoleAdmin}, 0)
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("created administrator", zap.String("email", created.Email))
	return nil
}
