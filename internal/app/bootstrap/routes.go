// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	coordinationfeature "github.com/dalemusser/capstone/internal/app/features/coordination"
	healthfeature "github.com/dalemusser/capstone/internal/app/features/health"
	mentoringfeature "github.com/dalemusser/capstone/internal/app/features/mentoring"
	projectbankfeature "github.com/dalemusser/capstone/internal/app/features/projectbank"
	sessionfeature "github.com/dalemusser/capstone/internal/app/features/session"
	teamsfeature "github.com/dalemusser/capstone/internal/app/features/teams"
	userstore "github.com/dalemusser/capstone/internal/app/store/users"
	"github.com/dalemusser/capstone/internal/app/system/auth"
	"github.com/dalemusser/capstone/internal/app/system/respond"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for the allocation API.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so the services on deps.Runtime are ready.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetJWTSecret(appCfg.JWTSecret)

	// Fresh user data on each request, so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetFetcher(userstore.NewFetcher(deps.MongoDatabase))

	rt := deps.Runtime
	r := chi.NewRouter()

	if len(appCfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   appCfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Loads the caller (bearer token or session cookie) into context.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	sessionHandler := sessionfeature.NewHandler(deps.MongoDatabase, sessionMgr, logger)
	r.Mount("/session", sessionfeature.Routes(sessionHandler, sessionMgr, coreCfg.Env == "dev"))

	// Students form and manage teams
	teamsHandler := teamsfeature.NewHandler(rt.Allocation, logger)
	r.Mount("/teams", teamsfeature.Routes(teamsHandler, sessionMgr))

	// Mentors work through the preference cascade
	mentoringHandler := mentoringfeature.NewHandler(rt.Allocation, logger)
	r.Mount("/mentoring", mentoringfeature.Routes(mentoringHandler, sessionMgr))

	// Administrators approve teams and allocate manually
	coordinationHandler := coordinationfeature.NewHandler(rt.Allocation, logger)
	r.Mount("/coordination", coordinationfeature.Routes(coordinationHandler, sessionMgr))

	projectBankHandler := projectbankfeature.NewHandler(rt.ProjectBank, logger)
	r.Mount("/projectbank", projectbankfeature.Routes(projectBankHandler, sessionMgr))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Status(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Status(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r, nil
}
