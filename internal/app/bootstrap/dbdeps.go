// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/capstone/internal/app/allocation"
	"github.com/dalemusser/capstone/internal/app/projectbank"
	"github.com/dalemusser/capstone/internal/app/system/notify"
	"github.com/dalemusser/capstone/internal/app/system/ratelimit"
	"github.com/dalemusser/capstone/internal/app/system/tasks"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app. WAFFLE passes
// it by value to every hook, so the services built in Startup hang off
// the shared *Runtime.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Runtime *Runtime
}

// Runtime holds the long-lived services built in Startup and torn down in
// Shutdown.
type Runtime struct {
	Allocation  *allocation.Service
	ProjectBank *projectbank.Service

	// Mail is set when email notifications are enabled.
	Mail        *notify.Mail
	JoinLimiter *ratelimit.Limiter
	Scheduler   *tasks.Scheduler
}
