package app

import (
	"time"

	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-form/config"
	"github.com/mbolis/quick-form/realtime"
	"github.com/mbolis/quick-form/store"
)

// App carries the dependencies every handler is built from.
type App struct {
	store.Store
	*oauth.BearerServer
	config.Config

	Hub     *realtime.Hub
	Tickets *realtime.Tickets
	Guard   *SubmissionGuard

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (app App) Clock() time.Time {
	if app.Now == nil {
		return time.Now()
	}
	return app.Now()
}
