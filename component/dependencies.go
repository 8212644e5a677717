package component

import (
	"log/slog"

	"github.com/c360/beancontainer/datastore"
)

// Dependencies is everything a factory may wire into an instance.
// Every field may be nil; factories reject what they cannot run without.
type Dependencies struct {
	Logger     *slog.Logger        // structured logger, defaults to slog.Default()
	Store      datastore.DataStore // records shared by all components
	Env        Env                 // environment entries from configuration
	Singletons Invoker             // calls into other singletons
}

// GetLogger returns the configured logger or the default logger
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns the logger tagged with the component name
func (d *Dependencies) GetLoggerWithComponent(name string) *slog.Logger {
	return d.GetLogger().With("component", name)
}
