// Package directory resolves symbolic names to callable component references.
//
// Every bound component is reachable under three scopes:
//
//	global:[app/]module/component[!view]
//	app:module/component[!view]
//	module:component[!view]
//
// The optional view suffix selects one of the component's declared views. Without
// it the first declared view is used, or an unrestricted one when none exist.
package directory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/session"
)

// Scope prefixes
const (
	ScopeGlobal = "global"
	ScopeApp    = "app"
	ScopeModule = "module"
)

// Backend performs the calls a Reference makes
type Backend interface {
	Invoke(ctx context.Context, name string, key session.Key, op string, args component.Args) (any, error)
	CreateSession(ctx context.Context, name string) (session.Key, error)
	SessionStatus(key session.Key) session.Status
}

// Directory maps names to component definitions
type Directory struct {
	app     string
	module  string
	backend Backend

	mu      sync.RWMutex
	entries map[string]*component.Definition
}

// New creates an empty directory for one application module
func New(app, module string, backend Backend) *Directory {
	return &Directory{
		app:     app,
		module:  module,
		backend: backend,
		entries: make(map[string]*component.Definition),
	}
}

// Names returns the three names def is bound under, without view suffix
func (d *Directory) Names(component string) []string {
	global := ScopeGlobal + ":" + d.module + "/" + component
	if d.app != "" {
		global = ScopeGlobal + ":" + d.app + "/" + d.module + "/" + component
	}
	return []string{
		global,
		ScopeApp + ":" + d.module + "/" + component,
		ScopeModule + ":" + component,
	}
}

// Bind publishes def under all scopes
func (d *Directory) Bind(def *component.Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range d.Names(def.Name) {
		d.entries[name] = def
	}
}

// List returns every bound name, including one per declared view, sorted
func (d *Directory) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	for name, def := range d.entries {
		out = append(out, name)
		for _, v := range def.Views {
			out = append(out, name+"!"+v.Name)
		}
	}
	slices.Sort(out)
	return out
}

// Lookup resolves name. Each lookup of a stateful component yields a reference
// with its own session, created on first use.
func (d *Directory) Lookup(name string) (*Reference, error) {
	path, viewName, _ := strings.Cut(strings.TrimSpace(name), "!")

	d.mu.RLock()
	def, ok := d.entries[path]
	d.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrNameNotFound, "%s", name)
	}

	view, ok := def.View(viewName)
	if !ok {
		return nil, errors.Newf(errors.ErrNameNotFound, "%s: %s has no view %q", name, def.Name, viewName)
	}
	return &Reference{name: name, def: def, view: view, backend: d.backend}, nil
}

// Reference is a callable handle to a component through one view
type Reference struct {
	name    string
	def     *component.Definition
	view    component.View
	backend Backend

	mu  sync.Mutex
	key session.Key
}

// Name returns the name the reference was looked up with
func (r *Reference) Name() string { return r.name }

// Component returns the referenced component's name
func (r *Reference) Component() string { return r.def.Name }

// Kind returns the referenced component's kind
func (r *Reference) Kind() component.Kind { return r.def.Kind }

// View returns the view this reference is restricted to
func (r *Reference) View() component.View { return r.view }

// SessionKey returns the session of a stateful reference, empty before first use
func (r *Reference) SessionKey() session.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

// Attach binds the reference to an existing session instead of creating one
func (r *Reference) Attach(key session.Key) error {
	if r.def.Kind != component.Stateful {
		return errors.Newf(errors.ErrWrongKind, "%s is %s, sessions need a stateful component", r.def.Name, r.def.Kind)
	}
	if st := r.backend.SessionStatus(key); st.Component != "" && st.Component != r.def.Name {
		return errors.Newf(errors.ErrNoSuchSession, "%s has no session %s", r.def.Name, key)
	}
	r.mu.Lock()
	r.key = key
	r.mu.Unlock()
	return nil
}

// Invoke calls op through the reference's view
func (r *Reference) Invoke(ctx context.Context, op string, args component.Args) (any, error) {
	if !r.view.Allows(op) {
		return nil, errors.Newf(errors.ErrOperationNotInView, "%s.%s via %s", r.def.Name, op, r.name)
	}

	var key session.Key
	if r.def.Kind == component.Stateful {
		r.mu.Lock()
		if r.key == "" {
			k, err := r.backend.CreateSession(ctx, r.def.Name)
			if err != nil {
				r.mu.Unlock()
				return nil, err
			}
			r.key = k
		}
		key = r.key
		r.mu.Unlock()
	}
	return r.backend.Invoke(ctx, r.def.Name, key, op, args)
}
