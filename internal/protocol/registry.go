package protocol

import (
	"context"
	"strings"

	"github.com/protrack-edu/protrack-server/internal/session"
)

// HandlerFunc executes one action. The session is never nil: the dispatcher
// rejects messages from connections without a registered session before any
// handler runs. Handlers return exactly one envelope; expected failures
// (validation, not-found) come back as error envelopes, not Go errors.
type HandlerFunc func(ctx context.Context, sess *session.Session, req *Request) *Envelope

// Field declares a required request parameter and the message returned when
// it is missing. Validation happens once at the dispatcher boundary.
type Field struct {
	Name    string
	Message string
}

// Action binds a wire action name to its authorization policy, declarative
// input schema, and handler.
type Action struct {
	// Name is the wire action name; matching is case-insensitive
	Name string

	// Authenticated requires a logged-in session regardless of role
	Authenticated bool

	// Roles restricts the action to these roles; implies Authenticated
	Roles []string

	// Denied is the uniform authorization error message. It names the
	// operation but never the required role.
	Denied string

	// Required lists parameters validated before the handler runs
	Required []Field

	// Handle executes the action
	Handle HandlerFunc
}

// requiresAuth reports whether the action needs an authenticated session
func (a *Action) requiresAuth() bool {
	return a.Authenticated || len(a.Roles) > 0
}

// deniedMessage returns the authorization error for this action
func (a *Action) deniedMessage() string {
	if a.Denied != "" {
		return a.Denied
	}
	return MsgNotAuthorized
}

// Registry is the static mapping from action name to handler and policy
type Registry struct {
	actions map[string]*Action
}

// NewRegistry creates an empty action registry
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]*Action)}
}

// Register adds an action. Registering a duplicate name panics: the catalog
// is assembled once at startup and a collision is a programming error.
func (r *Registry) Register(a Action) {
	name := strings.ToLower(a.Name)
	if name == "" {
		panic("protocol: action with empty name")
	}
	if _, exists := r.actions[name]; exists {
		panic("protocol: duplicate action " + name)
	}
	r.actions[name] = &a
}

// Resolve looks up an action by its case-insensitive name
func (r *Registry) Resolve(name string) (*Action, bool) {
	a, ok := r.actions[strings.ToLower(name)]
	return a, ok
}

// Names returns the registered action names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}
