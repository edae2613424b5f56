package ngpas

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry tracks exclusive session ownership per gateway endpoint. The wire
// protocol tolerates exactly one client conversation per PED, so hosts
// dispatching from multiple goroutines acquire the endpoint before building
// an engine on it and release it when the transaction flow is done.
type Registry struct {
	sessions *xsync.MapOf[string, *Session]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: xsync.NewMapOf[string, *Session](),
	}
}

// Acquire records session as the owner of its endpoint. It fails with
// ErrEndpointBusy when another session already holds it.
func (r *Registry) Acquire(session *Session) error {
	endpoint := session.cfg.Endpoint()

	if _, loaded := r.sessions.LoadOrStore(endpoint, session); loaded {
		return ErrEndpointBusy
	}

	return nil
}

// Release removes the ownership record for endpoint. Releasing an endpoint
// that is not held is a no-op.
func (r *Registry) Release(endpoint string) {
	r.sessions.Delete(endpoint)
}

// Get returns the session currently owning endpoint, if any.
func (r *Registry) Get(endpoint string) (*Session, bool) {
	return r.sessions.Load(endpoint)
}

// Size returns the number of endpoints currently held.
func (r *Registry) Size() int {
	return r.sessions.Size()
}
