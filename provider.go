package authflow

import (
	"context"
	"sync"
)

// Provider scopes one Authenticator together with its hub subscription.
// Nested providers reuse the nearest ancestor's authenticator instead of
// creating (and subscribing) a second one.
type Provider struct {
	hub    Hub
	auth   *Authenticator
	parent *Provider

	mu      sync.Mutex
	mounted int
	stop    func()
}

// NewProvider builds a root provider.
func NewProvider(hub Hub, handlers Handlers, opts ...Option) *Provider {
	return &Provider{hub: hub, auth: New(handlers, opts...)}
}

// Nested returns a provider sharing p's authenticator.
func (p *Provider) Nested() *Provider {
	return &Provider{hub: p.hub, auth: p.auth, parent: p.root()}
}

func (p *Provider) root() *Provider {
	for p.parent != nil {
		p = p.parent
	}
	return p
}

// Authenticator returns the shared authenticator.
func (p *Provider) Authenticator() *Authenticator { return p.auth }

// Mount starts the authenticator and subscribes it to the hub. Nested
// providers only bump the root's mount count. The returned function is
// safe to call more than once.
func (p *Provider) Mount(ctx context.Context) (unmount func(), err error) {
	root := p.root()
	if err := root.acquire(ctx); err != nil {
		return func() {}, err
	}
	var once sync.Once
	return func() { once.Do(root.release) }, nil
}

func (p *Provider) acquire(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mounted > 0 {
		p.mounted++
		return nil
	}
	if err := p.auth.Start(ctx); err != nil {
		return err
	}
	p.stop = ListenToHub(p.hub, p.auth)
	p.mounted = 1
	return nil
}

func (p *Provider) release() {
	p.mu.Lock()
	p.mounted--
	if p.mounted > 0 {
		p.mu.Unlock()
		return
	}
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	p.auth.Stop()
}

// Run mounts p for the duration of fn and always unmounts afterwards.
func (p *Provider) Run(ctx context.Context, fn func(ctx context.Context, a *Authenticator) error) error {
	unmount, err := p.Mount(ctx)
	if err != nil {
		return err
	}
	defer unmount()
	return fn(ctx, p.auth)
}
