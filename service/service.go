// Package service defines the long-running front-end boundary: a Service
// is started at boot and runs for the lifetime of the process, the same
// "build Global, then range over configured extras and start them" shape
// as the teacher's cmd/utahfs-server/main.go boot sequence. Concrete
// front-ends (an HTTP API, an interactive shell) live outside this repo;
// this package only owns the dispatch interface and the registry that
// spawns each configured service on its own goroutine.
package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chunkdrive/chunkdrive"
)

// Service is a long-running unit started at boot. Run blocks until ctx is
// canceled or the service fails; services do not communicate with one
// another, and reach the rest of the system only through global.
type Service interface {
	Name() string
	Run(ctx context.Context, global *chunkdrive.Global) error
}

// Registry holds the set of services configured for one process and spawns
// each on its own goroutine.
type Registry struct {
	services []Service
}

// NewRegistry builds a Registry over services, in the order given.
func NewRegistry(services ...Service) *Registry {
	return &Registry{services: services}
}

// Run spawns every registered service on its own goroutine and blocks until
// all of them return. A service's error is logged, not propagated --
// one failing service does not bring down the others, matching the
// source's "services do not communicate with one another through the
// core" isolation.
func (r *Registry) Run(ctx context.Context, global *chunkdrive.Global) {
	var wg sync.WaitGroup
	for _, svc := range r.services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			if err := svc.Run(ctx, global); err != nil {
				log.Printf("service %s exited: %v", svc.Name(), err)
			}
		}(svc)
	}
	wg.Wait()
}

// HTTPPlaceholder is the one concrete ServiceType this repo wires: it owns
// no routes and exists only so Global/Registry wiring is complete and
// testable end to end. A real HTTP front-end is outside this repo's scope.
type HTTPPlaceholder struct {
	Addr string
}

func (h *HTTPPlaceholder) Name() string { return fmt.Sprintf("http(%s)", h.Addr) }

// Run blocks until ctx is canceled. It never listens on Addr -- routing is
// the excluded front-end's job.
func (h *HTTPPlaceholder) Run(ctx context.Context, global *chunkdrive.Global) error {
	<-ctx.Done()
	return ctx.Err()
}

var _ Service = (*HTTPPlaceholder)(nil)
