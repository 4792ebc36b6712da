package service

import (
	"context"
	"testing"
	"time"

	"github.com/chunkdrive/chunkdrive"
)

type recordingService struct {
	name string
	ran  chan struct{}
}

func (r *recordingService) Name() string { return r.name }

func (r *recordingService) Run(ctx context.Context, global *chunkdrive.Global) error {
	close(r.ran)
	<-ctx.Done()
	return ctx.Err()
}

func TestRegistryRunsEachServiceConcurrently(t *testing.T) {
	a := &recordingService{name: "a", ran: make(chan struct{})}
	b := &recordingService{name: "b", ran: make(chan struct{})}
	reg := NewRegistry(a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, chunkdrive.NewGlobal(nil, 0, 0, ""))
		close(done)
	}()

	select {
	case <-a.ran:
	case <-time.After(time.Second):
		t.Fatal("service a never ran")
	}
	select {
	case <-b.ran:
	case <-time.After(time.Second):
		t.Fatal("service b never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry did not return after cancellation")
	}
}

func TestHTTPPlaceholderReturnsOnCancel(t *testing.T) {
	h := &HTTPPlaceholder{Addr: "localhost:0"}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Run(ctx, nil) }()
	cancel()
	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("expected context.Canceled")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
