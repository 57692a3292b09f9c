// Package service defines the long-running unit of the crawl
// application and a group runner that executes several of them in
// parallel, such as one crawl controller per browser session.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Service describes a long-running component of the crawl application.
type Service interface {
	// Name returns the name of the service.
	Name() string

	// Run executes the service and blocks until its work runs out, the
	// context gets cancelled or an error occurs.
	Run(context.Context) error
}

// Group is a list of Service instances that can execute in parallel.
type Group []Service

// Execute runs all Service instances in the group using the provided
// context. It blocks until all services have completed executing,
// either cleanly (a crawl session returns nil once the frontier
// drains), because the context was cancelled, or because any of the
// services reported an error, which cancels the remaining ones.
func (g Group) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	executionCtx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	var wg sync.WaitGroup
	wg.Add(len(g))
	errChan := make(chan error, len(g))

	for _, s := range g {
		go func(s Service) {
			defer wg.Done()

			if err := s.Run(executionCtx); err != nil {
				errChan <- fmt.Errorf("%s: %w", s.Name(), err)

				cancelFn()
			}
		}(s)
	}

	// Wait for all spawned service go-routines to exit. Services finish
	// on their own when their work runs out, so group completion is
	// signalled by the wait group draining, not by context cancellation.
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	<-doneChan

	// Collect and accumulate any reported errors.
	var err error
	close(errChan)

	for srvErr := range errChan {
		err = multierror.Append(err, srvErr)
	}

	return err
}
