// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	t.Run("first runner to finish stops the others", func(t *testing.T) {
		job := &mockRunShutdownService{
			mockService: mockService{name: "job"},
			runFn:       func(ctx context.Context) error { return nil },
		}
		blocker := &mockRunShutdownService{
			mockService: mockService{name: "blocker"},
			runFn: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}

		err := Run(context.Background(), discardLogger(), []Service{job, blocker, &mockService{name: "plain"}})

		assert.NoError(t, err)
		assert.Equal(t, 1, job.shutdowns())
		assert.Equal(t, 1, blocker.shutdowns())
	})

	t.Run("runner error is returned", func(t *testing.T) {
		runErr := errors.New("run error")
		shutdownErr := errors.New("shutdown error")

		failing := &mockRunShutdownService{
			mockService: mockService{name: "failing"},
			runFn:       func(ctx context.Context) error { return runErr },
			shutdownFn:  func() error { return shutdownErr },
		}
		blocker := &mockRunner{
			mockService: mockService{name: "blocker"},
			runFn: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}

		err := Run(context.Background(), discardLogger(), []Service{failing, blocker})

		assert.ErrorIs(t, err, runErr)
		assert.NotErrorIs(t, err, shutdownErr)
		assert.Equal(t, 1, failing.shutdowns())
	})

	t.Run("outer context cancellation stops all services", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		started := make(chan struct{}, 2)
		block := func(ctx context.Context) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		}
		svc1 := &mockRunShutdownService{mockService: mockService{name: "svc1"}, runFn: block}
		svc2 := &mockRunShutdownService{mockService: mockService{name: "svc2"}, runFn: block}

		errCh := make(chan error)
		go func() {
			errCh <- Run(ctx, discardLogger(), []Service{svc1, svc2})
		}()

		<-started
		<-started
		cancel()

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("Run did not return after context cancellation")
		}
	})

	t.Run("no runners", func(t *testing.T) {
		assert.NoError(t, Run(context.Background(), nil, []Service{&mockService{name: "plain"}}))
	})
}
