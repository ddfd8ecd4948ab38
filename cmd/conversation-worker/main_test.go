package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

type blockingWaiter struct {
	release chan struct{}
}

func (b blockingWaiter) Wait() { <-b.release }

func TestRunRequiresQueueURL(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	err := run(context.Background(), &appconfig.Config{}, logger)
	if !errors.Is(err, errNoQueueURL) {
		t.Fatalf("expected errNoQueueURL, got %v", err)
	}
}

func TestWaitForDrain(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)

	done := blockingWaiter{release: make(chan struct{})}
	close(done.release)
	if err := waitForDrain(done, time.Second, logger); err != nil {
		t.Fatalf("expected clean drain, got %v", err)
	}

	stuck := blockingWaiter{release: make(chan struct{})}
	defer close(stuck.release)
	if err := waitForDrain(stuck, 10*time.Millisecond, logger); err == nil {
		t.Fatal("expected timeout error")
	}
}
