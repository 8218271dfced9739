package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleepCtxElapses(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))
}

func TestSleepCtxReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	assert.False(t, sleepCtx(ctx, time.Minute))
	assert.Less(t, time.Since(start), 5*time.Second)
}
