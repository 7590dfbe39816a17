package process

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLiveness struct {
	dead atomic.Bool
}

func (o *fakeLiveness) Alive() bool {
	return !o.dead.Load()
}

func TestExitCtx_DoneWhenTargetExits(t *testing.T) {
	target := &fakeLiveness{}

	ctx, cancelFn := ExitCtx(context.Background(), target, time.Millisecond)
	defer cancelFn()

	select {
	case <-ctx.Done():
		t.Fatal("context is done while the target is alive")
	case <-time.After(20 * time.Millisecond):
	}

	target.dead.Store(true)

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not marked as done after the target exited")
	}
}

func TestExitCtx_ParentCancellation(t *testing.T) {
	parent, parentCancelFn := context.WithCancel(context.Background())

	ctx, cancelFn := ExitCtx(parent, &fakeLiveness{}, time.Hour)
	defer cancelFn()

	parentCancelFn()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not marked as done after the parent was cancelled")
	}
}
