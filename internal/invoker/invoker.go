// Package invoker is the goroutine spawn/join helper used by tests and
// demos that need to run two drivers concurrently, adapted from the
// Spawn/Stop shape of a teacher distributed-protocol codebase's
// TestInvoker. It is scaffolding, not a kernel dependency — the kernel
// itself imposes no scheduler.
package invoker

import "sync"

// Invoker runs functions on their own goroutine and can later wait for
// all of them to finish.
type Invoker interface {
	Spawn(f func())
	Wait()
}

type waitGroupInvoker struct {
	group sync.WaitGroup
}

// New returns an Invoker backed by a sync.WaitGroup.
func New() Invoker {
	return &waitGroupInvoker{}
}

func (i *waitGroupInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

func (i *waitGroupInvoker) Wait() {
	i.group.Wait()
}
