package websdk

import (
	"context"
	"sync"
)

// scriptLoader shares one in-flight script load between concurrent callers.
// A successful load is remembered forever; a failed load clears the slot so
// a later call may retry.
type scriptLoader struct {
	mu       sync.Mutex
	loaded   bool
	inflight chan struct{}
	result   error
}

func (l *scriptLoader) ensure(ctx context.Context, runtime Runtime, url string) error {
	l.mu.Lock()
	if l.loaded {
		l.mu.Unlock()
		return nil
	}
	if l.inflight != nil {
		// Another caller is loading; wait for its result.
		ch := l.inflight
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.loaded {
			return nil
		}
		return l.result
	}

	ch := make(chan struct{})
	l.inflight = ch
	l.mu.Unlock()

	var err error
	if runtime.SDKPresent() {
		// Already in the global scope, nothing to inject.
		err = nil
	} else {
		err = runtime.InjectScript(ctx, url)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		l.loaded = true
		l.result = nil
	} else {
		l.result = &SDKLoadError{URL: url, Err: err}
	}
	l.inflight = nil
	close(ch)
	return l.result
}
