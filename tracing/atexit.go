package tracing

import (
	"io"
	"sync"

	"github.com/tebeka/atexit"
)

// openFiles tracks the trace outputs that atexit.Exit still has to close. A
// single handler is registered for the whole process and outputs leave the
// set as soon as they are closed.
var openFiles = struct {
	sync.Mutex
	once    sync.Once
	closers map[io.Closer]struct{}
}{
	closers: make(map[io.Closer]struct{}),
}

func closeAtExit(c io.Closer) {
	openFiles.once.Do(func() { atexit.Register(closeOpenFiles) })

	openFiles.Lock()
	openFiles.closers[c] = struct{}{}
	openFiles.Unlock()
}

func forgetAtExit(c io.Closer) {
	openFiles.Lock()
	delete(openFiles.closers, c)
	openFiles.Unlock()
}

func closeOpenFiles() {
	openFiles.Lock()
	closers := make([]io.Closer, 0, len(openFiles.closers))
	for c := range openFiles.closers {
		closers = append(closers, c)
	}
	openFiles.Unlock()

	for _, c := range closers {
		_ = c.Close()
	}
}
