package datarecording

import (
	"sync"

	"github.com/tebeka/atexit"
)

// unflushed holds the recorders atexit.Exit has to flush. One handler serves
// the whole process; closed recorders are removed.
var unflushed = struct {
	sync.Mutex
	once    sync.Once
	writers map[*sqliteWriter]struct{}
}{
	writers: make(map[*sqliteWriter]struct{}),
}

func flushAtExit(w *sqliteWriter) {
	unflushed.once.Do(func() { atexit.Register(flushAll) })

	unflushed.Lock()
	unflushed.writers[w] = struct{}{}
	unflushed.Unlock()
}

func forgetAtExit(w *sqliteWriter) {
	unflushed.Lock()
	delete(unflushed.writers, w)
	unflushed.Unlock()
}

func flushAll() {
	unflushed.Lock()
	writers := make([]*sqliteWriter, 0, len(unflushed.writers))
	for w := range unflushed.writers {
		writers = append(writers, w)
	}
	unflushed.Unlock()

	for _, w := range writers {
		_ = w.Flush()
	}
}
