// Package pipeio relays data between two connections until either side
// closes, which is how proxy handlers tie a local client to its tunnel
// stream.
package pipeio

import (
	"fmt"
	"io"
	"sync"
)

// Pipe copies in both directions between rwc1 and rwc2. When either copy
// ends, both ends are closed, which unblocks the other copy. Pipe returns
// once the first direction has finished; logfunc receives any copy error.
func Pipe(rwc1 io.ReadWriteCloser, rwc2 io.ReadWriteCloser, logfunc func(error)) {
	var wg sync.WaitGroup
	var o sync.Once

	close := func() {
		rwc1.Close()
		rwc2.Close()

		wg.Done()
	}
	wg.Add(1)

	go func() {
		var err error
		_, err = io.Copy(rwc1, rwc2)
		if err != nil {
			logfunc(fmt.Errorf("io.Copy(rwc1, rwc2): %s", err))
		}

		o.Do(close)
	}()

	go func() {
		var err error
		_, err = io.Copy(rwc2, rwc1)
		if err != nil {
			logfunc(fmt.Errorf("io.Copy(rwc2, rwc1): %s", err))
		}

		o.Do(close)
	}()

	wg.Wait()
}
