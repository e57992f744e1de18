// Package diag provides the process-wide diagnostic logger.
//
// Output always goes to stderr (stdout is reserved for the MCP JSON-RPC
// stream); RPC mode suppresses it entirely so a protocol peer never sees a
// stray line interleaved with a response.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	rpcMode bool
)

// SetRPCMode suppresses diagnostic output once the process is serving the
// stdio JSON-RPC protocol, where stdout/stderr framing must stay clean.
func SetRPCMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	rpcMode = enabled
}

// SetOutput overrides the destination writer, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Log writes a component-tagged diagnostic line, e.g. Log("index", "built %d files", n).
func Log(component, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if rpcMode || out == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(out, "[%s] [%s] "+format+"\n", append([]interface{}{ts, component}, args...)...)
}

// Build-tagged convenience wrappers, mirroring the teacher's per-subsystem helpers.
func Index(format string, args ...interface{}) { Log("index", format, args...) }
func Watch(format string, args ...interface{}) { Log("watch", format, args...) }
func RPC(format string, args ...interface{})   { Log("rpc", format, args...) }
