package localserver

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/yndnr/chaingate/internal/server/shardserver"
)

// DefaultMode limits the socket to its owner.
const DefaultMode os.FileMode = 0o600

// ErrSocketInUse is returned when another process is serving the path.
var ErrSocketInUse = errors.New("localserver: socket in use")

// Listen binds a Unix socket at path. A stale socket file left by a crashed
// process is removed; a live one is an error. The file is removed again
// when the listener closes. Failures are returned as *shardserver.BindError.
func Listen(path string, mode os.FileMode) (net.Listener, error) {
	if mode == 0 {
		mode = DefaultMode
	}
	if err := removeStale(path); err != nil {
		return nil, &shardserver.BindError{Addr: path, Err: err}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, &shardserver.BindError{Addr: path, Err: err}
	}
	if err := os.Chmod(path, mode); err != nil {
		_ = ln.Close()
		return nil, &shardserver.BindError{Addr: path, Err: fmt.Errorf("chmod: %w", err)}
	}
	return ln, nil
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}
	if c, err := net.DialTimeout("unix", path, 100*time.Millisecond); err == nil {
		_ = c.Close()
		return ErrSocketInUse
	}
	return os.Remove(path)
}
