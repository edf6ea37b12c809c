package wire

import (
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/codetracer/replay-core/corekit"
)

// SocketPaths names the five well-known local stream sockets the core
// listens on, relative to a process-scoped tmp dir (§6 "Local transport").
type SocketPaths struct {
	// Control is ct_socket: the core's own dispatcher control channel,
	// used by in-process services.
	Control string
	// Client is ct_client_socket: the UI client channel.
	Client string
	// DAP is ct_dap_socket: the debug-adapter protocol bridge.
	DAP string
	// IPC is ct_ipc: shell capture <-> core events.
	IPC string
	// Plugin is codetracer_plugin_socket: the optional plugin host.
	Plugin string
}

// DefaultSocketPaths returns the five standard socket names joined under
// dir, the layout the CLI's --socket/--dap-socket flags override pieces of
// (§10.3).
func DefaultSocketPaths(dir string) SocketPaths {
	return SocketPaths{
		Control: filepath.Join(dir, "ct_socket"),
		Client:  filepath.Join(dir, "ct_client_socket"),
		DAP:     filepath.Join(dir, "ct_dap_socket"),
		IPC:     filepath.Join(dir, "ct_ipc"),
		Plugin:  filepath.Join(dir, "codetracer_plugin_socket"),
	}
}

// All returns the five paths as a slice, for iterating when standing up or
// tearing down listeners.
func (p SocketPaths) All() []string {
	return []string{p.Control, p.Client, p.DAP, p.IPC, p.Plugin}
}

// Listen binds a Unix domain socket at path, removing a stale socket file
// left behind by an unclean previous exit first. A bind failure here is
// what the CLI surface reports as exit code 3 (§6).
func Listen(path string) (net.Listener, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, corekit.NewError(corekit.KindUnexpected, "wire.Listen", "bind "+path, err)
	}
	return l, nil
}

// removeStaleSocket deletes path if it exists and is a socket, so a crash
// that left the file behind doesn't make a fresh Listen fail with
// "address already in use". It refuses to touch a path that exists but
// isn't a socket, to avoid silently deleting an unrelated file.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return corekit.NewError(corekit.KindUnexpected, "wire.removeStaleSocket", "stat "+path, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return corekit.NewError(corekit.KindConfig, "wire.removeStaleSocket", path+" exists and is not a socket", nil)
	}
	return os.Remove(path)
}
