// Package reader connects the engine to the NFC reader bridge. The bridge
// process speaks the chipset's byte-level protocol and pushes one uppercase
// hex tag identifier per line over a unix socket; this package turns that
// stream into the engine's blocking read-one-tag operation.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// SocketReader implements scan.TagReader over the bridge socket. The
// hardware arbiter guarantees a single reader operation at a time, so no
// internal locking is needed.
type SocketReader struct {
	path string
	conn net.Conn
	br   *bufio.Reader
}

func NewSocketReader(path string) *SocketReader {
	return &SocketReader{path: path}
}

func (r *SocketReader) connect() error {
	if r.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", r.path, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect reader bridge: %w", err)
	}

	r.conn = conn
	r.br = bufio.NewReader(conn)
	return nil
}

func (r *SocketReader) drop() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
		r.br = nil
	}
}

// ReadTag blocks until the bridge reports a tag or ctx ends. Cancellation
// surfaces as ctx.Err(), which callers treat as the normal no-tag outcome.
func (r *SocketReader) ReadTag(ctx context.Context) (string, error) {
	if err := r.connect(); err != nil {
		return "", err
	}

	// Kick the pending read loose when ctx ends. The watcher works on its
	// own capture of the connection: r.conn may already be dropped, or even
	// redialed by a later call, by the time the watcher fires.
	conn := r.conn
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				conn.SetReadDeadline(time.Time{})
				return "", ctx.Err()
			}
			// Bridge went away; reconnect on the next read.
			r.drop()
			return "", fmt.Errorf("reader bridge read: %w", err)
		}

		tag := strings.ToUpper(strings.TrimSpace(line))
		if tag == "" {
			continue
		}
		return tag, nil
	}
}

// Close drops the bridge connection.
func (r *SocketReader) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.br = nil
	return err
}
