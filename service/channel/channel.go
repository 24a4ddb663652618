// Package channel provides the controller-side connection endpoint: a TCP
// listener bound to an ephemeral local port that a worker process connects
// back to, with a synchronous request/response exchange and a fire-and-forget
// send multiplexed over the worker's single connection.
package channel

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
)

// Config controls endpoint address selection.
type Config struct {
	// HostnameLocalhost forces the advertised host to loopback instead of the
	// machine's reported hostname. Within a multi-node allocation the
	// hostname is required so other nodes can connect; for single-node use
	// loopback side-steps OS setups that refuse hostname self-resolution.
	HostnameLocalhost bool
}

// Service is a bound endpoint. It accepts exactly one worker connection and
// serializes all exchanges over it; a slot owns its channel exclusively, so
// no further locking is required by callers.
type Service struct {
	config   Config
	listener net.Listener
	port     int

	mux       sync.Mutex
	conn      net.Conn
	acceptErr error
	accepted  chan struct{}
}

// New creates an unbound channel.
func New(config Config) *Service {
	return &Service{config: config, accepted: make(chan struct{})}
}

// Host returns the address workers should connect to.
func (s *Service) Host() string {
	if s.config.HostnameLocalhost {
		return "127.0.0.1"
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "127.0.0.1"
	}
	return hostname
}

// Port returns the bound port, zero before BindToRandomPort.
func (s *Service) Port() int { return s.port }

// Address returns host:port for embedding into a worker launch command.
func (s *Service) Address() string {
	return fmt.Sprintf("%s:%d", s.Host(), s.port)
}

// BindToRandomPort binds the listener to an ephemeral port and returns the
// chosen port. The accept loop starts immediately; the first exchange blocks
// until the worker has connected.
func (s *Service) BindToRandomPort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	go s.accept()
	return s.port, nil
}

func (s *Service) accept() {
	conn, err := s.listener.Accept()
	s.mux.Lock()
	s.conn, s.acceptErr = conn, err
	s.mux.Unlock()
	close(s.accepted)
}

func (s *Service) connection(ctx context.Context) (net.Conn, error) {
	select {
	case <-s.accepted:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.acceptErr != nil {
		return nil, s.acceptErr
	}
	return s.conn, nil
}

// SendAndReceive writes a payload and blocks until the worker replies.
func (s *Service) SendAndReceive(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	if err = WriteFrame(conn, payload); err != nil {
		return nil, err
	}
	return ReadFrame(conn)
}

// Send writes a payload without waiting for a reply; used for close and
// cancel control messages.
func (s *Service) Send(ctx context.Context, payload []byte) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	return WriteFrame(conn, payload)
}

// Close tears the endpoint down.
func (s *Service) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mux.Lock()
	conn := s.conn
	s.mux.Unlock()
	if conn != nil {
		if cErr := conn.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}

// Dial connects to a controller endpoint; it is the worker-side counterpart
// of BindToRandomPort.
func Dial(ctx context.Context, address string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", address)
}
