package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LineHandler turns one request line into one reply line.
type LineHandler interface {
	ExecuteFrom(remote, line string) string
}

// maxLine bounds a single request line.
const maxLine = 64 * 1024

// Server accepts command-channel connections and serves each on its own
// goroutine.
type Server struct {
	addr    string
	handler LineHandler
	log     logrus.FieldLogger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(addr string, h LineHandler) *Server {
	return &Server{
		addr:    addr,
		handler: h,
		log:     logrus.StandardLogger(),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the listening socket. ListenAndServe calls it if needed;
// calling it first lets callers learn the bound address.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", strings.TrimSpace(s.addr))
	if err != nil {
		return fmt.Errorf("command listener: %w", err)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe accepts connections until ctx is done. Cancellation closes
// the listener, which is the only way to unblock Accept, and then every open
// connection. It returns after all connection goroutines exit.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	s.log.Infof("Command listener on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeConns()
	}()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("command listener: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrack(conn)
	remote := conn.RemoteAddr().String()
	s.log.Debugf("Command client %s connected", remote)

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 4096), maxLine)
	w := bufio.NewWriter(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply := s.handler.ExecuteFrom(remote, line)
		s.log.Debugf("Command from %s: %q -> %q", remote, line, reply)
		if _, err := io.WriteString(w, reply+"\n"); err != nil {
			s.log.Warnf("Command client %s write failed: %v", remote, err)
			return
		}
		if err := w.Flush(); err != nil {
			s.log.Warnf("Command client %s write failed: %v", remote, err)
			return
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debugf("Command client %s read failed: %v", remote, err)
	}
	s.log.Debugf("Command client %s disconnected", remote)
}
