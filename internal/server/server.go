// Package server runs the SOA frame protocol over TCP: an accept
// loop, a per-connection frame loop and a tag-based router. One
// process registers several service tags on one router, which is how
// the booking, availability and incident facets share a listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/protocol"
)

const (
	// defaultReadTimeout bounds the wait for the next frame on an open
	// connection; idle clients are disconnected.
	defaultReadTimeout = 30 * time.Second

	// defaultWriteTimeout bounds writing one response frame.
	defaultWriteTimeout = 10 * time.Second
)

// Config tunes one Service listener.
type Config struct {
	// Addr is the TCP listen address, e.g. ":5005" or "127.0.0.1:0".
	Addr string

	// ReadTimeout is the per-frame read deadline. Zero means the
	// default.
	ReadTimeout time.Duration

	// WriteTimeout is the per-response write deadline. Zero means the
	// default.
	WriteTimeout time.Duration
}

// errorPayload is the wire shape of every failed request.
type errorPayload struct {
	Error string `json:"error"`
}

// Service accepts SOA frame connections and dispatches each frame
// through a Router. Connections are persistent: a client may send any
// number of frames, and one response frame is written per request
// under the request's tag. Domain errors travel inside response
// payloads; only transport or framing failures close the connection.
type Service struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	router       *Router
	log          *zap.Logger

	listener net.Listener
	conns    sync.WaitGroup
}

// New builds a Service around a populated router. Register every tag
// before calling Serve.
func New(cfg Config, router *Router, log *zap.Logger) *Service {
	if router == nil || log == nil {
		panic("nil dependency passed to server.New")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Service{
		addr:         cfg.Addr,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		router:       router,
		log:          log,
	}
}

// Listen binds the TCP listener without accepting yet, so callers can
// fail fast on a bad address and read the bound port via Addr when
// listening on ":0". Serve calls it implicitly if needed. Listen and
// Serve are meant to be called in sequence from one goroutine.
func (s *Service) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr reports the bound listen address, or nil before Listen.
func (s *Service) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for in-flight connections to drain before
// returning.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	s.log.Info("servidor SOA escuchando", zap.String("direccion", s.listener.Addr().String()))

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Error("fallo al aceptar conexión", zap.Error(err))
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.conns.Wait()
	s.log.Info("servidor SOA detenido")
	return nil
}

// handleConn runs the frame loop for one connection.
func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log := s.log.With(
		zap.String("conexion", uuid.NewString()),
		zap.String("remoto", conn.RemoteAddr().String()),
	)
	log.Debug("conexión establecida")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return
		}
		tag, payload, err := protocol.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("conexión cerrada por el cliente")
				return
			}
			var fe *protocol.FrameError
			if errors.As(err, &fe) {
				// Invalid JSON leaves the stream positioned at the next
				// frame, so the connection survives. A broken prefix or
				// truncated body cannot be resynchronized.
				s.write(conn, log, "error", errorPayload{Error: framingMessage(fe)})
				if fe.Kind == protocol.BadPayload {
					continue
				}
				log.Debug("trama inválida, cerrando conexión", zap.Error(err))
				return
			}
			log.Debug("lectura de trama fallida", zap.Error(err))
			return
		}

		// Shutdown must not abort the frame already being processed:
		// the store rejects work on a cancelled context, which would
		// answer the drained request with an internal error. The
		// read/write deadlines still bound the connection.
		result, err := s.router.Dispatch(context.WithoutCancel(ctx), tag, payload)
		if err != nil {
			result = errorPayload{Error: err.Error()}
		}
		if !s.write(conn, log, tag, result) {
			return
		}
		// On shutdown, finish the frame in flight and close instead of
		// waiting for the client to disconnect.
		if ctx.Err() != nil {
			log.Debug("conexión cerrada por apagado del servidor")
			return
		}
	}
}

// write sends one response frame, reporting whether the connection is
// still usable.
func (s *Service) write(conn net.Conn, log *zap.Logger, tag string, payload any) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return false
	}
	if err := protocol.WriteFrame(conn, tag, payload); err != nil {
		log.Debug("respuesta no enviada", zap.Error(err))
		return false
	}
	return true
}

// framingMessage maps a framing failure onto the wire vocabulary.
func framingMessage(fe *protocol.FrameError) string {
	switch fe.Kind {
	case protocol.TooShort:
		return "Mensaje muy corto"
	case protocol.BadLength:
		return "Longitud de trama inválida"
	case protocol.BadPayload:
		return "Error al decodificar JSON"
	}
	return "Trama inválida"
}
