// Package bus implements the frame-forwarding service bus: a single
// TCP front door that reads request frames, looks each tag up in its
// routing table and relays the frame to the backend that owns it,
// returning the backend's response bytes unchanged.
//
// The bus never interprets payloads. It originates frames of its own
// only when routing fails: an unknown tag or an unreachable backend is
// answered under the request tag, a malformed request frame under the
// error tag, so every request gets exactly one response.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/protocol"
)

const (
	defaultDialTimeout    = 5 * time.Second
	defaultForwardTimeout = 30 * time.Second
	defaultReadTimeout    = 5 * time.Minute
	defaultWriteTimeout   = 10 * time.Second

	lengthFieldWidth = 5
)

// Config carries the bus listener settings. Routes maps a trimmed
// service tag to the host:port of the backend that owns it.
type Config struct {
	Addr           string
	Routes         map[string]string
	DialTimeout    time.Duration // backend dial budget
	ForwardTimeout time.Duration // full backend round trip budget
	ReadTimeout    time.Duration // client idle budget between frames
	WriteTimeout   time.Duration // client response write budget
}

type errorPayload struct {
	Error string `json:"error"`
}

// Bus owns the front listener and the routing table.
type Bus struct {
	addr           string
	routes         map[string]string
	dialTimeout    time.Duration
	forwardTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	log            *zap.Logger

	listener net.Listener
	conns    sync.WaitGroup
}

// ParseRoutes parses a comma separated tag=host:port routing table,
// the form the BUS_ROUTES variable carries.
func ParseRoutes(s string) (map[string]string, error) {
	routes := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		tag, addr, ok := strings.Cut(entry, "=")
		tag, addr = strings.TrimSpace(tag), strings.TrimSpace(addr)
		if !ok || tag == "" || addr == "" {
			return nil, fmt.Errorf("malformed route %q", entry)
		}
		if len(tag) > protocol.TagLength {
			return nil, fmt.Errorf("route tag %q longer than %d characters", tag, protocol.TagLength)
		}
		if _, dup := routes[tag]; dup {
			return nil, fmt.Errorf("duplicate route for tag %q", tag)
		}
		routes[tag] = addr
	}
	if len(routes) == 0 {
		return nil, errors.New("empty routing table")
	}
	return routes, nil
}

// New constructs a bus. The routing table and logger must be present;
// zero timeouts fall back to defaults.
func New(cfg Config, log *zap.Logger) *Bus {
	if log == nil || len(cfg.Routes) == 0 {
		panic("nil dependency passed to bus.New")
	}
	b := &Bus{
		addr:           cfg.Addr,
		routes:         cfg.Routes,
		dialTimeout:    cfg.DialTimeout,
		forwardTimeout: cfg.ForwardTimeout,
		readTimeout:    cfg.ReadTimeout,
		writeTimeout:   cfg.WriteTimeout,
		log:            log,
	}
	if b.dialTimeout <= 0 {
		b.dialTimeout = defaultDialTimeout
	}
	if b.forwardTimeout <= 0 {
		b.forwardTimeout = defaultForwardTimeout
	}
	if b.readTimeout <= 0 {
		b.readTimeout = defaultReadTimeout
	}
	if b.writeTimeout <= 0 {
		b.writeTimeout = defaultWriteTimeout
	}
	return b
}

// Listen binds the bus address. Serve calls it when needed; calling it
// twice is a no-op.
func (b *Bus) Listen() error {
	if b.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", b.addr, err)
	}
	b.listener = ln
	return nil
}

// Addr returns the bound listener address, nil before Listen.
func (b *Bus) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for in-flight connections to drain.
func (b *Bus) Serve(ctx context.Context) error {
	if err := b.Listen(); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = b.listener.Close()
	}()

	b.log.Info("bus de servicios escuchando",
		zap.String("direccion", b.listener.Addr().String()),
		zap.Int("rutas", len(b.routes)),
	)
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			b.log.Error("fallo al aceptar conexión", zap.Error(err))
			continue
		}
		b.conns.Add(1)
		go func() {
			defer b.conns.Done()
			b.handleConn(ctx, conn)
		}()
	}
	b.conns.Wait()
	b.log.Info("bus de servicios detenido")
	return nil
}

func (b *Bus) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := b.log.With(
		zap.String("conexion", uuid.NewString()),
		zap.String("remoto", conn.RemoteAddr().String()),
	)
	log.Debug("conexión establecida")

	for {
		// On shutdown, finish the frame in flight and close instead of
		// waiting for the client to disconnect.
		if ctx.Err() != nil {
			log.Debug("conexión cerrada por apagado del bus")
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(b.readTimeout)); err != nil {
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
				b.write(conn, log, "error", errorPayload{Error: framingMessage(fe)})
				// After a payload error the stream is still aligned on
				// a frame boundary; the other kinds are unrecoverable.
				if fe.Kind == protocol.BadPayload {
					continue
				}
				log.Debug("trama inválida, cerrando conexión", zap.Error(err))
				return
			}
			log.Debug("lectura fallida, cerrando conexión", zap.Error(err))
			return
		}

		service := strings.TrimSpace(tag)
		backend, ok := b.routes[service]
		if !ok {
			log.Debug("servicio desconocido", zap.String("servicio", service))
			if !b.write(conn, log, tag, errorPayload{Error: "Servicio no encontrado"}) {
				return
			}
			continue
		}

		response, err := b.forward(backend, tag, payload)
		if err != nil {
			log.Warn("reenvío fallido",
				zap.String("servicio", service),
				zap.String("destino", backend),
				zap.Error(err),
			)
			if !b.write(conn, log, tag, errorPayload{Error: "Error de comunicación: " + err.Error()}) {
				return
			}
			continue
		}

		if err := conn.SetWriteDeadline(time.Now().Add(b.writeTimeout)); err != nil {
			return
		}
		if _, err := conn.Write(response); err != nil {
			log.Debug("respuesta no retransmitida", zap.Error(err))
			return
		}
	}
}

// forward dials the backend, sends the request frame and reads one
// response frame, returned raw so the relay preserves the backend's
// framing byte for byte.
func (b *Bus) forward(addr, tag string, payload []byte) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, b.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(b.forwardTimeout)); err != nil {
		return nil, fmt.Errorf("set forward deadline: %w", err)
	}
	if err := protocol.WriteFrame(conn, tag, json.RawMessage(payload)); err != nil {
		return nil, err
	}
	return readRawFrame(conn)
}

// readRawFrame reads one complete frame and returns it unparsed,
// header included.
func readRawFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, lengthFieldWidth)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read response length: %w", err)
	}
	length := 0
	for _, c := range header {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("response length %q is not numeric", header)
		}
		length = length*10 + int(c-'0')
	}

	frame := make([]byte, lengthFieldWidth+length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[lengthFieldWidth:]); err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return frame, nil
}

func (b *Bus) write(conn net.Conn, log *zap.Logger, tag string, payload any) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(b.writeTimeout)); err != nil {
		return false
	}
	if err := protocol.WriteFrame(conn, tag, payload); err != nil {
		log.Debug("respuesta no enviada", zap.Error(err))
		return false
	}
	return true
}

// framingMessage translates a framing failure into the platform's
// client-facing vocabulary.
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
