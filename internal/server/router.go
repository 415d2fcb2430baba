package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownService is returned by Dispatch for a tag with no
// registered handler. Its text is the wire message, matching the
// vocabulary the bus uses for an unroutable tag.
var ErrUnknownService = errors.New("Servicio no encontrado")

// HandlerFunc processes one frame payload for a service tag. The
// returned value is marshaled into the response frame; a returned
// error becomes an {"error": message} payload, so handlers translate
// domain errors into wire messages before returning them.
type HandlerFunc func(ctx context.Context, payload []byte) (any, error)

// Router maps service tags to handlers. Tags are stored trimmed, so
// "book " on the wire and "book" at registration are the same service.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns an empty routing table.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle registers a handler for a service tag. Panics on a duplicate
// registration: the routing table is wired once at startup and a
// collision there is a programming error.
func (r *Router) Handle(tag string, h HandlerFunc) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		panic("server: empty service tag")
	}
	if h == nil {
		panic(fmt.Sprintf("server: nil handler for tag %q", tag))
	}
	if _, exists := r.handlers[tag]; exists {
		panic(fmt.Sprintf("server: duplicate handler for tag %q", tag))
	}
	r.handlers[tag] = h
}

// Dispatch runs the handler registered for the frame's tag. The tag
// arrives as framed (space padded) and is trimmed before lookup. An
// unregistered tag reports ErrUnknownService; everything else is the
// handler's result.
func (r *Router) Dispatch(ctx context.Context, tag string, payload []byte) (any, error) {
	h, ok := r.handlers[strings.TrimSpace(tag)]
	if !ok {
		return nil, ErrUnknownService
	}
	return h(ctx, payload)
}
