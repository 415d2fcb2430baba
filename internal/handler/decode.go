// Package handler exposes the engines on the wire. The SOA services
// (BookingService, AvailabilityService, IncidentService) answer the
// book, avail and incid tags dispatched by the socket server; the
// incident REST surface (IncidentHandler) and the health check run on
// Echo.
//
// Every SOA payload is decoded exactly once, against a closed set of
// operation signatures. A signature matches when all of its required
// keys are present and no key outside its required and optional sets
// appears, so a payload resolves to at most one operation. Signature
// sets are checked for pairwise overlap when the service is built; an
// ambiguous pair panics before the service ever listens.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// errBadField marks a request field that cannot be used: absent, JSON
// null, an empty string, a zero id or the wrong type. Operations
// translate it into their own required-fields message.
var errBadField = errors.New("bad field value")

// fields is one decoded request payload. Values stay raw until an
// operation extracts them; ids are accepted as JSON numbers or numeric
// strings because existing clients send both.
type fields map[string]json.RawMessage

// parseFields decodes a payload into its key set. An empty payload is
// treated as an empty object.
func parseFields(payload []byte) (fields, error) {
	f := fields{}
	if len(payload) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return f, nil
}

// id reads a positive identifier from a number or a numeric string.
func (f fields) id(key string) (uint64, error) {
	raw, ok := f[key]
	if !ok {
		return 0, errBadField
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == 0 {
			return 0, errBadField
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errBadField
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, errBadField
	}
	return n, nil
}

// optID reads an identifier that may be absent, returning zero when
// the key is missing.
func (f fields) optID(key string) (uint64, error) {
	if _, ok := f[key]; !ok {
		return 0, nil
	}
	return f.id(key)
}

// str reads a required non-empty string field.
func (f fields) str(key string) (string, error) {
	raw, ok := f[key]
	if !ok {
		return "", errBadField
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errBadField
	}
	if strings.TrimSpace(s) == "" {
		return "", errBadField
	}
	return s, nil
}

// optStr reads a string field, returning empty when the key is absent
// or holds something other than a string.
func (f fields) optStr(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Accepted timestamp layouts, most common first. Clients send local
// campus time without a zone.
var whenLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// parseWhen parses a client timestamp in any accepted layout.
func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errBadField
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, wireError("Formato de fecha/hora inválido: " + s)
}

// when reads a required timestamp field.
func (f fields) when(key string) (time.Time, error) {
	s, err := f.str(key)
	if err != nil {
		return time.Time{}, err
	}
	return parseWhen(s)
}

// day reads a required date-only field.
func (f fields) day(key string) (time.Time, error) {
	s, err := f.str(key)
	if err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, wireError("Formato de fecha inválido: " + s)
	}
	return t, nil
}

// optHours reads an hour count that may be absent, from a number or a
// numeric string.
func (f fields) optHours(key string, def int) (int, error) {
	raw, ok := f[key]
	if !ok {
		return def, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, wireError("Formato de fecha/hora inválido: " + string(raw))
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, wireError("Formato de fecha/hora inválido: " + s)
	}
	return n, nil
}

// operation couples one key-set signature with its behavior. A payload
// matches when every required key is present and every present key is
// either required or optional.
type operation struct {
	name     string
	required []string
	optional []string
	run      func(ctx context.Context, f fields) (any, error)
}

func (op operation) matches(f fields) bool {
	for _, k := range op.required {
		if _, ok := f[k]; !ok {
			return false
		}
	}
	for k := range f {
		if !op.allows(k) {
			return false
		}
	}
	return true
}

func (op operation) allows(key string) bool {
	return slices.Contains(op.required, key) || slices.Contains(op.optional, key)
}

// dispatcher resolves a payload to the single operation whose
// signature it satisfies. Construction rejects signature pairs that
// could both match one payload, so dispatch never has to choose
// between operations.
type dispatcher struct {
	ops []operation
}

func newDispatcher(ops ...operation) *dispatcher {
	for i := range ops {
		for j := i + 1; j < len(ops); j++ {
			if coverable(ops[i], ops[j]) {
				panic(fmt.Sprintf("handler: operations %s and %s match overlapping payloads", ops[i].name, ops[j].name))
			}
		}
	}
	return &dispatcher{ops: ops}
}

// coverable reports whether some payload satisfies both signatures,
// which holds exactly when each side's required keys fit inside the
// other's allowed set.
func coverable(a, b operation) bool {
	return fits(a.required, b) && fits(b.required, a)
}

func fits(keys []string, op operation) bool {
	for _, k := range keys {
		if !op.allows(k) {
			return false
		}
	}
	return true
}

func (d *dispatcher) dispatch(ctx context.Context, payload []byte) (any, error) {
	f, err := parseFields(payload)
	if err != nil {
		return nil, errUnknownAction
	}
	for _, op := range d.ops {
		if op.matches(f) {
			return op.run(ctx, f)
		}
	}
	return nil, errUnknownAction
}
