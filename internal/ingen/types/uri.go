package types

import (
	"strings"
	"sync"
)

// URI is an absolute URI: either a path reference (ingen:/foo/bar) or a
// plugin/property URI (http://example.org/plugins/reverb).
type URI string

// URID is an interned URI id, assigned by the engine's URID map the first
// time a URI is seen. 0 is reserved as "invalid".
type URID uint32

const InvalidURID URID = 0

// Built-in buffer type URIs, interned once at startup (see NewURIMap).
const (
	URIAudioPort   URI = "http://lv2plug.in/ns/lv2core#AudioPort"
	URIControlPort URI = "http://lv2plug.in/ns/lv2core#ControlPort"
	URICVPort      URI = "http://lv2plug.in/ns/lv2core#CVPort"
	URIAtomPort    URI = "http://lv2plug.in/ns/ext/atom#AtomPort"
	URISequence    URI = "http://lv2plug.in/ns/ext/atom#Sequence"
)

// Built-in plugin URIs for internal blocks.
const (
	URIInternalController URI = "ingen:/internals/Controller"
	URIInternalNote       URI = "ingen:/internals/Note"
	URIInternalTrigger    URI = "ingen:/internals/Trigger"
	URIInternalTime       URI = "ingen:/internals/Time"
	URIInternalBlockDelay URI = "ingen:/internals/BlockDelay"
)

// IsPathURI reports whether u is an "ingen:" scheme URI referring to a Path.
func (u URI) IsPathURI() bool {
	return strings.HasPrefix(string(u), "ingen:")
}

// ToPath extracts the Path component of an "ingen:" URI.
func (u URI) ToPath() (Path, bool) {
	if !u.IsPathURI() {
		return "", false
	}
	rest := strings.TrimPrefix(string(u), "ingen:")
	p, err := NewPath(rest)
	if err != nil {
		return "", false
	}
	return p, true
}

// PathToURI converts a Path to its canonical "ingen:" URI form.
func PathToURI(p Path) URI {
	return URI("ingen:" + string(p))
}

// URIMap interns URIs to URIDs and back, the way an LV2 host's urid#map
// feature does; the engine owns one instance, shared read-mostly across
// threads (lookups after bootstrap are a plain map read under RLock).
type URIMap struct {
	mu     sync.RWMutex
	byURI  map[URI]URID
	byURID map[URID]URI
	nextID URID
}

// NewURIMap returns an empty map with the built-in buffer-type and
// internal-plugin URIs pre-interned at fixed, stable ids.
func NewURIMap() *URIMap {
	m := &URIMap{
		byURI:  make(map[URI]URID),
		byURID: make(map[URID]URI),
		nextID: 1,
	}
	for _, u := range []URI{
		URIAudioPort, URIControlPort, URICVPort, URIAtomPort, URISequence,
		URIInternalController, URIInternalNote, URIInternalTrigger,
		URIInternalTime, URIInternalBlockDelay,
	} {
		m.Map(u)
	}
	return m
}

// Map interns u, returning its existing id if already known.
func (m *URIMap) Map(u URI) URID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byURI[u]; ok {
		return id
	}
	id := m.nextID
	m.nextID++
	m.byURI[u] = id
	m.byURID[id] = u
	return id
}

// Unmap returns the URI previously interned as id, if any.
func (m *URIMap) Unmap(id URID) (URI, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byURID[id]
	return u, ok
}
