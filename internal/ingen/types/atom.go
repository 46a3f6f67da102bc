package types

import "fmt"

// AtomKind discriminates the payload held by an Atom.
type AtomKind int

const (
	AtomInt AtomKind = iota
	AtomFloat
	AtomBool
	AtomString
	AtomURI
	AtomPath
	AtomURID
	AtomBlob
)

func (k AtomKind) String() string {
	switch k {
	case AtomInt:
		return "Int"
	case AtomFloat:
		return "Float"
	case AtomBool:
		return "Bool"
	case AtomString:
		return "String"
	case AtomURI:
		return "URI"
	case AtomPath:
		return "Path"
	case AtomURID:
		return "URID"
	case AtomBlob:
		return "Blob"
	default:
		return "Unknown"
	}
}

// Atom is a typed value as carried by Properties and ATOM-port sequences.
// Exactly one of the typed fields is meaningful, selected by Kind; a Blob
// additionally carries a BlobType URID describing its opaque body.
type Atom struct {
	Kind     AtomKind
	Int      int64
	Float    float64
	Bool     bool
	Str      string
	URI      URI
	Path     Path
	URID     URID
	Blob     []byte
	BlobType URID
}

func IntAtom(v int64) Atom    { return Atom{Kind: AtomInt, Int: v} }
func FloatAtom(v float64) Atom { return Atom{Kind: AtomFloat, Float: v} }
func BoolAtom(v bool) Atom    { return Atom{Kind: AtomBool, Bool: v} }
func StringAtom(v string) Atom { return Atom{Kind: AtomString, Str: v} }
func URIAtom(v URI) Atom      { return Atom{Kind: AtomURI, URI: v} }
func PathAtom(v Path) Atom    { return Atom{Kind: AtomPath, Path: v} }
func URIDAtom(v URID) Atom    { return Atom{Kind: AtomURID, URID: v} }
func BlobAtom(blobType URID, body []byte) Atom {
	return Atom{Kind: AtomBlob, BlobType: blobType, Blob: body}
}

// AsFloat coerces numeric/bool kinds to a float64, the way control ports
// accept either an Int, Float, or Bool property value.
func (a Atom) AsFloat() (float64, bool) {
	switch a.Kind {
	case AtomFloat:
		return a.Float, true
	case AtomInt:
		return float64(a.Int), true
	case AtomBool:
		if a.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (a Atom) String() string {
	switch a.Kind {
	case AtomInt:
		return fmt.Sprintf("%d", a.Int)
	case AtomFloat:
		return fmt.Sprintf("%g", a.Float)
	case AtomBool:
		return fmt.Sprintf("%t", a.Bool)
	case AtomString:
		return a.Str
	case AtomURI:
		return string(a.URI)
	case AtomPath:
		return string(a.Path)
	case AtomURID:
		return fmt.Sprintf("urid:%d", a.URID)
	case AtomBlob:
		return fmt.Sprintf("blob(%d bytes, type=%d)", len(a.Blob), a.BlobType)
	default:
		return "<invalid atom>"
	}
}

// PropertyContext distinguishes properties describing a node as seen from
// outside its parent graph (External) from those only meaningful inside it
// (Internal); Default applies to both.
type PropertyContext int

const (
	ContextDefault PropertyContext = iota
	ContextInternal
	ContextExternal
)

// Property is one (key, value) pair in a Node's property multimap.
type Property struct {
	Key     URI
	Value   Atom
	Context PropertyContext
}
