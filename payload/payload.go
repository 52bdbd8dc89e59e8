package payload

import "fmt"

// Family identifies the kind of data a resource object carries.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyDataset
	FamilyGrid
	FamilyPalette
	FamilyMatrix
	FamilyVector
	FamilyImage
	FamilyDocument
	familyEnd
)

var familyNames = [...]string{
	FamilyUnknown:  "unknown",
	FamilyDataset:  "dataset",
	FamilyGrid:     "grid",
	FamilyPalette:  "palette",
	FamilyMatrix:   "matrix",
	FamilyVector:   "vector",
	FamilyImage:    "image",
	FamilyDocument: "document",
}

func (f Family) String() string {
	if f < familyEnd {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// Valid reports whether f names a known family.
func (f Family) Valid() bool {
	return f > FamilyUnknown && f < familyEnd
}

// ParseFamily maps a family name back to its value.
func ParseFamily(name string) (Family, bool) {
	for f := FamilyDataset; f < familyEnd; f++ {
		if familyNames[f] == name {
			return f, true
		}
	}
	return FamilyUnknown, false
}

// Size summarizes a payload for introspection.
type Size struct {
	Rows    int
	Columns int
	Bytes   int64
}

// Payload is the closed set of data objects the broker can hold.
// Every variant lives in this package.
type Payload interface {
	Family() Family
	// Clone returns a deep copy that shares no memory with the receiver.
	Clone() Payload
	Size() Size
	// Release drops the payload's storage. Called at most once, and only
	// for payloads the broker owns.
	Release()
	isPayload()
}

// Empty returns a zero payload of the given family, used when an output
// object is registered without a destination.
func Empty(f Family) Payload {
	switch f {
	case FamilyDataset:
		return &Dataset{}
	case FamilyGrid:
		return &Grid{}
	case FamilyPalette:
		return &Palette{}
	case FamilyMatrix:
		return &Matrix{}
	case FamilyVector:
		return &Vector{}
	case FamilyImage:
		return &Image{}
	case FamilyDocument:
		return &Document{}
	}
	return nil
}
