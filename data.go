package pipesh

import (
	"fmt"

	"github.com/caffix/pipesh/lazy"
)

// Kind identifies one of the closed set of payload kinds that can flow
// through a pipeline. It labels Data values and declares the input a
// Command requires.
type Kind uint8

// The payload kinds.
const (
	Nothing Kind = iota
	Text
	Texts
	Object
	Objects
)

var kindNames = [...]string{
	Nothing: "nothing",
	Text:    "text",
	Texts:   "texts",
	Object:  "object",
	Objects: "objects",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Item is a domain value carried through a pipe.
type Item interface {
	// Key returns the identifier of the item.
	Key() string

	// Lines returns the text presentation of the item. The hints in force for
	// the pull that produced the item select which optional sections appear.
	Lines(lazy.Hints) []string
}

// Data is a value carried between pipeline stages. The set of
// implementations is closed and matches the Kind constants.
type Data interface {
	// Kind returns the payload kind of the Data.
	Kind() Kind

	// ConvertTo returns a Data of the requested kind presenting the same
	// payload, or a *ConversionError when the kind is unreachable. The
	// receiver is not modified and no lazy sequence is pulled.
	ConvertTo(Kind) (Data, error)

	sealed()
}

// NothingData is the empty payload every pipeline starts from.
type NothingData struct{}

// TextData is a single piece of text.
type TextData struct {
	Value string
}

// TextsData is a lazy sequence of text.
type TextsData struct {
	Items lazy.Supplier[string]
}

// ObjectData is a single domain item.
type ObjectData struct {
	Item Item
}

// ObjectsData is a lazy sequence of domain items.
type ObjectsData struct {
	Items lazy.Supplier[Item]
}

// None is the canonical NothingData value.
var None Data = NothingData{}

// NewText returns a TextData holding s.
func NewText(s string) Data {
	return TextData{Value: s}
}

// NewTexts returns a TextsData backed by the provided supplier.
func NewTexts(s lazy.Supplier[string]) Data {
	return TextsData{Items: s}
}

// TextList returns a TextsData yielding the provided strings.
func TextList(items ...string) Data {
	return TextsData{Items: lazy.FromSlice(items...)}
}

// NewObject returns an ObjectData holding item.
func NewObject(item Item) Data {
	return ObjectData{Item: item}
}

// NewObjects returns an ObjectsData backed by the provided supplier.
func NewObjects(s lazy.Supplier[Item]) Data {
	return ObjectsData{Items: s}
}

// Kind implements Data.
func (NothingData) Kind() Kind { return Nothing }

// Kind implements Data.
func (TextData) Kind() Kind { return Text }

// Kind implements Data.
func (TextsData) Kind() Kind { return Texts }

// Kind implements Data.
func (ObjectData) Kind() Kind { return Object }

// Kind implements Data.
func (ObjectsData) Kind() Kind { return Objects }

// ConvertTo implements Data.
func (d NothingData) ConvertTo(k Kind) (Data, error) { return convert(d, k) }

// ConvertTo implements Data.
func (d TextData) ConvertTo(k Kind) (Data, error) { return convert(d, k) }

// ConvertTo implements Data.
func (d TextsData) ConvertTo(k Kind) (Data, error) { return convert(d, k) }

// ConvertTo implements Data.
func (d ObjectData) ConvertTo(k Kind) (Data, error) { return convert(d, k) }

// ConvertTo implements Data.
func (d ObjectsData) ConvertTo(k Kind) (Data, error) { return convert(d, k) }

func (NothingData) sealed() {}
func (TextData) sealed()    {}
func (TextsData) sealed()   {}
func (ObjectData) sealed()  {}
func (ObjectsData) sealed() {}
