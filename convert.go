package pipesh

import (
	"context"
	"strings"

	"github.com/caffix/pipesh/lazy"
)

type conversion struct {
	from, to Kind
}

// conversions holds every non-identity rule. A pair missing from the table
// is unreachable.
var conversions = map[conversion]func(Data) Data{
	{Nothing, Texts}: func(Data) Data {
		return NewTexts(lazy.Empty[string]())
	},
	{Nothing, Objects}: func(Data) Data {
		return NewObjects(lazy.Empty[Item]())
	},
	{Text, Texts}: func(d Data) Data {
		return TextList(d.(TextData).Value)
	},
	{Object, Objects}: func(d Data) Data {
		return NewObjects(lazy.FromSlice(d.(ObjectData).Item))
	},
	{Object, Text}: func(d Data) Data {
		return NewText(strings.Join(d.(ObjectData).Item.Lines(lazy.Hints{}), "\n"))
	},
	{Object, Texts}: func(d Data) Data {
		item := d.(ObjectData).Item
		// Rendered on the first pull so that the hints of that pull apply
		return NewTexts(lazy.FlatMap(lazy.FromSlice(item), itemLines))
	},
	{Objects, Texts}: func(d Data) Data {
		return NewTexts(lazy.FlatMap(d.(ObjectsData).Items, itemLines))
	},
}

func itemLines(_ context.Context, item Item, hints lazy.Hints) ([]string, error) {
	return item.Lines(hints), nil
}

func convert(d Data, to Kind) (Data, error) {
	from := d.Kind()
	if from == to {
		return d, nil
	}

	if rule, ok := conversions[conversion{from: from, to: to}]; ok {
		return rule(d), nil
	}
	return nil, &ConversionError{From: from, To: to}
}

// Convertible reports whether Data of kind from can be presented as kind to.
func Convertible(from, to Kind) bool {
	if from == to {
		return true
	}

	_, ok := conversions[conversion{from: from, to: to}]
	return ok
}
