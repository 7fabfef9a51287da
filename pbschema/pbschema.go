// SPDX-License-Identifier: GPL-3.0-or-later

// Package pbschema maps a remote table schema onto protobuf tag numbers and
// encodes event values against it, producing the exact wire bytes a
// conforming protobuf reader would decode. There is no generated .proto
// here: tags are assigned from declaration order and encoding is done by
// hand, one field at a time, against the varint/length-delimited wire
// format.
package pbschema

import (
	"fmt"

	"github.com/bassosimone/conduit"
)

// FieldType is the semantic shape of one schema field.
type FieldType int

const (
	// Unknown marks a type the caller did not recognize; such fields are
	// dropped during descriptor construction and never receive a tag.
	Unknown FieldType = iota

	Int64
	Bool
	String
	Date
	Time
	Numeric
	Geography
	BigNumeric
	Struct

	// JSON and Interval are recognized but intentionally unencodable.
	JSON
	Interval
)

func (t FieldType) String() string {
	switch t {
	case Int64:
		return "int64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Date:
		return "date"
	case Time:
		return "time"
	case Numeric:
		return "numeric"
	case Geography:
		return "geography"
	case BigNumeric:
		return "bignumeric"
	case Struct:
		return "struct"
	case JSON:
		return "json"
	case Interval:
		return "interval"
	default:
		return "unknown"
	}
}

// stringy reports whether t is encoded as length-prefixed UTF-8: String and
// every date/time/numeric/geography/bignumeric variant.
func (t FieldType) stringy() bool {
	switch t {
	case String, Date, Time, Numeric, Geography, BigNumeric:
		return true
	default:
		return false
	}
}

// SchemaField is one column of an input table schema, as supplied by the
// caller before tag assignment.
type SchemaField struct {
	Name      string
	Type      FieldType
	SubFields []SchemaField // only consulted when Type == Struct
}

// Field is one assigned descriptor entry: a schema field plus its tag
// number and, for Struct fields, its nested descriptor.
type Field struct {
	Name string
	Type FieldType
	Tag  int
	Sub  *Descriptor
}

// Descriptor assigns protobuf tag numbers 1..N, in declaration order, to a
// schema's fields. Only Unknown fields are omitted entirely; JSON and
// Interval fields still consume a tag like any other field — they are
// unencodable only at [Encode] time. Build one with [BuildDescriptor].
type Descriptor struct {
	Name   string
	Fields []Field
	byName map[string]*Field
}

// BuildDescriptor assigns tags 1..N to schema in order, skipping only
// fields of Unknown type. It returns the descriptor plus one warning
// string per skipped field.
func BuildDescriptor(name string, schema []SchemaField) (*Descriptor, []string) {
	d := &Descriptor{Name: name, byName: make(map[string]*Field)}
	var warnings []string
	tag := 1
	for _, sf := range schema {
		if sf.Type == Unknown {
			warnings = append(warnings, fmt.Sprintf("field %q: type %s not allocated a tag", sf.Name, sf.Type))
			continue
		}
		f := Field{Name: sf.Name, Type: sf.Type, Tag: tag}
		if sf.Type == Struct {
			sub, subWarnings := BuildDescriptor("struct_"+sf.Name, sf.SubFields)
			f.Sub = sub
			warnings = append(warnings, subWarnings...)
		}
		d.Fields = append(d.Fields, f)
		d.byName[sf.Name] = &d.Fields[len(d.Fields)-1]
		tag++
	}
	return d, warnings
}

// Field looks up a field descriptor by name.
func (d *Descriptor) Field(name string) (*Field, bool) {
	f, ok := d.byName[name]
	return f, ok
}
