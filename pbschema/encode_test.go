// SPDX-License-Identifier: GPL-3.0-or-later

package pbschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStringy(t *testing.T) {
	f := &Field{Name: "s", Type: String, Tag: 123}
	got, err := Encode(f, "I")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDA, 0x07, 0x01, 0x49}, got)
}

func TestEncodeBoolFalse(t *testing.T) {
	f := &Field{Name: "b", Type: Bool, Tag: 43}
	got, err := Encode(f, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD8, 0x02, 0x00}, got)
}

func TestEncodeStruct(t *testing.T) {
	sub, warnings := BuildDescriptor("struct_x", []SchemaField{
		{Name: "a", Type: Int64},
		{Name: "b", Type: Int64},
	})
	require.Empty(t, warnings)
	f := &Field{Name: "x", Type: Struct, Tag: 1024, Sub: sub}

	got, err := Encode(f, map[string]any{"a": int64(1), "b": int64(1024)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x40, 0x05, 0x08, 0x01, 0x10, 0x80, 0x08}, got)
}

func TestEncodeTypeMismatch(t *testing.T) {
	f := &Field{Name: "n", Type: Int64, Tag: 1}
	_, err := Encode(f, "not an int")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected int64")
	assert.Contains(t, err.Error(), "got string")
}

func TestEncodeUnsupportedField(t *testing.T) {
	f := &Field{Name: "j", Type: JSON, Tag: 5}
	_, err := Encode(f, "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type json")
}

func TestEncodeStructDropsExtras(t *testing.T) {
	sub, _ := BuildDescriptor("struct_x", []SchemaField{{Name: "a", Type: Int64}})
	f := &Field{Name: "x", Type: Struct, Tag: 1, Sub: sub}

	got, err := Encode(f, map[string]any{"a": int64(7), "extra": "dropped"})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestBuildDescriptorTagAssignment(t *testing.T) {
	d, warnings := BuildDescriptor("t", []SchemaField{
		{Name: "a", Type: Int64},
		{Name: "b", Type: Unknown},
		{Name: "c", Type: Bool},
		{Name: "d", Type: JSON},
		{Name: "e", Type: String},
	})
	require.Len(t, warnings, 1)

	a, ok := d.Field("a")
	require.True(t, ok)
	assert.Equal(t, 1, a.Tag)

	c, ok := d.Field("c")
	require.True(t, ok)
	assert.Equal(t, 2, c.Tag)

	// d (JSON) still consumes a tag: only Unknown fields are skipped
	// during descriptor construction, per spec.md §4.8 step 3. JSON
	// stays unencodable, but that's Encode's concern, not the
	// descriptor's.
	d2, ok := d.Field("d")
	require.True(t, ok)
	assert.Equal(t, 3, d2.Tag)

	e, ok := d.Field("e")
	require.True(t, ok)
	assert.Equal(t, 4, e.Tag)

	_, ok = d.Field("b")
	assert.False(t, ok)
}
