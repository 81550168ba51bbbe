// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bus_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
)

type color string

var colors = []color{"red", "green", "blue"}

func (c color) EnumNumber() int32 {
	for i, v := range colors {
		if v == c {
			return int32(i)
		}
	}
	return 0
}

func (c *color) SetEnumNumber(n int32) {
	*c = colors[n]
}

type point struct {
	X int64 `pb:"1"`
	Y int64 `pb:"2"`
}

type shape struct {
	Name    string            `pb:"1"`
	Color   color             `pb:"2"`
	Filled  bool              `pb:"3"`
	Size    uint64            `pb:"4"`
	Origin  point             `pb:"5"`
	Points  []point           `pb:"6"`
	Weights []uint32          `pb:"7"`
	Tags    []string          `pb:"8"`
	Palette []color           `pb:"9"`
	Labels  map[string]uint32 `pb:"10"`
	Layer   *uint32           `pb:"11"`
	Data    []byte            `pb:"12"`
}

func TestMarshalFields(t *testing.T) {
	data, err := bus.Marshal(&shape{Name: "sq", Color: "blue", Size: 300})
	require.NoError(t, err)

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "sq")
	want = protowire.AppendTag(want, 2, protowire.VarintType)
	want = protowire.AppendVarint(want, 2)
	want = protowire.AppendTag(want, 4, protowire.VarintType)
	want = protowire.AppendVarint(want, 300)
	require.Equal(t, want, data)

	data, err = bus.Marshal(&shape{})
	require.NoError(t, err)
	require.Empty(t, data, "zero fields are omitted")

	layer := uint32(0)
	data, err = bus.Marshal(&shape{Layer: &layer})
	require.NoError(t, err)
	num, typ, n := protowire.ConsumeTag(data)
	require.Greater(t, n, 0)
	require.Equal(t, protowire.Number(11), num)
	require.Equal(t, protowire.VarintType, typ)

	data, err = bus.Marshal(&shape{Weights: []uint32{1, 0, 2}})
	require.NoError(t, err)
	num, typ, n = protowire.ConsumeTag(data)
	require.Equal(t, protowire.Number(7), num)
	require.Equal(t, protowire.BytesType, typ, "repeated scalars are packed")
	packed, m := protowire.ConsumeBytes(data[n:])
	require.Equal(t, len(data)-n, m)
	require.Equal(t, []byte{1, 0, 2}, packed)
}

func TestRoundTrip(t *testing.T) {
	layer := uint32(0)
	in := &shape{
		Name:    "poly",
		Color:   "green",
		Filled:  true,
		Size:    1 << 40,
		Origin:  point{X: -5, Y: 7},
		Points:  []point{{X: 1}, {}, {Y: -2}},
		Weights: []uint32{3, 0, 9},
		Tags:    []string{"a", "", "c"},
		Palette: []color{"red", "blue"},
		Labels:  map[string]uint32{"z": 1, "a": 0},
		Layer:   &layer,
		Data:    []byte{0, 1, 2},
	}
	data, err := bus.Marshal(in)
	require.NoError(t, err)

	out := &shape{}
	require.NoError(t, bus.Unmarshal(data, out))
	require.Equal(t, in, out)
}

func TestUnmarshalDefaults(t *testing.T) {
	out := &shape{Name: "stale", Size: 3}
	require.NoError(t, bus.Unmarshal(nil, out))
	require.Equal(t, &shape{Color: "red"}, out, "absent enums decode to their zero number")
}

func TestUnmarshalWireVariants(t *testing.T) {
	var data []byte
	// unknown fields are skipped
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendString(data, "ignored")
	data = protowire.AppendTag(data, 100, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)
	// unpacked repeated scalars
	data = protowire.AppendTag(data, 7, protowire.VarintType)
	data = protowire.AppendVarint(data, 4)
	data = protowire.AppendTag(data, 7, protowire.VarintType)
	data = protowire.AppendVarint(data, 5)
	// map entry with a missing value
	var entry []byte
	entry = protowire.AppendTag(entry, 1, protowire.BytesType)
	entry = protowire.AppendString(entry, "k")
	data = protowire.AppendTag(data, 10, protowire.BytesType)
	data = protowire.AppendBytes(data, entry)

	out := &shape{}
	require.NoError(t, bus.Unmarshal(data, out))
	require.Equal(t, []uint32{4, 5}, out.Weights)
	require.Equal(t, map[string]uint32{"k": 0}, out.Labels)

	bad := protowire.AppendTag(nil, 1, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 1)
	require.Error(t, bus.Unmarshal(bad, &shape{}), "wire type mismatch")

	require.Error(t, bus.Unmarshal([]byte{0x0a, 0x05, 'a'}, &shape{}), "truncated field")
	require.Error(t, bus.Unmarshal(nil, shape{}), "not a pointer")
}

func TestEncodePanicsOnInvalidMessage(t *testing.T) {
	_, err := bus.Marshal(map[string]string{})
	require.Error(t, err)
	require.Panics(t, func() { bus.Encode(42) })
}
