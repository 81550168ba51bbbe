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

package bitstream_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/bitstream"
)

func TestReadBits(t *testing.T) {
	r := bitstream.NewReader([]byte{0xa5, 0x0f, 0xff, 0x00, 0x12})

	v, err := r.ReadBits(3)
	require.NoError(t, err)
	require.Equal(t, uint32(0x5), v)

	v, err = r.ReadBits(9)
	require.NoError(t, err)
	require.Equal(t, uint32(0x050), v)

	v, err = r.ReadBits(20)
	require.NoError(t, err)
	require.Equal(t, uint32(0xfff00), v)

	require.Equal(t, 8, r.BitsLeft())
	require.True(t, r.ByteAligned())

	v, err = r.ReadBits(8)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12), v)

	_, err = r.ReadBits(1)
	require.ErrorIs(t, err, bitstream.ErrNoMoreData)
}

func TestExpGolomb(t *testing.T) {
	w := bitstream.NewWriter()
	ues := []uint32{0, 1, 2, 3, 7, 8, 255, 65535, 1<<31 - 1}
	ses := []int32{0, 1, -1, 2, -2, 63, -64, 1 << 20, -(1 << 20)}
	for _, v := range ues {
		w.PutUE(v)
	}
	for _, v := range ses {
		w.PutSE(v)
	}
	w.PutTrailingBits()

	r := bitstream.NewReader(w.Bytes())
	for _, expected := range ues {
		v, err := r.ReadUE()
		require.NoError(t, err)
		require.Equal(t, expected, v)
	}
	for _, expected := range ses {
		v, err := r.ReadSE()
		require.NoError(t, err)
		require.Equal(t, expected, v)
	}
	require.False(t, r.MoreRBSPData())
}

func TestExpGolombKnownCodes(t *testing.T) {
	// 1, 010, 011, 00100 -> 0, 1, 2, 3
	r := bitstream.NewReader([]byte{0xa6, 0x40})
	for _, expected := range []uint32{0, 1, 2, 3} {
		v, err := r.ReadUE()
		require.NoError(t, err)
		require.Equal(t, expected, v)
	}

	_, err := bitstream.NewReader([]byte{0, 0, 0, 0, 0}).ReadUE()
	require.ErrorIs(t, err, bitstream.ErrInvalidExpGolomb)
}

func TestEmulationPrevention(t *testing.T) {
	data := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x00, 0x80}

	r := bitstream.NewNALReader(data)
	require.Equal(t, 72, r.BitsLeft())

	v, err := r.ReadBits(24)
	require.NoError(t, err)
	require.Equal(t, uint32(0x000001), v)
	require.Equal(t, 1, r.EmulationPreventionBytes())

	v, err = r.ReadBits(24)
	require.NoError(t, err)
	require.Equal(t, uint32(0x000000), v)
	require.Equal(t, 2, r.EmulationPreventionBytes())
	require.Equal(t, 8, r.BitsLeft())

	require.False(t, r.MoreRBSPData())

	// a verbatim reader does not skip anything
	r = bitstream.NewReader(data)
	v, err = r.ReadBits(24)
	require.NoError(t, err)
	require.Equal(t, uint32(0x000003), v)
	require.Equal(t, 0, r.EmulationPreventionBytes())
}

func TestMoreRBSPDataTrailingZeroWords(t *testing.T) {
	type testCase struct {
		name   string
		data   []byte
		nal    bool
		result bool
	}
	for _, tc := range []*testCase{
		{
			name: "escaped zero words after the stop bit",
			data: []byte{0x40, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03},
			nal:  true,
		},
		{
			name:   "payload after escaped zeros",
			data:   []byte{0x40, 0x00, 0x00, 0x03, 0x01},
			nal:    true,
			result: true,
		},
		{
			name:   "verbatim reader keeps the 0x03",
			data:   []byte{0x40, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03},
			result: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := bitstream.NewReader(tc.data)
			if tc.nal {
				r = bitstream.NewNALReader(tc.data)
			}
			_, err := r.ReadBits(1)
			require.NoError(t, err)
			require.Equal(t, tc.result, r.MoreRBSPData())
			require.Equal(t, 0, r.EmulationPreventionBytes())
		})
	}
}

func TestEscapeRBSP(t *testing.T) {
	require.Equal(t,
		[]byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x03, 0x04},
		bitstream.EscapeRBSP([]byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x03, 0x04}))
}

func TestSignedAndSkip(t *testing.T) {
	w := bitstream.NewWriter()
	w.PutSigned(6, -17)
	w.PutSigned(4, 5)
	w.PutBits(30, 0)
	w.PutFlag(true)
	w.PadToByte()
	require.Equal(t, 48, w.BitLen())

	r := bitstream.NewReader(w.Bytes())
	v, err := r.ReadSigned(6)
	require.NoError(t, err)
	require.Equal(t, int32(-17), v)
	v, err = r.ReadSigned(4)
	require.NoError(t, err)
	require.Equal(t, int32(5), v)
	require.NoError(t, r.SkipBits(30))
	flag, err := r.ReadFlag()
	require.NoError(t, err)
	require.True(t, flag)
	require.NoError(t, r.ByteAlign())
	require.Equal(t, 0, r.BitsLeft())
}
