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

package vp9_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/bitstream"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/vp9"
)

// compressed header and tile data following the uncompressed header
var payload = []byte{0x00, 0x00, 0x12, 0x34}

func putKeyframeStart(w *bitstream.Writer, width, height uint32) {
	w.PutBits(2, 2)         // frame_marker
	w.PutBits(2, 0)         // profile
	w.PutFlag(false)        // show_existing_frame
	w.PutBits(1, 0)         // frame_type
	w.PutFlag(true)         // show_frame
	w.PutFlag(false)        // error_resilient_mode
	w.PutBits(24, 0x498342) // frame_sync_code
	w.PutBits(3, 2)         // color_space
	w.PutFlag(false)        // color_range
	w.PutBits(16, width-1)
	w.PutBits(16, height-1)
	w.PutFlag(false) // render_and_frame_size_different
	w.PutFlag(true)  // refresh_frame_context
	w.PutFlag(false) // frame_parallel_decoding_mode
	w.PutBits(2, 0)  // frame_context_idx
}

// putInterStart writes an inter frame header start. The frame size is
// taken from reference foundRef, or coded explicitly if foundRef < 0.
func putInterStart(w *bitstream.Writer, refresh uint8, refIdx [3]uint8, foundRef int, width, height uint32) {
	w.PutBits(2, 2)  // frame_marker
	w.PutBits(2, 0)  // profile
	w.PutFlag(false) // show_existing_frame
	w.PutBits(1, 1)  // frame_type
	w.PutFlag(true)  // show_frame
	w.PutFlag(false) // error_resilient_mode
	w.PutBits(2, 0)  // reset_frame_context
	w.PutBits(8, uint32(refresh))
	for _, idx := range refIdx {
		w.PutBits(3, uint32(idx))
		w.PutFlag(false) // ref_frame_sign_bias
	}
	for i := 0; i < 3; i++ {
		w.PutFlag(i == foundRef)
		if i == foundRef {
			break
		}
	}
	if foundRef < 0 {
		w.PutBits(16, width-1)
		w.PutBits(16, height-1)
	}
	w.PutFlag(false) // render_and_frame_size_different
	w.PutFlag(true)  // allow_high_precision_mv
	w.PutFlag(true)  // is_filter_switchable
	w.PutFlag(true)  // refresh_frame_context
	w.PutFlag(false) // frame_parallel_decoding_mode
	w.PutBits(2, 0)  // frame_context_idx
}

// putTail writes loop filter, quantization, segmentation and tile info for
// frames narrower than 512 pixels, and returns the complete frame.
func putTail(w *bitstream.Writer, lfLevel, baseQ uint8, segmentation func(*bitstream.Writer)) []byte {
	w.PutBits(6, uint32(lfLevel))
	w.PutBits(3, 0)  // loop_filter_sharpness
	w.PutFlag(true)  // loop_filter_delta_enabled
	w.PutFlag(false) // loop_filter_delta_update
	w.PutBits(8, uint32(baseQ))
	w.PutFlag(false) // delta_q_y_dc
	w.PutFlag(false) // delta_q_uv_dc
	w.PutFlag(false) // delta_q_uv_ac
	if segmentation == nil {
		w.PutFlag(false)
	} else {
		segmentation(w)
	}
	w.PutBits(1, 0)  // tile_rows_log2
	w.PutBits(16, 2) // header_size_in_bytes
	w.PadToByte()
	return append(w.Bytes(), payload...)
}

func keyframe(width, height uint32, lfLevel, baseQ uint8) []byte {
	w := bitstream.NewWriter()
	putKeyframeStart(w, width, height)
	return putTail(w, lfLevel, baseQ, nil)
}

func interFrame(refresh uint8, foundRef int, width, height uint32) []byte {
	w := bitstream.NewWriter()
	putInterStart(w, refresh, [3]uint8{0, 1, 2}, foundRef, width, height)
	return putTail(w, 10, 60, nil)
}

// superframe packs frames with two bytes per frame size.
func superframe(frames ...[]byte) []byte {
	var (
		data   []byte
		marker = byte(0xc0 | 1<<3 | (len(frames) - 1))
	)
	for _, f := range frames {
		data = append(data, f...)
	}
	data = append(data, marker)
	for _, f := range frames {
		data = append(data, byte(len(f)), byte(len(f)>>8))
	}
	return append(data, marker)
}

func TestParseSuperframe(t *testing.T) {
	type testCase struct {
		name   string
		data   []byte
		frames []vp9.FrameInfo
		fail   bool
	}

	twoFrames := superframe(make([]byte, 1333), make([]byte, 214))

	mismatch := append(make([]byte, 10), 0xc9)
	mismatch[5] = 0x00

	zeroSize := append(make([]byte, 10), 0xc1, 0x00, 0x05, 0xc1)
	tooLarge := append(make([]byte, 10), 0xc1, 0x08, 0x05, 0xc1)

	for _, tc := range []*testCase{
		{
			name:   "single frame",
			data:   []byte{0x82, 0x49, 0x83, 0x42},
			frames: []vp9.FrameInfo{{Offset: 0, Size: 4}},
		},
		{
			name:   "two frames",
			data:   twoFrames,
			frames: []vp9.FrameInfo{{Offset: 0, Size: 1333}, {Offset: 1333, Size: 214}},
		},
		{
			name: "one byte sizes",
			data: append(make([]byte, 7), 0xc1, 0x03, 0x04, 0xc1),
			frames: []vp9.FrameInfo{
				{Offset: 0, Size: 3},
				{Offset: 3, Size: 4},
			},
		},
		{
			name:   "index mismatch",
			data:   mismatch,
			frames: []vp9.FrameInfo{{Offset: 0, Size: 11}},
		},
		{
			name: "zero size frame",
			data: zeroSize,
			fail: true,
		},
		{
			name: "frame past index",
			data: tooLarge,
			fail: true,
		},
		{
			name: "empty",
			data: nil,
			fail: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			frames, err := vp9.ParseSuperframe(tc.data)
			if tc.fail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.frames, frames)
		})
	}

	require.Len(t, twoFrames, 1547+6)
}

func TestParseKeyframe(t *testing.T) {
	p := vp9.NewParser()
	require.NoError(t, p.SetStream(keyframe(352, 288, 10, 60)))

	hdr, err := p.ParseNextFrame()
	require.NoError(t, err)

	require.True(t, hdr.IsKeyframe())
	require.True(t, hdr.IsIntra())
	require.True(t, hdr.ShowFrame)
	require.Equal(t, uint8(0), hdr.Profile)
	require.Equal(t, uint8(8), hdr.BitDepth)
	require.Equal(t, vp9.ColorSpaceBT709, hdr.ColorSpace)
	require.Equal(t, uint8(1), hdr.SubsamplingX)
	require.Equal(t, uint8(1), hdr.SubsamplingY)
	require.Equal(t, uint32(352), hdr.FrameWidth)
	require.Equal(t, uint32(288), hdr.FrameHeight)
	require.Equal(t, uint32(352), hdr.RenderWidth)
	require.Equal(t, uint32(288), hdr.RenderHeight)
	require.Equal(t, uint8(0xff), hdr.RefreshFrameFlags)
	require.Equal(t, uint8(60), hdr.QuantParams.BaseQIdx)
	require.False(t, hdr.QuantParams.IsLossless())
	require.Equal(t, uint8(0), hdr.TileColsLog2)
	require.Equal(t, uint8(0), hdr.TileRowsLog2)

	require.Equal(t, 15, hdr.UncompressedHeaderSize)
	require.Equal(t, uint16(2), hdr.HeaderSizeInBytes)

	require.Equal(t, 44, hdr.MiCols())
	require.Equal(t, 36, hdr.MiRows())
	require.Equal(t, 6, hdr.Sb64Cols())
	require.Equal(t, 5, hdr.Sb64Rows())

	for i := 0; i < vp9.NumRefFrames; i++ {
		require.Equal(t, vp9.ReferenceSlot{Width: 352, Height: 288}, p.RefSlot(i))
	}

	y, uv := p.Dequant(0)
	require.Equal(t, [2]int16{57, 67}, y)
	require.Equal(t, [2]int16{57, 67}, uv)

	_, err = p.ParseNextFrame()
	require.ErrorIs(t, err, vp9.ErrEndOfStream)
}

func TestParseInterFrames(t *testing.T) {
	p := vp9.NewParser()
	require.NoError(t, p.SetStream(superframe(
		keyframe(352, 288, 10, 60),
		interFrame(0x01, 1, 0, 0),
		interFrame(0x04, -1, 320, 240),
	)))

	hdr, err := p.ParseNextFrame()
	require.NoError(t, err)
	require.True(t, hdr.IsKeyframe())

	hdr, err = p.ParseNextFrame()
	require.NoError(t, err)
	require.False(t, hdr.IsIntra())
	require.Equal(t, [vp9.RefsPerFrame]uint8{0, 1, 2}, hdr.RefFrameIdx)
	require.Equal(t, uint32(352), hdr.FrameWidth)
	require.Equal(t, uint32(288), hdr.FrameHeight)
	require.Equal(t, uint8(8), hdr.BitDepth)
	require.Equal(t, vp9.ColorSpaceBT709, hdr.ColorSpace)
	require.Equal(t, vp9.FilterSwitchable, hdr.InterpFilter)
	require.True(t, hdr.AllowHighPrecisionMv)

	hdr, err = p.ParseNextFrame()
	require.NoError(t, err)
	require.Equal(t, uint32(320), hdr.FrameWidth)
	require.Equal(t, uint32(240), hdr.FrameHeight)
	require.True(t, hdr.RefreshFlag(2))
	require.False(t, hdr.RefreshFlag(0))

	var want, slots []vp9.ReferenceSlot
	for i := 0; i < vp9.NumRefFrames; i++ {
		if i == 2 {
			want = append(want, vp9.ReferenceSlot{Width: 320, Height: 240})
		} else {
			want = append(want, vp9.ReferenceSlot{Width: 352, Height: 288})
		}
		slots = append(slots, p.RefSlot(i))
	}
	if diff := cmp.Diff(want, slots); diff != "" {
		t.Errorf("reference slots mismatch (-want +got):\n%s", diff)
	}

	_, err = p.ParseNextFrame()
	require.ErrorIs(t, err, vp9.ErrEndOfStream)
}

func TestInterFrameWithoutReference(t *testing.T) {
	p := vp9.NewParser()
	require.NoError(t, p.SetStream(interFrame(0x01, 0, 0, 0)))
	_, err := p.ParseNextFrame()
	require.Error(t, err)
}

func TestShowExistingFrame(t *testing.T) {
	// frame_marker, profile 0, show_existing_frame, frame_to_show_map_idx 3
	show := []byte{0x8b}

	p := vp9.NewParser()
	require.NoError(t, p.SetStream(show))
	_, err := p.ParseNextFrame()
	require.Error(t, err)

	require.NoError(t, p.SetStream(keyframe(352, 288, 10, 60)))
	_, err = p.ParseNextFrame()
	require.NoError(t, err)

	require.NoError(t, p.SetStream(show))
	hdr, err := p.ParseNextFrame()
	require.NoError(t, err)
	require.True(t, hdr.ShowExistingFrame)
	require.Equal(t, uint8(3), hdr.FrameToShowMapIdx)
	require.Equal(t, uint32(352), hdr.FrameWidth)
}

func TestLossless(t *testing.T) {
	p := vp9.NewParser()
	require.NoError(t, p.SetStream(keyframe(64, 64, 0, 0)))
	hdr, err := p.ParseNextFrame()
	require.NoError(t, err)
	require.True(t, hdr.QuantParams.IsLossless())

	y, _ := p.Dequant(0)
	require.Equal(t, [2]int16{4, 4}, y)
}

func TestLoopFilterLevels(t *testing.T) {
	type testCase struct {
		name   string
		level  uint8
		intra  uint8
		last   uint8
		golden uint8
	}

	for _, tc := range []*testCase{
		{name: "unscaled deltas", level: 10, intra: 11, last: 10, golden: 9},
		{name: "scaled deltas", level: 36, intra: 38, last: 36, golden: 34},
		{name: "clamped", level: 63, intra: 63, last: 63, golden: 61},
		{name: "disabled", level: 0, intra: 0, last: 0, golden: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := vp9.NewParser()
			require.NoError(t, p.SetStream(keyframe(64, 64, tc.level, 60)))
			_, err := p.ParseNextFrame()
			require.NoError(t, err)

			lf := p.LoopFilter()
			require.Equal(t, tc.level, lf.Level)
			require.True(t, lf.DeltaEnabled)
			require.Equal(t, [4]int8{1, 0, -1, -1}, lf.RefDeltas)
			require.Equal(t, tc.intra, lf.Lvl[0][vp9.IntraFrame][0])
			require.Equal(t, uint8(0), lf.Lvl[0][vp9.IntraFrame][1])
			require.Equal(t, tc.last, lf.Lvl[0][vp9.LastFrame][0])
			require.Equal(t, tc.golden, lf.Lvl[0][vp9.GoldenFrame][1])
			require.Equal(t, tc.golden, lf.Lvl[0][vp9.AltRefFrame][0])
		})
	}
}

func TestSegmentation(t *testing.T) {
	w := bitstream.NewWriter()
	putKeyframeStart(w, 64, 64)
	frame := putTail(w, 10, 60, func(w *bitstream.Writer) {
		w.PutFlag(true)  // segmentation_enabled
		w.PutFlag(false) // segmentation_update_map
		w.PutFlag(true)  // segmentation_update_data
		w.PutFlag(false) // segmentation_abs_or_delta_update
		for i := 0; i < vp9.MaxSegments; i++ {
			switch i {
			case 1:
				w.PutFlag(true) // alt q
				w.PutSigned(8, -20)
				w.PutFlag(true) // alt lf
				w.PutSigned(6, 5)
				w.PutFlag(false)
				w.PutFlag(false)
			case 2:
				w.PutFlag(false)
				w.PutFlag(false)
				w.PutFlag(false)
				w.PutFlag(true) // skip
			default:
				w.PutBits(4, 0)
			}
		}
	})

	p := vp9.NewParser()
	require.NoError(t, p.SetStream(frame))
	hdr, err := p.ParseNextFrame()
	require.NoError(t, err)

	seg := p.Segmentation()
	require.True(t, seg.Enabled)
	require.True(t, seg.UpdateData)
	require.True(t, seg.IsFeatureEnabled(1, vp9.SegLvlAltQ))
	require.Equal(t, int16(-20), seg.FeatureValue(1, vp9.SegLvlAltQ))
	require.True(t, seg.IsFeatureEnabled(2, vp9.SegLvlSkip))
	require.False(t, seg.IsFeatureEnabled(2, vp9.SegLvlRefFrame))
	require.False(t, seg.IsFeatureEnabled(0, vp9.SegLvlAltQ))

	require.Equal(t, 60, p.GetQIndex(&hdr.QuantParams, 0))
	require.Equal(t, 40, p.GetQIndex(&hdr.QuantParams, 1))

	y, _ := p.Dequant(1)
	require.Equal(t, [2]int16{41, 47}, y)
	y, _ = p.Dequant(3)
	require.Equal(t, [2]int16{57, 67}, y)

	lf := p.LoopFilter()
	require.Equal(t, uint8(15), lf.Lvl[1][vp9.LastFrame][0])
	require.Equal(t, uint8(16), lf.Lvl[1][vp9.IntraFrame][0])
	require.Equal(t, uint8(10), lf.Lvl[0][vp9.LastFrame][0])
}

func TestDequantLookup(t *testing.T) {
	require.Equal(t, int16(4), vp9.DcQ(-5, 8))
	require.Equal(t, int16(1336), vp9.DcQ(300, 8))
	require.Equal(t, int16(1828), vp9.AcQ(255, 8))
	require.Equal(t, int16(5347), vp9.DcQ(255, 10))
	require.Equal(t, int16(29247), vp9.AcQ(255, 12))
	require.Equal(t, int16(93), vp9.DcQ(100, 8))
	require.Equal(t, int16(112), vp9.AcQ(100, 8))
}

func TestInvalidFrames(t *testing.T) {
	p := vp9.NewParser()

	require.NoError(t, p.SetStream([]byte{0x00, 0x00, 0x00, 0x00}))
	_, err := p.ParseNextFrame()
	require.Error(t, err)

	frame := keyframe(64, 64, 10, 60)
	frame[1] ^= 0xff // corrupt the sync code
	require.NoError(t, p.SetStream(frame))
	_, err = p.ParseNextFrame()
	require.Error(t, err)

	frame = keyframe(64, 64, 10, 60)
	require.NoError(t, p.SetStream(frame[:len(frame)-len(payload)]))
	_, err = p.ParseNextFrame()
	require.Error(t, err)
}
