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

package vp9

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/bitstream"
)

const (
	// NumRefFrames is the number of reference frame slots.
	NumRefFrames = 8
	// RefsPerFrame is the number of references an inter frame uses.
	RefsPerFrame = 3
	// MaxSegments is the number of segments.
	MaxSegments = 8
	// MaxLoopFilter is the largest loop filter level.
	MaxLoopFilter = 63

	frameMarker = 0x2
	syncCode    = 0x498342

	minTileWidthB64 = 4
	maxTileWidthB64 = 64
)

// FrameType is the type of a frame.
type FrameType uint8

const (
	KeyFrame   FrameType = 0
	InterFrame FrameType = 1
)

func (t FrameType) String() string {
	if t == KeyFrame {
		return "key"
	}
	return "inter"
}

// ColorSpace is the color_space of a frame.
type ColorSpace uint8

const (
	ColorSpaceUnknown  ColorSpace = 0
	ColorSpaceBT601    ColorSpace = 1
	ColorSpaceBT709    ColorSpace = 2
	ColorSpaceSMPTE170 ColorSpace = 3
	ColorSpaceSMPTE240 ColorSpace = 4
	ColorSpaceBT2020   ColorSpace = 5
	ColorSpaceReserved ColorSpace = 6
	ColorSpaceSRGB     ColorSpace = 7
)

// InterpolationFilter is the interpolation filter of an inter frame.
type InterpolationFilter uint8

const (
	FilterEightTap       InterpolationFilter = 0
	FilterEightTapSmooth InterpolationFilter = 1
	FilterEightTapSharp  InterpolationFilter = 2
	FilterBilinear       InterpolationFilter = 3
	FilterSwitchable     InterpolationFilter = 4
)

// literalToFilter maps raw_interpolation_filter to a filter type.
var literalToFilter = [4]InterpolationFilter{
	FilterEightTapSmooth, FilterEightTap, FilterEightTapSharp, FilterBilinear,
}

// ReferenceFrame identifies a reference of an inter frame.
type ReferenceFrame int

const (
	IntraFrame  ReferenceFrame = 0
	LastFrame   ReferenceFrame = 1
	GoldenFrame ReferenceFrame = 2
	AltRefFrame ReferenceFrame = 3
	// MaxRefFrameTypes is the number of ReferenceFrame values.
	MaxRefFrameTypes = 4
)

// QuantizationParams are the quantization parameters of a frame.
type QuantizationParams struct {
	BaseQIdx   uint8
	DeltaQYDc  int8
	DeltaQUVDc int8
	DeltaQUVAc int8
}

// IsLossless returns true if the frame is coded losslessly.
func (q *QuantizationParams) IsLossless() bool {
	return q.BaseQIdx == 0 && q.DeltaQYDc == 0 && q.DeltaQUVDc == 0 && q.DeltaQUVAc == 0
}

// FrameHeader is a parsed uncompressed frame header.
type FrameHeader struct {
	Profile uint8

	ShowExistingFrame bool
	FrameToShowMapIdx uint8

	FrameType          FrameType
	ShowFrame          bool
	ErrorResilientMode bool

	BitDepth     uint8
	ColorSpace   ColorSpace
	ColorRange   bool
	SubsamplingX uint8
	SubsamplingY uint8

	FrameWidth   uint32
	FrameHeight  uint32
	RenderWidth  uint32
	RenderHeight uint32

	IntraOnly         bool
	ResetFrameContext uint8
	RefreshFrameFlags uint8
	RefFrameIdx       [RefsPerFrame]uint8
	RefFrameSignBias  [MaxRefFrameTypes]bool

	AllowHighPrecisionMv bool
	InterpFilter         InterpolationFilter

	RefreshFrameContext       bool
	FrameParallelDecodingMode bool
	FrameContextIdx           uint8

	QuantParams QuantizationParams

	TileColsLog2 uint8
	TileRowsLog2 uint8

	// UncompressedHeaderSize is the size of the uncompressed header in
	// bytes, HeaderSizeInBytes the size of the compressed header following
	// it.
	UncompressedHeaderSize int
	HeaderSizeInBytes      uint16

	// Data is the whole frame.
	Data []byte
}

// IsKeyframe returns true for key frames.
func (h *FrameHeader) IsKeyframe() bool {
	return h.FrameType == KeyFrame
}

// IsIntra returns true for key frames and intra-only frames.
func (h *FrameHeader) IsIntra() bool {
	return h.IsKeyframe() || h.IntraOnly
}

// RefreshFlag returns true if the frame refreshes reference slot i.
func (h *FrameHeader) RefreshFlag(i int) bool {
	return h.RefreshFrameFlags&(1<<uint(i)) != 0
}

// MiCols returns the frame width in 8x8 mode info units.
func (h *FrameHeader) MiCols() int { return (int(h.FrameWidth) + 7) >> 3 }

// MiRows returns the frame height in 8x8 mode info units.
func (h *FrameHeader) MiRows() int { return (int(h.FrameHeight) + 7) >> 3 }

// Sb64Cols returns the frame width in 64x64 superblocks.
func (h *FrameHeader) Sb64Cols() int { return (h.MiCols() + 7) >> 3 }

// Sb64Rows returns the frame height in 64x64 superblocks.
func (h *FrameHeader) Sb64Rows() int { return (h.MiRows() + 7) >> 3 }

// headerReader reads uncompressed header fields, latching the first error.
type headerReader struct {
	br *bitstream.Reader
	e  error
}

func (r *headerReader) f(n int, name string) uint32 {
	if r.e != nil {
		return 0
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		r.e = errors.Wrapf(err, "vp9: %s", name)
		return 0
	}
	return v
}

func (r *headerReader) flag(name string) bool {
	return r.f(1, name) == 1
}

// su reads an n-bit magnitude followed by a sign bit.
func (r *headerReader) su(n int, name string) int32 {
	if r.e != nil {
		return 0
	}
	v, err := r.br.ReadSigned(n)
	if err != nil {
		r.e = errors.Wrapf(err, "vp9: %s", name)
		return 0
	}
	return v
}

func (r *headerReader) check(ok bool, format string, args ...interface{}) {
	if r.e == nil && !ok {
		r.e = errors.New("vp9: " + fmt.Sprintf(format, args...))
	}
}

// uncompressedHeaderParser parses uncompressed headers against the state
// carried between frames.
type uncompressedHeaderParser struct {
	r     *headerReader
	state *parserState
}

func (p *uncompressedHeaderParser) parse(data []byte, hdr *FrameHeader) error {
	p.r = &headerReader{br: bitstream.NewReader(data)}
	r := p.r

	marker := r.f(2, "frame_marker")
	r.check(marker == frameMarker, "invalid frame marker %d", marker)

	low := r.f(1, "profile_low_bit")
	high := r.f(1, "profile_high_bit")
	hdr.Profile = uint8(high<<1 | low)
	if hdr.Profile == 3 {
		r.check(!r.flag("reserved_zero"), "reserved bit set for profile 3")
	}

	hdr.ShowExistingFrame = r.flag("show_existing_frame")
	if hdr.ShowExistingFrame {
		hdr.FrameToShowMapIdx = uint8(r.f(3, "frame_to_show_map_idx"))
		return r.e
	}

	hdr.FrameType = FrameType(r.f(1, "frame_type"))
	hdr.ShowFrame = r.flag("show_frame")
	hdr.ErrorResilientMode = r.flag("error_resilient_mode")

	if hdr.IsKeyframe() {
		p.readSyncCode()
		p.readColorConfig(hdr)
		p.readFrameSize(hdr)
		p.readRenderSize(hdr)
		hdr.RefreshFrameFlags = 0xff
	} else {
		if !hdr.ShowFrame {
			hdr.IntraOnly = r.flag("intra_only")
		}
		if !hdr.ErrorResilientMode {
			hdr.ResetFrameContext = uint8(r.f(2, "reset_frame_context"))
		}

		if hdr.IntraOnly {
			p.readSyncCode()
			if hdr.Profile > 0 {
				p.readColorConfig(hdr)
			} else {
				hdr.BitDepth = 8
				hdr.ColorSpace = ColorSpaceBT601
				hdr.SubsamplingX, hdr.SubsamplingY = 1, 1
			}
			hdr.RefreshFrameFlags = uint8(r.f(8, "refresh_frame_flags"))
			p.readFrameSize(hdr)
			p.readRenderSize(hdr)
		} else {
			// inter frames inherit the color config
			hdr.BitDepth = p.state.bitDepth
			hdr.ColorSpace = p.state.colorSpace
			hdr.ColorRange = p.state.colorRange
			hdr.SubsamplingX = p.state.subsamplingX
			hdr.SubsamplingY = p.state.subsamplingY

			hdr.RefreshFrameFlags = uint8(r.f(8, "refresh_frame_flags"))
			for i := 0; i < RefsPerFrame; i++ {
				hdr.RefFrameIdx[i] = uint8(r.f(3, "ref_frame_idx"))
				hdr.RefFrameSignBias[int(LastFrame)+i] = r.flag("ref_frame_sign_bias")
			}
			p.readFrameSizeWithRefs(hdr)
			hdr.AllowHighPrecisionMv = r.flag("allow_high_precision_mv")
			p.readInterpolationFilter(hdr)
		}
	}

	if !hdr.ErrorResilientMode {
		hdr.RefreshFrameContext = r.flag("refresh_frame_context")
		hdr.FrameParallelDecodingMode = r.flag("frame_parallel_decoding_mode")
	} else {
		hdr.FrameParallelDecodingMode = true
	}
	hdr.FrameContextIdx = uint8(r.f(2, "frame_context_idx"))

	if r.e != nil {
		return r.e
	}

	if hdr.IsIntra() || hdr.ErrorResilientMode {
		p.state.setupPastIndependence()
	}

	p.readLoopFilterParams()
	p.readQuantizationParams(&hdr.QuantParams)
	p.readSegmentationParams()
	p.readTileInfo(hdr)

	hdr.HeaderSizeInBytes = uint16(r.f(16, "header_size_in_bytes"))
	r.check(hdr.HeaderSizeInBytes != 0, "invalid zero-length compressed header")
	if r.e != nil {
		return r.e
	}

	hdr.UncompressedHeaderSize = (r.br.BitsRead() + 7) / 8
	if hdr.UncompressedHeaderSize+int(hdr.HeaderSizeInBytes) > len(data) {
		return errors.Errorf("vp9: headers (%d + %d bytes) exceed frame of %d bytes",
			hdr.UncompressedHeaderSize, hdr.HeaderSizeInBytes, len(data))
	}

	return nil
}

func (p *uncompressedHeaderParser) readSyncCode() {
	code := p.r.f(24, "frame_sync_code")
	p.r.check(code == syncCode, "invalid frame sync code 0x%06x", code)
}

func (p *uncompressedHeaderParser) readColorConfig(hdr *FrameHeader) {
	r := p.r

	hdr.BitDepth = 8
	if hdr.Profile >= 2 {
		if r.flag("ten_or_twelve_bit") {
			hdr.BitDepth = 12
		} else {
			hdr.BitDepth = 10
		}
	}

	hdr.ColorSpace = ColorSpace(r.f(3, "color_space"))
	if hdr.ColorSpace != ColorSpaceSRGB {
		hdr.ColorRange = r.flag("color_range")
		if hdr.Profile == 1 || hdr.Profile == 3 {
			hdr.SubsamplingX = uint8(r.f(1, "subsampling_x"))
			hdr.SubsamplingY = uint8(r.f(1, "subsampling_y"))
			r.check(hdr.SubsamplingX != 1 || hdr.SubsamplingY != 1,
				"4:2:0 subsampling is not allowed in profile %d", hdr.Profile)
			r.check(!r.flag("reserved_zero"), "reserved bit set in color config")
		} else {
			hdr.SubsamplingX, hdr.SubsamplingY = 1, 1
		}
	} else {
		hdr.ColorRange = true
		r.check(hdr.Profile == 1 || hdr.Profile == 3, "sRGB is not allowed in profile %d", hdr.Profile)
		r.check(!r.flag("reserved_zero"), "reserved bit set in color config")
	}
}

func (p *uncompressedHeaderParser) readFrameSize(hdr *FrameHeader) {
	hdr.FrameWidth = p.r.f(16, "frame_width_minus_1") + 1
	hdr.FrameHeight = p.r.f(16, "frame_height_minus_1") + 1
}

func (p *uncompressedHeaderParser) readRenderSize(hdr *FrameHeader) {
	if p.r.flag("render_and_frame_size_different") {
		hdr.RenderWidth = p.r.f(16, "render_width_minus_1") + 1
		hdr.RenderHeight = p.r.f(16, "render_height_minus_1") + 1
	} else {
		hdr.RenderWidth = hdr.FrameWidth
		hdr.RenderHeight = hdr.FrameHeight
	}
}

func (p *uncompressedHeaderParser) readFrameSizeWithRefs(hdr *FrameHeader) {
	found := false
	for i := 0; i < RefsPerFrame && !found; i++ {
		found = p.r.flag("found_ref")
		if found {
			slot := p.state.refSlots[hdr.RefFrameIdx[i]]
			p.r.check(slot.Width != 0 && slot.Height != 0,
				"reference slot %d has no frame", hdr.RefFrameIdx[i])
			hdr.FrameWidth = slot.Width
			hdr.FrameHeight = slot.Height
		}
	}
	if !found {
		p.readFrameSize(hdr)
	}
	p.readRenderSize(hdr)
}

func (p *uncompressedHeaderParser) readInterpolationFilter(hdr *FrameHeader) {
	if p.r.flag("is_filter_switchable") {
		hdr.InterpFilter = FilterSwitchable
		return
	}
	hdr.InterpFilter = literalToFilter[p.r.f(2, "raw_interpolation_filter")]
}

func (p *uncompressedHeaderParser) readLoopFilterParams() {
	r := p.r
	lf := &p.state.loopFilter

	lf.Level = uint8(r.f(6, "loop_filter_level"))
	lf.Sharpness = uint8(r.f(3, "loop_filter_sharpness"))
	lf.DeltaUpdate = false

	lf.DeltaEnabled = r.flag("loop_filter_delta_enabled")
	if !lf.DeltaEnabled {
		return
	}
	lf.DeltaUpdate = r.flag("loop_filter_delta_update")
	if !lf.DeltaUpdate {
		return
	}
	for i := 0; i < MaxRefFrameTypes; i++ {
		lf.UpdateRefDeltas[i] = r.flag("update_ref_delta")
		if lf.UpdateRefDeltas[i] {
			lf.RefDeltas[i] = int8(r.su(6, "loop_filter_ref_deltas"))
		}
	}
	for i := 0; i < maxModeLfDeltas; i++ {
		lf.UpdateModeDeltas[i] = r.flag("update_mode_delta")
		if lf.UpdateModeDeltas[i] {
			lf.ModeDeltas[i] = int8(r.su(6, "loop_filter_mode_deltas"))
		}
	}
}

func (p *uncompressedHeaderParser) readDeltaQ(name string) int8 {
	if p.r.flag("delta_coded") {
		return int8(p.r.su(4, name))
	}
	return 0
}

func (p *uncompressedHeaderParser) readQuantizationParams(q *QuantizationParams) {
	q.BaseQIdx = uint8(p.r.f(8, "base_q_idx"))
	q.DeltaQYDc = p.readDeltaQ("delta_q_y_dc")
	q.DeltaQUVDc = p.readDeltaQ("delta_q_uv_dc")
	q.DeltaQUVAc = p.readDeltaQ("delta_q_uv_ac")
}

func (p *uncompressedHeaderParser) readProb(name string) uint8 {
	if p.r.flag("prob_coded") {
		return uint8(p.r.f(8, name))
	}
	return maxProb
}

func (p *uncompressedHeaderParser) readSegmentationParams() {
	r := p.r
	seg := &p.state.segmentation

	seg.UpdateMap = false
	seg.UpdateData = false

	seg.Enabled = r.flag("segmentation_enabled")
	if !seg.Enabled {
		return
	}

	seg.UpdateMap = r.flag("segmentation_update_map")
	if seg.UpdateMap {
		for i := range seg.TreeProbs {
			seg.TreeProbs[i] = p.readProb("segmentation_tree_probs")
		}
		seg.TemporalUpdate = r.flag("segmentation_temporal_update")
		for i := range seg.PredProbs {
			seg.PredProbs[i] = maxProb
			if seg.TemporalUpdate {
				seg.PredProbs[i] = p.readProb("segmentation_pred_prob")
			}
		}
	}

	seg.UpdateData = r.flag("segmentation_update_data")
	if !seg.UpdateData {
		return
	}
	seg.AbsOrDeltaUpdate = r.flag("segmentation_abs_or_delta_update")
	seg.FeatureEnabled = [MaxSegments][SegLvlMax]bool{}
	seg.FeatureData = [MaxSegments][SegLvlMax]int16{}
	for i := 0; i < MaxSegments; i++ {
		for j := SegLvlFeature(0); j < SegLvlMax; j++ {
			if !r.flag("feature_enabled") {
				continue
			}
			seg.FeatureEnabled[i][j] = true
			value := int16(0)
			if bits := segmentationFeatureBits[j]; bits > 0 {
				value = int16(r.f(bits, "feature_value"))
			}
			if segmentationFeatureSigned[j] && r.flag("feature_sign") {
				value = -value
			}
			seg.FeatureData[i][j] = value
		}
	}
}

func calcMinLog2TileCols(sb64Cols int) uint8 {
	minLog2 := uint8(0)
	for (maxTileWidthB64 << minLog2) < sb64Cols {
		minLog2++
	}
	return minLog2
}

func calcMaxLog2TileCols(sb64Cols int) uint8 {
	maxLog2 := uint8(1)
	for (sb64Cols >> maxLog2) >= minTileWidthB64 {
		maxLog2++
	}
	return maxLog2 - 1
}

func (p *uncompressedHeaderParser) readTileInfo(hdr *FrameHeader) {
	sb64Cols := hdr.Sb64Cols()
	minLog2 := calcMinLog2TileCols(sb64Cols)
	maxLog2 := calcMaxLog2TileCols(sb64Cols)

	hdr.TileColsLog2 = minLog2
	for hdr.TileColsLog2 < maxLog2 {
		if !p.r.flag("increment_tile_cols_log2") {
			break
		}
		hdr.TileColsLog2++
	}

	hdr.TileRowsLog2 = uint8(p.r.f(1, "tile_rows_log2"))
	if hdr.TileRowsLog2 > 0 {
		hdr.TileRowsLog2 += uint8(p.r.f(1, "increment_tile_rows_log2"))
	}
}
