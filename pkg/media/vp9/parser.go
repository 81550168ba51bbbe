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
	"github.com/pkg/errors"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var log = logger.Get("vp9")

// ErrEndOfStream is returned by ParseNextFrame once every frame of the
// current stream has been returned.
var ErrEndOfStream = errors.New("vp9: end of stream")

const (
	maxModeLfDeltas = 2
	maxProb         = 255
)

// SegLvlFeature is a segmentation feature.
type SegLvlFeature int

const (
	SegLvlAltQ SegLvlFeature = iota
	SegLvlAltLF
	SegLvlRefFrame
	SegLvlSkip
	SegLvlMax
)

var (
	segmentationFeatureBits   = [SegLvlMax]int{8, 6, 2, 0}
	segmentationFeatureSigned = [SegLvlMax]bool{true, true, false, false}
)

// ReferenceSlot is the frame size stored in a reference slot. A zero size
// means the slot has never been refreshed.
type ReferenceSlot struct {
	Width  uint32
	Height uint32
}

// LoopFilterParams are the loop filter parameters, carried between frames.
type LoopFilterParams struct {
	Level     uint8
	Sharpness uint8

	DeltaEnabled bool
	DeltaUpdate  bool

	UpdateRefDeltas  [MaxRefFrameTypes]bool
	RefDeltas        [MaxRefFrameTypes]int8
	UpdateModeDeltas [maxModeLfDeltas]bool
	ModeDeltas       [maxModeLfDeltas]int8

	// Lvl is the filter level per segment, reference frame and mode delta.
	Lvl [MaxSegments][MaxRefFrameTypes][maxModeLfDeltas]uint8
}

// SegmentationParams are the segmentation parameters, carried between frames.
type SegmentationParams struct {
	Enabled bool

	UpdateMap      bool
	TreeProbs      [7]uint8
	TemporalUpdate bool
	PredProbs      [3]uint8

	UpdateData       bool
	AbsOrDeltaUpdate bool
	FeatureEnabled   [MaxSegments][SegLvlMax]bool
	FeatureData      [MaxSegments][SegLvlMax]int16

	// YDequant and UVDequant hold the DC and AC dequantization scales of
	// each segment.
	YDequant  [MaxSegments][2]int16
	UVDequant [MaxSegments][2]int16
}

// IsFeatureEnabled returns true if feature f is enabled for segment.
func (s *SegmentationParams) IsFeatureEnabled(segment int, f SegLvlFeature) bool {
	return s.Enabled && s.FeatureEnabled[segment][f]
}

// FeatureValue returns the value of feature f for segment.
func (s *SegmentationParams) FeatureValue(segment int, f SegLvlFeature) int16 {
	return s.FeatureData[segment][f]
}

// parserState is the state carried from one frame to the next.
type parserState struct {
	bitDepth     uint8
	colorSpace   ColorSpace
	colorRange   bool
	subsamplingX uint8
	subsamplingY uint8

	refSlots     [NumRefFrames]ReferenceSlot
	loopFilter   LoopFilterParams
	segmentation SegmentationParams
}

func (s *parserState) setupPastIndependence() {
	s.loopFilter.DeltaEnabled = true
	s.loopFilter.RefDeltas = [MaxRefFrameTypes]int8{1, 0, -1, -1}
	s.loopFilter.ModeDeltas = [maxModeLfDeltas]int8{0, 0}
	s.segmentation = SegmentationParams{}
}

// Parser parses VP9 frame headers from a stream of chunks, each chunk
// holding a single frame or a superframe.
type Parser struct {
	state  parserState
	stream []byte
	frames []FrameInfo
}

// NewParser creates a new parser.
func NewParser() *Parser {
	p := &Parser{}
	p.Reset()
	return p
}

// Reset forgets all state carried between frames.
func (p *Parser) Reset() {
	p.state = parserState{bitDepth: 8}
	p.state.setupPastIndependence()
	p.stream = nil
	p.frames = nil
}

// SetStream sets the chunk to parse frames from. Frames pending from a
// previous chunk are dropped.
func (p *Parser) SetStream(data []byte) error {
	frames, err := ParseSuperframe(data)
	if err != nil {
		return err
	}
	p.stream = data
	p.frames = frames
	return nil
}

// ParseNextFrame parses the header of the next frame in the stream and
// updates the parser state. It returns ErrEndOfStream once the stream is
// exhausted.
func (p *Parser) ParseNextFrame() (*FrameHeader, error) {
	if len(p.frames) == 0 {
		return nil, ErrEndOfStream
	}
	fi := p.frames[0]
	p.frames = p.frames[1:]

	hdr := &FrameHeader{
		Data: p.stream[fi.Offset : fi.Offset+fi.Size],
	}
	up := &uncompressedHeaderParser{state: &p.state}
	if err := up.parse(hdr.Data, hdr); err != nil {
		return nil, err
	}

	if hdr.ShowExistingFrame {
		slot := p.state.refSlots[hdr.FrameToShowMapIdx]
		if slot.Width == 0 || slot.Height == 0 {
			return nil, errors.Errorf("vp9: frame to show in slot %d does not exist", hdr.FrameToShowMapIdx)
		}
		hdr.FrameWidth, hdr.FrameHeight = slot.Width, slot.Height
		return hdr, nil
	}

	if hdr.IsIntra() {
		p.state.bitDepth = hdr.BitDepth
		p.state.colorSpace = hdr.ColorSpace
		p.state.colorRange = hdr.ColorRange
		p.state.subsamplingX = hdr.SubsamplingX
		p.state.subsamplingY = hdr.SubsamplingY
	}

	p.setupSegmentationDequant(hdr)
	p.setupLoopFilter()
	p.updateSlots(hdr)

	log.Debug("%s frame %dx%d, q %d, refresh 0x%02x", hdr.FrameType, hdr.FrameWidth, hdr.FrameHeight,
		hdr.QuantParams.BaseQIdx, hdr.RefreshFrameFlags)

	return hdr, nil
}

// LoopFilter returns the current loop filter parameters.
func (p *Parser) LoopFilter() LoopFilterParams {
	return p.state.loopFilter
}

// Segmentation returns the current segmentation parameters.
func (p *Parser) Segmentation() SegmentationParams {
	return p.state.segmentation
}

// RefSlot returns the size stored in reference slot i.
func (p *Parser) RefSlot(i int) ReferenceSlot {
	return p.state.refSlots[i]
}

// GetQIndex returns the quantizer index of segment for a frame with the
// given quantization parameters.
func (p *Parser) GetQIndex(q *QuantizationParams, segment int) int {
	seg := &p.state.segmentation
	if !seg.IsFeatureEnabled(segment, SegLvlAltQ) {
		return int(q.BaseQIdx)
	}
	data := int(seg.FeatureValue(segment, SegLvlAltQ))
	if !seg.AbsOrDeltaUpdate {
		data += int(q.BaseQIdx)
	}
	return clampQ(data)
}

// Dequant returns the luma and chroma (DC, AC) dequantization scales of
// segment, as set up by the last parsed frame.
func (p *Parser) Dequant(segment int) (y, uv [2]int16) {
	seg := &p.state.segmentation
	return seg.YDequant[segment], seg.UVDequant[segment]
}

func (p *Parser) setupSegmentationDequant(hdr *FrameHeader) {
	var (
		seg = &p.state.segmentation
		q   = &hdr.QuantParams
		bd  = hdr.BitDepth
	)

	segments := 1
	if seg.Enabled {
		segments = MaxSegments
	}
	for i := 0; i < segments; i++ {
		qindex := p.GetQIndex(q, i)
		seg.YDequant[i][0] = DcQ(qindex+int(q.DeltaQYDc), bd)
		seg.YDequant[i][1] = AcQ(qindex, bd)
		seg.UVDequant[i][0] = DcQ(qindex+int(q.DeltaQUVDc), bd)
		seg.UVDequant[i][1] = AcQ(qindex+int(q.DeltaQUVAc), bd)
	}
}

func clampLf(lvl int) uint8 {
	return uint8(min(max(lvl, 0), MaxLoopFilter))
}

func (p *Parser) setupLoopFilter() {
	var (
		lf  = &p.state.loopFilter
		seg = &p.state.segmentation
	)

	lf.Lvl = [MaxSegments][MaxRefFrameTypes][maxModeLfDeltas]uint8{}
	if lf.Level == 0 {
		return
	}

	shift := lf.Level >> 5
	for i := 0; i < MaxSegments; i++ {
		level := int(lf.Level)
		if seg.IsFeatureEnabled(i, SegLvlAltLF) {
			data := int(seg.FeatureValue(i, SegLvlAltLF))
			if seg.AbsOrDeltaUpdate {
				level = data
			} else {
				level += data
			}
			level = int(clampLf(level))
		}

		if !lf.DeltaEnabled {
			for ref := range lf.Lvl[i] {
				for mode := range lf.Lvl[i][ref] {
					lf.Lvl[i][ref][mode] = uint8(level)
				}
			}
			continue
		}

		intra := int(lf.RefDeltas[IntraFrame]) << shift
		lf.Lvl[i][IntraFrame][0] = clampLf(level + intra)
		for ref := LastFrame; ref < MaxRefFrameTypes; ref++ {
			refDelta := int(lf.RefDeltas[ref]) << shift
			for mode := 0; mode < maxModeLfDeltas; mode++ {
				modeDelta := int(lf.ModeDeltas[mode]) << shift
				lf.Lvl[i][ref][mode] = clampLf(level + refDelta + modeDelta)
			}
		}
	}
}

func (p *Parser) updateSlots(hdr *FrameHeader) {
	for i := 0; i < NumRefFrames; i++ {
		if hdr.RefreshFlag(i) {
			p.state.refSlots[i] = ReferenceSlot{Width: hdr.FrameWidth, Height: hdr.FrameHeight}
		}
	}
}
