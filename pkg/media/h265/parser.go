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

package h265

import (
	"github.com/pkg/errors"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/bitstream"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var log = logger.Get("h265")

// Parser parses H.265 NAL units, keeping track of the active parameter
// sets. Parameter sets are immutable once installed: parsing a set with an
// id already in use replaces the entry, and previously parsed structures
// keep referring to the old instance.
type Parser struct {
	vps map[int]*VPS
	sps map[int]*SPS
	pps map[int]*PPS

	nalus [][]byte
	next  int
}

// NewParser creates a new parser with no known parameter sets.
func NewParser() *Parser {
	return &Parser{
		vps: make(map[int]*VPS),
		sps: make(map[int]*SPS),
		pps: make(map[int]*PPS),
	}
}

// SetStream sets an Annex B byte stream to iterate with NextNALUnit.
func (p *Parser) SetStream(stream []byte) {
	p.nalus = SplitAnnexB(stream)
	p.next = 0
}

// NextNALUnit returns the next NAL unit of the stream, or nil once the
// stream is exhausted.
func (p *Parser) NextNALUnit() (*NALUnit, error) {
	if p.next >= len(p.nalus) {
		return nil, nil
	}
	data := p.nalus[p.next]
	p.next++
	return ParseNALUnit(data)
}

// VPS returns the VPS with the given id, or nil if there is none.
func (p *Parser) VPS(id int) *VPS {
	return p.vps[id]
}

// SPS returns the SPS with the given id, or nil if there is none.
func (p *Parser) SPS(id int) *SPS {
	return p.sps[id]
}

// PPS returns the PPS with the given id, or nil if there is none.
func (p *Parser) PPS(id int) *PPS {
	return p.pps[id]
}

// payloadReader returns a reader positioned after the NAL unit header.
func payloadReader(nalu *NALUnit) (*bitstream.Reader, error) {
	br := bitstream.NewNALReader(nalu.Data)
	if err := br.SkipBits(16); err != nil {
		return nil, errors.Wrap(err, "nalu header")
	}
	return br, nil
}

func checkType(nalu *NALUnit, want NALUnitType) error {
	if nalu.Type != want {
		return errors.Errorf("unexpected NAL unit type %s, expected %s", nalu.Type, want)
	}
	return nil
}

// ParseVPS parses a VPS NAL unit and installs the result.
func (p *Parser) ParseVPS(nalu *NALUnit) (*VPS, error) {
	if err := checkType(nalu, VPSNut); err != nil {
		return nil, err
	}
	br, err := payloadReader(nalu)
	if err != nil {
		return nil, err
	}

	r := newFieldReader(br, "vps")
	vps := parseVPS(r)
	if r.err() != nil {
		return nil, r.err()
	}

	p.vps[vps.VPSVideoParameterSetID] = vps
	return vps, nil
}

// ParseSPS parses an SPS NAL unit and installs the result.
func (p *Parser) ParseSPS(nalu *NALUnit) (*SPS, error) {
	if err := checkType(nalu, SPSNut); err != nil {
		return nil, err
	}
	br, err := payloadReader(nalu)
	if err != nil {
		return nil, err
	}

	r := newFieldReader(br, "sps")
	sps := parseSPS(r, p.VPS)
	if r.err() != nil {
		return nil, r.err()
	}

	if sps.VPS == nil {
		log.Debug("sps %d: VPS %d is not known", sps.SPSSeqParameterSetID, sps.SPSVideoParameterSetID)
	}

	p.sps[sps.SPSSeqParameterSetID] = sps
	return sps, nil
}

// ParsePPS parses a PPS NAL unit and installs the result. The referenced
// SPS must already be known.
func (p *Parser) ParsePPS(nalu *NALUnit) (*PPS, error) {
	if err := checkType(nalu, PPSNut); err != nil {
		return nil, err
	}
	br, err := payloadReader(nalu)
	if err != nil {
		return nil, err
	}

	r := newFieldReader(br, "pps")
	pps := parsePPS(r, p.SPS)
	if r.err() != nil {
		return nil, r.err()
	}

	p.pps[pps.PPSPicParameterSetID] = pps
	return pps, nil
}

// ParseSliceHeader parses the header of a slice segment NAL unit. For a
// dependent slice segment prior must be the header of the preceding
// independent slice segment of the picture; it is ignored otherwise.
func (p *Parser) ParseSliceHeader(nalu *NALUnit, prior *SliceHeader) (*Slice, error) {
	if !nalu.Type.IsVCL() || nalu.Type > CraNut {
		return nil, errors.Errorf("unexpected NAL unit type %s for a slice", nalu.Type)
	}
	br, err := payloadReader(nalu)
	if err != nil {
		return nil, err
	}

	h, err := parseSliceHeader(br, nalu, p.PPS, prior)
	if err != nil {
		return nil, err
	}

	return &Slice{Header: h, NALU: nalu}, nil
}
