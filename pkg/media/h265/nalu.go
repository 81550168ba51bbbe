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
	"fmt"

	"github.com/pkg/errors"
)

// NALUnitType is the type of a NAL unit.
type NALUnitType uint8

// NAL unit types, Table 7-1.
const (
	TrailN    NALUnitType = 0
	TrailR    NALUnitType = 1
	TsaN      NALUnitType = 2
	TsaR      NALUnitType = 3
	StsaN     NALUnitType = 4
	StsaR     NALUnitType = 5
	RadlN     NALUnitType = 6
	RadlR     NALUnitType = 7
	RaslN     NALUnitType = 8
	RaslR     NALUnitType = 9
	RsvVclN14 NALUnitType = 14
	BlaWLp    NALUnitType = 16
	BlaWRadl  NALUnitType = 17
	BlaNLp    NALUnitType = 18
	IdrWRadl  NALUnitType = 19
	IdrNLp    NALUnitType = 20
	CraNut    NALUnitType = 21
	RsvIrap22 NALUnitType = 22
	RsvIrap23 NALUnitType = 23
	VPSNut    NALUnitType = 32
	SPSNut    NALUnitType = 33
	PPSNut    NALUnitType = 34
	AUDNut    NALUnitType = 35
	EOSNut    NALUnitType = 36
	EOBNut    NALUnitType = 37
	FDNut     NALUnitType = 38
	PrefixSEI NALUnitType = 39
	SuffixSEI NALUnitType = 40
)

var nalUnitTypeNames = map[NALUnitType]string{
	TrailN: "TRAIL_N", TrailR: "TRAIL_R", TsaN: "TSA_N", TsaR: "TSA_R",
	StsaN: "STSA_N", StsaR: "STSA_R", RadlN: "RADL_N", RadlR: "RADL_R",
	RaslN: "RASL_N", RaslR: "RASL_R", BlaWLp: "BLA_W_LP", BlaWRadl: "BLA_W_RADL",
	BlaNLp: "BLA_N_LP", IdrWRadl: "IDR_W_RADL", IdrNLp: "IDR_N_LP", CraNut: "CRA_NUT",
	VPSNut: "VPS", SPSNut: "SPS", PPSNut: "PPS", AUDNut: "AUD", EOSNut: "EOS",
	EOBNut: "EOB", FDNut: "FD", PrefixSEI: "PREFIX_SEI", SuffixSEI: "SUFFIX_SEI",
}

func (t NALUnitType) String() string {
	if name, ok := nalUnitTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NALU<%d>", uint8(t))
}

// IsVCL returns true for slice segment NAL unit types.
func (t NALUnitType) IsVCL() bool {
	return t < VPSNut
}

// IsIRAP returns true for intra random access point pictures.
func (t NALUnitType) IsIRAP() bool {
	return t >= BlaWLp && t <= RsvIrap23
}

// IsIDR returns true for instantaneous decoding refresh pictures.
func (t NALUnitType) IsIDR() bool {
	return t == IdrWRadl || t == IdrNLp
}

// IsBLA returns true for broken link access pictures.
func (t NALUnitType) IsBLA() bool {
	return t >= BlaWLp && t <= BlaNLp
}

// IsCRA returns true for clean random access pictures.
func (t NALUnitType) IsCRA() bool {
	return t == CraNut
}

// IsRADL returns true for random access decodable leading pictures.
func (t NALUnitType) IsRADL() bool {
	return t == RadlN || t == RadlR
}

// IsRASL returns true for random access skipped leading pictures.
func (t NALUnitType) IsRASL() bool {
	return t == RaslN || t == RaslR
}

// IsSubLayerNonReference returns true for sub-layer non-reference pictures.
func (t NALUnitType) IsSubLayerNonReference() bool {
	return t <= RsvVclN14 && t%2 == 0
}

// NALUnit is a single NAL unit with its header decoded.
type NALUnit struct {
	// Data is the NAL unit including its 2-byte header, start code stripped
	// and emulation prevention bytes still in place.
	Data       []byte
	Type       NALUnitType
	LayerID    uint8
	TemporalID uint8
}

// Size returns the size of the NAL unit in bytes.
func (n *NALUnit) Size() int {
	return len(n.Data)
}

// ParseNALUnit decodes the header of the given NAL unit.
func ParseNALUnit(data []byte) (*NALUnit, error) {
	if len(data) < 2 {
		return nil, errors.Errorf("nalu: too short (%d bytes)", len(data))
	}
	if data[0]&0x80 != 0 {
		return nil, errors.New("nalu: forbidden_zero_bit is set")
	}

	tidPlus1 := data[1] & 0x07
	if tidPlus1 == 0 {
		return nil, errors.New("nalu: nuh_temporal_id_plus1 is zero")
	}

	return &NALUnit{
		Data:       data,
		Type:       NALUnitType((data[0] >> 1) & 0x3f),
		LayerID:    ((data[0] & 0x01) << 5) | (data[1] >> 3),
		TemporalID: tidPlus1 - 1,
	}, nil
}

// SplitAnnexB splits an Annex B byte stream into NAL units. Both 3-byte
// and 4-byte start codes are recognized. Trailing zero bytes of a NAL unit
// belonging to the next start code are dropped.
func SplitAnnexB(stream []byte) [][]byte {
	var (
		nalus [][]byte
		start = -1
		n     = len(stream)
	)

	for i := 0; i+2 < n; {
		if stream[i] == 0 && stream[i+1] == 0 && stream[i+2] == 1 {
			if start >= 0 {
				end := i
				for end > start && stream[end-1] == 0 {
					end--
				}
				if end > start {
					nalus = append(nalus, stream[start:end])
				}
			}
			i += 3
			start = i
			continue
		}
		i++
	}

	if start >= 0 && start < n {
		nalus = append(nalus, stream[start:])
	}

	return nalus
}
