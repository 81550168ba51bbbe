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
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/bitstream"
)

// SliceType is the slice_type of a slice segment.
type SliceType int

// Slice types, Table 7-7.
const (
	SliceTypeB SliceType = 0
	SliceTypeP SliceType = 1
	SliceTypeI SliceType = 2
)

func (t SliceType) String() string {
	switch t {
	case SliceTypeB:
		return "B"
	case SliceTypeP:
		return "P"
	case SliceTypeI:
		return "I"
	}
	return "invalid"
}

const (
	// maxEntryPoints bounds num_entry_point_offsets.
	maxEntryPoints = 440
	// maxSliceSegmentHeaderExtension bounds slice_segment_header_extension_length.
	maxSliceSegmentHeaderExtension = 256
)

// PredWeightTable is pred_weight_table(), 7.3.6.3.
type PredWeightTable struct {
	LumaLog2WeightDenom        int
	DeltaChromaLog2WeightDenom int
	ChromaLog2WeightDenom      int

	LumaWeightL0Flag    [maxRefIdxActive]bool
	ChromaWeightL0Flag  [maxRefIdxActive]bool
	DeltaLumaWeightL0   [maxRefIdxActive]int
	LumaOffsetL0        [maxRefIdxActive]int
	DeltaChromaWeightL0 [maxRefIdxActive][2]int
	DeltaChromaOffsetL0 [maxRefIdxActive][2]int
	LumaWeightL1Flag    [maxRefIdxActive]bool
	ChromaWeightL1Flag  [maxRefIdxActive]bool
	DeltaLumaWeightL1   [maxRefIdxActive]int
	LumaOffsetL1        [maxRefIdxActive]int
	DeltaChromaWeightL1 [maxRefIdxActive][2]int
	DeltaChromaOffsetL1 [maxRefIdxActive][2]int

	// Derived weights and offsets, (7-56) and (7-57).
	ChromaWeightL0 [maxRefIdxActive][2]int
	ChromaOffsetL0 [maxRefIdxActive][2]int
	ChromaWeightL1 [maxRefIdxActive][2]int
	ChromaOffsetL1 [maxRefIdxActive][2]int
}

// SliceHeader is slice_segment_header(), 7.3.6.1.
type SliceHeader struct {
	NALUnitType NALUnitType
	NuhLayerID  uint8
	TemporalID  uint8

	FirstSliceSegmentInPicFlag bool
	NoOutputOfPriorPicsFlag    bool
	SlicePicParameterSetID     int
	DependentSliceSegmentFlag  bool
	SegmentAddress             int
	SliceType                  SliceType
	PicOutputFlag              bool
	ColourPlaneID              int
	SlicePicOrderCntLsb        int

	ShortTermRefPicSetSPSFlag bool
	StRefPicSet               ShortTermRefPicSet
	ShortTermRefPicSetIdx     int

	NumLongTermSPS         int
	NumLongTermPics        int
	PocLsbLt               [maxLongTermRefPics]int
	UsedByCurrPicLt        [maxLongTermRefPics]bool
	DeltaPocMsbPresentFlag [maxLongTermRefPics]bool
	DeltaPocMsbCycleLt     [maxLongTermRefPics]int

	SliceTemporalMvpEnabledFlag bool
	SliceSaoLumaFlag            bool
	SliceSaoChromaFlag          bool

	NumRefIdxActiveOverrideFlag bool
	NumRefIdxL0ActiveMinus1     int
	NumRefIdxL1ActiveMinus1     int

	RefPicListModificationFlagL0 bool
	ListEntryL0                  [maxRefIdxActive]int
	RefPicListModificationFlagL1 bool
	ListEntryL1                  [maxRefIdxActive]int

	MvdL1ZeroFlag            bool
	CabacInitFlag            bool
	CollocatedFromL0Flag     bool
	CollocatedRefIdx         int
	PredWeightTable          PredWeightTable
	FiveMinusMaxNumMergeCand int
	UseIntegerMvFlag         bool

	SliceQpDelta                int
	SliceCbQpOffset             int
	SliceCrQpOffset             int
	SliceActYQpOffset           int
	SliceActCbQpOffset          int
	SliceActCrQpOffset          int
	CuChromaQpOffsetEnabledFlag bool

	DeblockingFilterOverrideFlag           bool
	SliceDeblockingFilterDisabledFlag      bool
	SliceBetaOffsetDiv2                    int
	SliceTcOffsetDiv2                      int
	SliceLoopFilterAcrossSlicesEnabledFlag bool

	NumEntryPointOffsets   int
	OffsetLenMinus1        int
	EntryPointOffsetMinus1 []uint32

	// NumPicTotalCurr is the number of pictures usable for inter prediction
	// of the current picture, (7-55).
	NumPicTotalCurr int
	// CurrRpsIdx is the index of the short-term RPS in use, equal to
	// num_short_term_ref_pic_sets when the set is coded in the header.
	CurrRpsIdx int
	// StRpsBits is the size of the st_ref_pic_set() coded in the header,
	// emulation prevention bytes excluded.
	StRpsBits int

	// HeaderBitSize is the size of the header in bits, NAL unit header
	// included and emulation prevention bytes excluded.
	HeaderBitSize int
	// HeaderEmulationPreventionBytes is the number of emulation prevention
	// bytes within the header.
	HeaderEmulationPreventionBytes int
	// NALUSize is the size of the whole NAL unit.
	NALUSize int
}

// IsISlice returns true for intra slices.
func (h *SliceHeader) IsISlice() bool { return h.SliceType == SliceTypeI }

// IsPSlice returns true for predicted slices.
func (h *SliceHeader) IsPSlice() bool { return h.SliceType == SliceTypeP }

// IsBSlice returns true for bi-predicted slices.
func (h *SliceHeader) IsBSlice() bool { return h.SliceType == SliceTypeB }

// NumEntryPoints returns the number of entry points of the slice segment
// data, the first one at its start included.
func (h *SliceHeader) NumEntryPoints() int { return h.NumEntryPointOffsets + 1 }

// SliceQpY returns the initial QP of the slice, (7-54).
func (h *SliceHeader) SliceQpY(pps *PPS) int {
	return 26 + pps.InitQpMinus26 + h.SliceQpDelta
}

// ReplaceHeader replaces the contents of a dependent slice segment header
// with those of the given independent one, retaining the fields which are
// specific to the dependent slice segment.
func (h *SliceHeader) ReplaceHeader(independent *SliceHeader) {
	var (
		firstSliceSegmentInPicFlag = h.FirstSliceSegmentInPicFlag
		noOutputOfPriorPicsFlag    = h.NoOutputOfPriorPicsFlag
		slicePicParameterSetID     = h.SlicePicParameterSetID
		dependentSliceSegmentFlag  = h.DependentSliceSegmentFlag
		segmentAddress             = h.SegmentAddress
		offsetLenMinus1            = h.OffsetLenMinus1
		entryPointOffsetMinus1     = h.EntryPointOffsetMinus1
		numPicTotalCurr            = h.NumPicTotalCurr
		headerBitSize              = h.HeaderBitSize
		headerEPB                  = h.HeaderEmulationPreventionBytes
		currRpsIdx                 = h.CurrRpsIdx
		stRpsBits                  = h.StRpsBits
	)

	*h = *independent

	h.FirstSliceSegmentInPicFlag = firstSliceSegmentInPicFlag
	h.NoOutputOfPriorPicsFlag = noOutputOfPriorPicsFlag
	h.SlicePicParameterSetID = slicePicParameterSetID
	h.DependentSliceSegmentFlag = dependentSliceSegmentFlag
	h.SegmentAddress = segmentAddress
	h.OffsetLenMinus1 = offsetLenMinus1
	h.EntryPointOffsetMinus1 = entryPointOffsetMinus1
	h.NumPicTotalCurr = numPicTotalCurr
	h.HeaderBitSize = headerBitSize
	h.HeaderEmulationPreventionBytes = headerEPB
	h.CurrRpsIdx = currRpsIdx
	h.StRpsBits = stRpsBits
}

// Slice is a parsed slice segment header with the NAL unit it came from.
type Slice struct {
	Header *SliceHeader
	NALU   *NALUnit
}

// Data returns the slice segment data following the header, with
// emulation prevention bytes still in place.
func (s *Slice) Data() []byte {
	off := (s.Header.HeaderBitSize + 7) / 8 + s.Header.HeaderEmulationPreventionBytes
	if off > len(s.NALU.Data) {
		return nil
	}
	return s.NALU.Data[off:]
}

// parseSliceHeader parses slice_segment_header(). The reader must be
// positioned right after the NAL unit header. A dependent slice segment
// takes its remaining fields from prior, the header of the last
// independent slice segment.
func parseSliceHeader(br *bitstream.Reader, nalu *NALUnit, lookupPPS func(int) *PPS, prior *SliceHeader) (*SliceHeader, error) {
	r := newFieldReader(br, "slice")
	h := &SliceHeader{
		NALUnitType:   nalu.Type,
		NuhLayerID:    nalu.LayerID,
		TemporalID:    nalu.TemporalID,
		NALUSize:      nalu.Size(),
		PicOutputFlag: true,
	}

	h.FirstSliceSegmentInPicFlag = r.flag("first_slice_segment_in_pic_flag")
	if nalu.Type.IsIRAP() {
		h.NoOutputOfPriorPicsFlag = r.flag("no_output_of_prior_pics_flag")
	}
	h.SlicePicParameterSetID = r.ueMax("slice_pic_parameter_set_id", maxPPSCount-1)
	if r.err() != nil {
		return nil, r.err()
	}

	pps := lookupPPS(h.SlicePicParameterSetID)
	r.check(pps != nil, "referenced PPS %d is missing", h.SlicePicParameterSetID)
	if r.err() != nil {
		return nil, r.err()
	}
	sps := pps.SPS

	if !h.FirstSliceSegmentInPicFlag {
		if pps.DependentSliceSegmentsEnabledFlag {
			h.DependentSliceSegmentFlag = r.flag("dependent_slice_segment_flag")
		}
		h.SegmentAddress = int(r.u(ceilLog2(sps.PicSizeInCtbsY), "slice_segment_address"))
		r.check(h.SegmentAddress < sps.PicSizeInCtbsY,
			"slice_segment_address %d out of range", h.SegmentAddress)
	}

	if h.DependentSliceSegmentFlag {
		r.check(prior != nil, "dependent slice segment without a preceding independent one")
	} else {
		parseIndependentFields(r, h, pps, sps)
	}

	if pps.TilesEnabledFlag || pps.EntropyCodingSyncEnabledFlag {
		var maxOffsets int
		switch {
		case !pps.TilesEnabledFlag:
			maxOffsets = sps.PicHeightInCtbsY - 1
		case !pps.EntropyCodingSyncEnabledFlag:
			maxOffsets = (pps.NumTileColumnsMinus1+1)*(pps.NumTileRowsMinus1+1) - 1
		default:
			maxOffsets = (pps.NumTileColumnsMinus1+1)*sps.PicHeightInCtbsY - 1
		}
		h.NumEntryPointOffsets = r.ueMax("num_entry_point_offsets", min(maxOffsets, maxEntryPoints))
		if h.NumEntryPointOffsets > 0 {
			h.OffsetLenMinus1 = r.ueMax("offset_len_minus1", 31)
			for i := 0; i < h.NumEntryPointOffsets && r.err() == nil; i++ {
				h.EntryPointOffsetMinus1 = append(h.EntryPointOffsetMinus1,
					r.u(h.OffsetLenMinus1+1, "entry_point_offset_minus1"))
			}
		}
	}

	if pps.SliceSegmentHeaderExtensionPresentFlag {
		n := r.ueMax("slice_segment_header_extension_length", maxSliceSegmentHeaderExtension)
		r.skip(n*8, "slice_segment_header_extension_data_byte")
	}

	// byte_alignment()
	one := r.flag("alignment_bit_equal_to_one")
	r.check(one, "alignment_bit_equal_to_one is zero")
	if r.err() == nil {
		r.skip(br.BitsLeft()%8, "alignment_bit_equal_to_zero")
	}

	if r.err() != nil {
		return nil, r.err()
	}

	h.HeaderEmulationPreventionBytes = br.EmulationPreventionBytes()
	h.HeaderBitSize = (h.NALUSize-h.HeaderEmulationPreventionBytes)*8 - br.BitsLeft()

	if h.DependentSliceSegmentFlag {
		h.ReplaceHeader(prior)
	}

	return h, nil
}

func parseIndependentFields(r *fieldReader, h *SliceHeader, pps *PPS, sps *SPS) {
	r.skip(pps.NumExtraSliceHeaderBits, "slice_reserved_flag")
	h.SliceType = SliceType(r.ueMax("slice_type", 2))
	if pps.OutputFlagPresentFlag {
		h.PicOutputFlag = r.flag("pic_output_flag")
	}
	if sps.SeparateColourPlaneFlag {
		h.ColourPlaneID = int(r.u(2, "colour_plane_id"))
		r.check(h.ColourPlaneID <= 2, "colour_plane_id %d out of range", h.ColourPlaneID)
	}
	if r.err() != nil {
		return
	}

	h.CurrRpsIdx = -1
	var currRps *ShortTermRefPicSet

	if !h.NALUnitType.IsIDR() {
		h.SlicePicOrderCntLsb = int(r.u(sps.Log2MaxPicOrderCntLsbMinus4+4, "slice_pic_order_cnt_lsb"))
		h.ShortTermRefPicSetSPSFlag = r.flag("short_term_ref_pic_set_sps_flag")
		if !h.ShortTermRefPicSetSPSFlag {
			bitsBefore := r.br.BitsLeft()
			epbBefore := r.br.EmulationPreventionBytes()
			h.StRefPicSet = parseStRefPicSet(r, sps.NumShortTermRefPicSets, sps.NumShortTermRefPicSets,
				sps.StRefPicSet[:], sps.SPSMaxDecPicBufferingMinus1[sps.SPSMaxSubLayersMinus1])
			h.StRpsBits = (bitsBefore - r.br.BitsLeft()) - 8*(r.br.EmulationPreventionBytes()-epbBefore)
			h.CurrRpsIdx = sps.NumShortTermRefPicSets
			currRps = &h.StRefPicSet
		} else {
			r.check(sps.NumShortTermRefPicSets > 0, "no short-term RPS in SPS to refer to")
			if sps.NumShortTermRefPicSets > 1 {
				h.ShortTermRefPicSetIdx = int(r.u(ceilLog2(sps.NumShortTermRefPicSets), "short_term_ref_pic_set_idx"))
				r.check(h.ShortTermRefPicSetIdx < sps.NumShortTermRefPicSets,
					"short_term_ref_pic_set_idx %d out of range", h.ShortTermRefPicSetIdx)
			}
			if r.err() != nil {
				return
			}
			h.CurrRpsIdx = h.ShortTermRefPicSetIdx
			currRps = &sps.StRefPicSet[h.CurrRpsIdx]
		}

		if sps.LongTermRefPicsPresentFlag {
			parseLongTermRefPics(r, h, sps)
		}
		if sps.SPSTemporalMvpEnabledFlag {
			h.SliceTemporalMvpEnabledFlag = r.flag("slice_temporal_mvp_enabled_flag")
		}
	}

	if sps.SampleAdaptiveOffsetEnabledFlag {
		h.SliceSaoLumaFlag = r.flag("slice_sao_luma_flag")
		if sps.ChromaArrayType != 0 {
			h.SliceSaoChromaFlag = r.flag("slice_sao_chroma_flag")
		}
	}

	if r.err() != nil {
		return
	}

	h.NumPicTotalCurr = numPicTotalCurr(h, pps, currRps)

	if !h.IsISlice() {
		h.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
		if h.IsBSlice() {
			h.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
		}
		h.NumRefIdxActiveOverrideFlag = r.flag("num_ref_idx_active_override_flag")
		if h.NumRefIdxActiveOverrideFlag {
			h.NumRefIdxL0ActiveMinus1 = r.ueMax("num_ref_idx_l0_active_minus1", maxRefIdxActive-1)
			if h.IsBSlice() {
				h.NumRefIdxL1ActiveMinus1 = r.ueMax("num_ref_idx_l1_active_minus1", maxRefIdxActive-1)
			}
		}
		r.check(h.NumPicTotalCurr > 0, "inter slice without reference pictures")

		if pps.ListsModificationPresentFlag && h.NumPicTotalCurr > 1 {
			n := ceilLog2(h.NumPicTotalCurr)
			h.RefPicListModificationFlagL0 = r.flag("ref_pic_list_modification_flag_l0")
			if h.RefPicListModificationFlagL0 {
				for i := 0; i <= h.NumRefIdxL0ActiveMinus1; i++ {
					h.ListEntryL0[i] = int(r.u(n, "list_entry_l0"))
					r.check(h.ListEntryL0[i] < h.NumPicTotalCurr, "list_entry_l0 out of range")
				}
			}
			if h.IsBSlice() {
				h.RefPicListModificationFlagL1 = r.flag("ref_pic_list_modification_flag_l1")
				if h.RefPicListModificationFlagL1 {
					for i := 0; i <= h.NumRefIdxL1ActiveMinus1; i++ {
						h.ListEntryL1[i] = int(r.u(n, "list_entry_l1"))
						r.check(h.ListEntryL1[i] < h.NumPicTotalCurr, "list_entry_l1 out of range")
					}
				}
			}
		}

		if h.IsBSlice() {
			h.MvdL1ZeroFlag = r.flag("mvd_l1_zero_flag")
		}
		if pps.CabacInitPresentFlag {
			h.CabacInitFlag = r.flag("cabac_init_flag")
		}
		if h.SliceTemporalMvpEnabledFlag {
			h.CollocatedFromL0Flag = true
			if h.IsBSlice() {
				h.CollocatedFromL0Flag = r.flag("collocated_from_l0_flag")
			}
			if h.CollocatedFromL0Flag && h.NumRefIdxL0ActiveMinus1 > 0 {
				h.CollocatedRefIdx = r.ueMax("collocated_ref_idx", h.NumRefIdxL0ActiveMinus1)
			} else if !h.CollocatedFromL0Flag && h.NumRefIdxL1ActiveMinus1 > 0 {
				h.CollocatedRefIdx = r.ueMax("collocated_ref_idx", h.NumRefIdxL1ActiveMinus1)
			}
		}
		if (pps.WeightedPredFlag && h.IsPSlice()) || (pps.WeightedBipredFlag && h.IsBSlice()) {
			parsePredWeightTable(r, h, sps)
		}
		h.FiveMinusMaxNumMergeCand = r.ueMax("five_minus_max_num_merge_cand", 4)
		if sps.SccExtension.MotionVectorResolutionControlIDC == 2 {
			h.UseIntegerMvFlag = r.flag("use_integer_mv_flag")
		}
	}

	h.SliceQpDelta = int(r.se("slice_qp_delta"))
	qp := 26 + pps.InitQpMinus26 + h.SliceQpDelta
	r.check(qp >= -sps.QpBdOffsetY && qp <= 51, "SliceQpY %d out of range", qp)

	if pps.PPSSliceChromaQpOffsetsPresentFlag {
		h.SliceCbQpOffset = r.seBounded("slice_cb_qp_offset", -12, 12)
		h.SliceCrQpOffset = r.seBounded("slice_cr_qp_offset", -12, 12)
		r.check(pps.PPSCbQpOffset+h.SliceCbQpOffset >= -12 && pps.PPSCbQpOffset+h.SliceCbQpOffset <= 12,
			"cb qp offset sum out of range")
		r.check(pps.PPSCrQpOffset+h.SliceCrQpOffset >= -12 && pps.PPSCrQpOffset+h.SliceCrQpOffset <= 12,
			"cr qp offset sum out of range")
	}
	if pps.SccExtension.PPSSliceActQpOffsetsPresentFlag {
		h.SliceActYQpOffset = r.seBounded("slice_act_y_qp_offset", -12, 12)
		h.SliceActCbQpOffset = r.seBounded("slice_act_cb_qp_offset", -12, 12)
		h.SliceActCrQpOffset = r.seBounded("slice_act_cr_qp_offset", -12, 12)
	}
	if pps.RangeExtension.ChromaQpOffsetListEnabledFlag {
		h.CuChromaQpOffsetEnabledFlag = r.flag("cu_chroma_qp_offset_enabled_flag")
	}

	if pps.DeblockingFilterOverrideEnabledFlag {
		h.DeblockingFilterOverrideFlag = r.flag("deblocking_filter_override_flag")
	}
	if h.DeblockingFilterOverrideFlag {
		h.SliceDeblockingFilterDisabledFlag = r.flag("slice_deblocking_filter_disabled_flag")
		if !h.SliceDeblockingFilterDisabledFlag {
			h.SliceBetaOffsetDiv2 = r.seBounded("slice_beta_offset_div2", -6, 6)
			h.SliceTcOffsetDiv2 = r.seBounded("slice_tc_offset_div2", -6, 6)
		}
	} else {
		h.SliceDeblockingFilterDisabledFlag = pps.PPSDeblockingFilterDisabledFlag
		h.SliceBetaOffsetDiv2 = pps.PPSBetaOffsetDiv2
		h.SliceTcOffsetDiv2 = pps.PPSTcOffsetDiv2
	}

	h.SliceLoopFilterAcrossSlicesEnabledFlag = pps.PPSLoopFilterAcrossSlicesEnabledFlag
	if pps.PPSLoopFilterAcrossSlicesEnabledFlag &&
		(h.SliceSaoLumaFlag || h.SliceSaoChromaFlag || !h.SliceDeblockingFilterDisabledFlag) {
		h.SliceLoopFilterAcrossSlicesEnabledFlag = r.flag("slice_loop_filter_across_slices_enabled_flag")
	}
}

func parseLongTermRefPics(r *fieldReader, h *SliceHeader, sps *SPS) {
	if sps.NumLongTermRefPicsSPS > 0 {
		h.NumLongTermSPS = r.ueMax("num_long_term_sps", sps.NumLongTermRefPicsSPS)
	}
	h.NumLongTermPics = r.ueMax("num_long_term_pics", maxLongTermRefPics-h.NumLongTermSPS)
	if r.err() != nil {
		return
	}

	for i := 0; i < h.NumLongTermSPS+h.NumLongTermPics && r.err() == nil; i++ {
		if i < h.NumLongTermSPS {
			ltIdx := 0
			if sps.NumLongTermRefPicsSPS > 1 {
				ltIdx = int(r.u(ceilLog2(sps.NumLongTermRefPicsSPS), "lt_idx_sps"))
				r.check(ltIdx < sps.NumLongTermRefPicsSPS, "lt_idx_sps %d out of range", ltIdx)
				if r.err() != nil {
					return
				}
			}
			h.PocLsbLt[i] = int(sps.LtRefPicPocLsbSPS[ltIdx])
			h.UsedByCurrPicLt[i] = sps.UsedByCurrPicLtSPSFlag[ltIdx]
		} else {
			h.PocLsbLt[i] = int(r.u(sps.Log2MaxPicOrderCntLsbMinus4+4, "poc_lsb_lt"))
			h.UsedByCurrPicLt[i] = r.flag("used_by_curr_pic_lt_flag")
		}
		h.DeltaPocMsbPresentFlag[i] = r.flag("delta_poc_msb_present_flag")
		if h.DeltaPocMsbPresentFlag[i] {
			h.DeltaPocMsbCycleLt[i] = int(r.ue("delta_poc_msb_cycle_lt"))
		}
		// (7-52)
		if i != 0 && i != h.NumLongTermSPS {
			h.DeltaPocMsbCycleLt[i] += h.DeltaPocMsbCycleLt[i-1]
		}
	}
}

// numPicTotalCurr computes NumPicTotalCurr, (7-55).
func numPicTotalCurr(h *SliceHeader, pps *PPS, rps *ShortTermRefPicSet) int {
	n := 0
	if rps != nil {
		n = rps.NumUsedByCurrPic()
	}
	for i := 0; i < h.NumLongTermSPS+h.NumLongTermPics; i++ {
		if h.UsedByCurrPicLt[i] {
			n++
		}
	}
	if pps.SccExtension.PPSCurrPicRefEnabledFlag {
		n++
	}
	return n
}

func parsePredWeightTable(r *fieldReader, h *SliceHeader, sps *SPS) {
	pwt := &h.PredWeightTable

	pwt.LumaLog2WeightDenom = r.ueMax("luma_log2_weight_denom", 7)
	pwt.ChromaLog2WeightDenom = pwt.LumaLog2WeightDenom
	if sps.ChromaArrayType != 0 {
		pwt.DeltaChromaLog2WeightDenom = int(r.se("delta_chroma_log2_weight_denom"))
		pwt.ChromaLog2WeightDenom = pwt.LumaLog2WeightDenom + pwt.DeltaChromaLog2WeightDenom
		r.check(pwt.ChromaLog2WeightDenom >= 0 && pwt.ChromaLog2WeightDenom <= 7,
			"ChromaLog2WeightDenom %d out of range", pwt.ChromaLog2WeightDenom)
	}
	if r.err() != nil {
		return
	}

	parseList := func(numRefIdxActiveMinus1 int, lumaFlag, chromaFlag *[maxRefIdxActive]bool,
		deltaLuma, lumaOffset *[maxRefIdxActive]int, deltaChroma, deltaChromaOffset,
		chromaWeight, chromaOffset *[maxRefIdxActive][2]int) {
		for i := 0; i <= numRefIdxActiveMinus1; i++ {
			lumaFlag[i] = r.flag("luma_weight_flag")
		}
		if sps.ChromaArrayType != 0 {
			for i := 0; i <= numRefIdxActiveMinus1; i++ {
				chromaFlag[i] = r.flag("chroma_weight_flag")
			}
		}
		halfY, halfC := sps.WpOffsetHalfRangeY, sps.WpOffsetHalfRangeC
		for i := 0; i <= numRefIdxActiveMinus1 && r.err() == nil; i++ {
			if lumaFlag[i] {
				deltaLuma[i] = r.seBounded("delta_luma_weight", -128, 127)
				lumaOffset[i] = r.seBounded("luma_offset", -halfY, halfY-1)
			}
			for j := 0; j < 2; j++ {
				chromaWeight[i][j] = 1 << pwt.ChromaLog2WeightDenom
				chromaOffset[i][j] = 0
			}
			if chromaFlag[i] {
				for j := 0; j < 2; j++ {
					deltaChroma[i][j] = r.seBounded("delta_chroma_weight", -128, 127)
					deltaChromaOffset[i][j] = r.seBounded("delta_chroma_offset", -4*halfC, 4*halfC-1)
					chromaWeight[i][j] = (1 << pwt.ChromaLog2WeightDenom) + deltaChroma[i][j]
					off := halfC - ((halfC * chromaWeight[i][j]) >> pwt.ChromaLog2WeightDenom) + deltaChromaOffset[i][j]
					chromaOffset[i][j] = clip3(-halfC, halfC-1, off)
				}
			}
		}
	}

	parseList(h.NumRefIdxL0ActiveMinus1, &pwt.LumaWeightL0Flag, &pwt.ChromaWeightL0Flag,
		&pwt.DeltaLumaWeightL0, &pwt.LumaOffsetL0, &pwt.DeltaChromaWeightL0, &pwt.DeltaChromaOffsetL0,
		&pwt.ChromaWeightL0, &pwt.ChromaOffsetL0)
	if h.IsBSlice() {
		parseList(h.NumRefIdxL1ActiveMinus1, &pwt.LumaWeightL1Flag, &pwt.ChromaWeightL1Flag,
			&pwt.DeltaLumaWeightL1, &pwt.LumaOffsetL1, &pwt.DeltaChromaWeightL1, &pwt.DeltaChromaOffsetL1,
			&pwt.ChromaWeightL1, &pwt.ChromaOffsetL1)
	}
}

func clip3(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
