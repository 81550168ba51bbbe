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

const (
	extendedSAR = 255
	// maxCpbCount bounds cpb_cnt_minus1 + 1.
	maxCpbCount = 32
)

// Sample aspect ratios for aspect_ratio_idc 1..16, Table E.1.
var sampleAspectRatios = [17][2]uint16{
	{0, 0}, {1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11},
	{32, 11}, {80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3}, {3, 2}, {2, 1},
}

// SubLayerHRDParameters is sub_layer_hrd_parameters().
type SubLayerHRDParameters struct {
	BitRateValueMinus1   [maxCpbCount]uint32
	CpbSizeValueMinus1   [maxCpbCount]uint32
	CpbSizeDuValueMinus1 [maxCpbCount]uint32
	BitRateDuValueMinus1 [maxCpbCount]uint32
	CbrFlag              [maxCpbCount]bool
}

// HRDParameters is hrd_parameters(), Annex E.
type HRDParameters struct {
	NalHRDParametersPresentFlag            bool
	VclHRDParametersPresentFlag            bool
	SubPicHRDParamsPresentFlag             bool
	TickDivisorMinus2                      uint8
	DuCpbRemovalDelayIncrementLengthMinus1 uint8
	SubPicCpbParamsInPicTimingSEIFlag      bool
	DpbOutputDelayDuLengthMinus1           uint8
	BitRateScale                           uint8
	CpbSizeScale                           uint8
	CpbSizeDuScale                         uint8
	InitialCpbRemovalDelayLengthMinus1     uint8
	AuCpbRemovalDelayLengthMinus1          uint8
	DpbOutputDelayLengthMinus1             uint8

	FixedPicRateGeneralFlag     [maxSubLayers]bool
	FixedPicRateWithinCvsFlag   [maxSubLayers]bool
	ElementalDurationInTcMinus1 [maxSubLayers]int
	LowDelayHRDFlag             [maxSubLayers]bool
	CpbCntMinus1                [maxSubLayers]int

	NalSubLayer [maxSubLayers]SubLayerHRDParameters
	VclSubLayer [maxSubLayers]SubLayerHRDParameters
}

func parseSubLayerHRDParameters(r *fieldReader, cpbCnt int, subPic bool, p *SubLayerHRDParameters) {
	for i := 0; i < cpbCnt; i++ {
		p.BitRateValueMinus1[i] = r.ue("bit_rate_value_minus1")
		p.CpbSizeValueMinus1[i] = r.ue("cpb_size_value_minus1")
		if subPic {
			p.CpbSizeDuValueMinus1[i] = r.ue("cpb_size_du_value_minus1")
			p.BitRateDuValueMinus1[i] = r.ue("bit_rate_du_value_minus1")
		}
		p.CbrFlag[i] = r.flag("cbr_flag")
	}
}

func parseHRDParameters(r *fieldReader, commonInfPresent bool, maxSubLayersMinus1 int) *HRDParameters {
	hrd := &HRDParameters{}

	if commonInfPresent {
		hrd.NalHRDParametersPresentFlag = r.flag("nal_hrd_parameters_present_flag")
		hrd.VclHRDParametersPresentFlag = r.flag("vcl_hrd_parameters_present_flag")
		if hrd.NalHRDParametersPresentFlag || hrd.VclHRDParametersPresentFlag {
			hrd.SubPicHRDParamsPresentFlag = r.flag("sub_pic_hrd_params_present_flag")
			if hrd.SubPicHRDParamsPresentFlag {
				hrd.TickDivisorMinus2 = uint8(r.u(8, "tick_divisor_minus2"))
				hrd.DuCpbRemovalDelayIncrementLengthMinus1 = uint8(r.u(5, "du_cpb_removal_delay_increment_length_minus1"))
				hrd.SubPicCpbParamsInPicTimingSEIFlag = r.flag("sub_pic_cpb_params_in_pic_timing_sei_flag")
				hrd.DpbOutputDelayDuLengthMinus1 = uint8(r.u(5, "dpb_output_delay_du_length_minus1"))
			}
			hrd.BitRateScale = uint8(r.u(4, "bit_rate_scale"))
			hrd.CpbSizeScale = uint8(r.u(4, "cpb_size_scale"))
			if hrd.SubPicHRDParamsPresentFlag {
				hrd.CpbSizeDuScale = uint8(r.u(4, "cpb_size_du_scale"))
			}
			hrd.InitialCpbRemovalDelayLengthMinus1 = uint8(r.u(5, "initial_cpb_removal_delay_length_minus1"))
			hrd.AuCpbRemovalDelayLengthMinus1 = uint8(r.u(5, "au_cpb_removal_delay_length_minus1"))
			hrd.DpbOutputDelayLengthMinus1 = uint8(r.u(5, "dpb_output_delay_length_minus1"))
		}
	}

	for i := 0; i <= maxSubLayersMinus1 && r.err() == nil; i++ {
		hrd.FixedPicRateGeneralFlag[i] = r.flag("fixed_pic_rate_general_flag")
		hrd.FixedPicRateWithinCvsFlag[i] = true
		if !hrd.FixedPicRateGeneralFlag[i] {
			hrd.FixedPicRateWithinCvsFlag[i] = r.flag("fixed_pic_rate_within_cvs_flag")
		}
		if hrd.FixedPicRateWithinCvsFlag[i] {
			hrd.ElementalDurationInTcMinus1[i] = r.ueMax("elemental_duration_in_tc_minus1", 2047)
		} else {
			hrd.LowDelayHRDFlag[i] = r.flag("low_delay_hrd_flag")
		}
		if !hrd.LowDelayHRDFlag[i] {
			hrd.CpbCntMinus1[i] = r.ueMax("cpb_cnt_minus1", maxCpbCount-1)
		}
		if hrd.NalHRDParametersPresentFlag {
			parseSubLayerHRDParameters(r, hrd.CpbCntMinus1[i]+1, hrd.SubPicHRDParamsPresentFlag, &hrd.NalSubLayer[i])
		}
		if hrd.VclHRDParametersPresentFlag {
			parseSubLayerHRDParameters(r, hrd.CpbCntMinus1[i]+1, hrd.SubPicHRDParamsPresentFlag, &hrd.VclSubLayer[i])
		}
	}

	return hrd
}

// VUIParameters is vui_parameters(), Annex E.
type VUIParameters struct {
	AspectRatioInfoPresentFlag bool
	AspectRatioIDC             uint8
	SarWidth                   uint16
	SarHeight                  uint16

	OverscanInfoPresentFlag bool
	OverscanAppropriateFlag bool

	VideoSignalTypePresentFlag   bool
	VideoFormat                  uint8
	VideoFullRangeFlag           bool
	ColourDescriptionPresentFlag bool
	ColourPrimaries              uint8
	TransferCharacteristics      uint8
	MatrixCoeffs                 uint8

	ChromaLocInfoPresentFlag       bool
	ChromaSampleLocTypeTopField    int
	ChromaSampleLocTypeBottomField int

	NeutralChromaIndicationFlag bool
	FieldSeqFlag                bool
	FrameFieldInfoPresentFlag   bool

	DefaultDisplayWindowFlag bool
	DefDispWinLeftOffset     int
	DefDispWinRightOffset    int
	DefDispWinTopOffset      int
	DefDispWinBottomOffset   int

	VUITimingInfoPresentFlag       bool
	VUINumUnitsInTick              uint32
	VUITimeScale                   uint32
	VUIPocProportionalToTimingFlag bool
	VUINumTicksPocDiffOneMinus1    uint32
	VUIHRDParametersPresentFlag    bool
	HRDParameters                  *HRDParameters

	BitstreamRestrictionFlag           bool
	TilesFixedStructureFlag            bool
	MotionVectorsOverPicBoundariesFlag bool
	RestrictedRefPicListsFlag          bool
	MinSpatialSegmentationIDC          int
	MaxBytesPerPicDenom                int
	MaxBitsPerMinCuDenom               int
	Log2MaxMvLengthHorizontal          int
	Log2MaxMvLengthVertical            int
}

func parseVUIParameters(r *fieldReader, maxSubLayersMinus1 int) *VUIParameters {
	vui := &VUIParameters{
		// Unspecified, E.3.1
		VideoFormat:             5,
		ColourPrimaries:         2,
		TransferCharacteristics: 2,
		MatrixCoeffs:            2,
	}

	vui.AspectRatioInfoPresentFlag = r.flag("aspect_ratio_info_present_flag")
	if vui.AspectRatioInfoPresentFlag {
		vui.AspectRatioIDC = uint8(r.u(8, "aspect_ratio_idc"))
		switch {
		case vui.AspectRatioIDC == extendedSAR:
			vui.SarWidth = uint16(r.u(16, "sar_width"))
			vui.SarHeight = uint16(r.u(16, "sar_height"))
		case int(vui.AspectRatioIDC) < len(sampleAspectRatios):
			vui.SarWidth = sampleAspectRatios[vui.AspectRatioIDC][0]
			vui.SarHeight = sampleAspectRatios[vui.AspectRatioIDC][1]
		}
	}

	vui.OverscanInfoPresentFlag = r.flag("overscan_info_present_flag")
	if vui.OverscanInfoPresentFlag {
		vui.OverscanAppropriateFlag = r.flag("overscan_appropriate_flag")
	}

	vui.VideoSignalTypePresentFlag = r.flag("video_signal_type_present_flag")
	if vui.VideoSignalTypePresentFlag {
		vui.VideoFormat = uint8(r.u(3, "video_format"))
		vui.VideoFullRangeFlag = r.flag("video_full_range_flag")
		vui.ColourDescriptionPresentFlag = r.flag("colour_description_present_flag")
		if vui.ColourDescriptionPresentFlag {
			vui.ColourPrimaries = uint8(r.u(8, "colour_primaries"))
			vui.TransferCharacteristics = uint8(r.u(8, "transfer_characteristics"))
			vui.MatrixCoeffs = uint8(r.u(8, "matrix_coeffs"))
		}
	}

	vui.ChromaLocInfoPresentFlag = r.flag("chroma_loc_info_present_flag")
	if vui.ChromaLocInfoPresentFlag {
		vui.ChromaSampleLocTypeTopField = r.ueMax("chroma_sample_loc_type_top_field", 5)
		vui.ChromaSampleLocTypeBottomField = r.ueMax("chroma_sample_loc_type_bottom_field", 5)
	}

	vui.NeutralChromaIndicationFlag = r.flag("neutral_chroma_indication_flag")
	vui.FieldSeqFlag = r.flag("field_seq_flag")
	vui.FrameFieldInfoPresentFlag = r.flag("frame_field_info_present_flag")

	vui.DefaultDisplayWindowFlag = r.flag("default_display_window_flag")
	if vui.DefaultDisplayWindowFlag {
		vui.DefDispWinLeftOffset = int(r.ue("def_disp_win_left_offset"))
		vui.DefDispWinRightOffset = int(r.ue("def_disp_win_right_offset"))
		vui.DefDispWinTopOffset = int(r.ue("def_disp_win_top_offset"))
		vui.DefDispWinBottomOffset = int(r.ue("def_disp_win_bottom_offset"))
	}

	vui.VUITimingInfoPresentFlag = r.flag("vui_timing_info_present_flag")
	if vui.VUITimingInfoPresentFlag {
		vui.VUINumUnitsInTick = r.u(32, "vui_num_units_in_tick")
		vui.VUITimeScale = r.u(32, "vui_time_scale")
		warnTiming(r, "vui", vui.VUINumUnitsInTick, vui.VUITimeScale)
		vui.VUIPocProportionalToTimingFlag = r.flag("vui_poc_proportional_to_timing_flag")
		if vui.VUIPocProportionalToTimingFlag {
			vui.VUINumTicksPocDiffOneMinus1 = r.ue("vui_num_ticks_poc_diff_one_minus1")
		}
		vui.VUIHRDParametersPresentFlag = r.flag("vui_hrd_parameters_present_flag")
		if vui.VUIHRDParametersPresentFlag {
			vui.HRDParameters = parseHRDParameters(r, true, maxSubLayersMinus1)
		}
	}

	vui.BitstreamRestrictionFlag = r.flag("bitstream_restriction_flag")
	if vui.BitstreamRestrictionFlag {
		vui.TilesFixedStructureFlag = r.flag("tiles_fixed_structure_flag")
		vui.MotionVectorsOverPicBoundariesFlag = r.flag("motion_vectors_over_pic_boundaries_flag")
		vui.RestrictedRefPicListsFlag = r.flag("restricted_ref_pic_lists_flag")
		vui.MinSpatialSegmentationIDC = r.ueMax("min_spatial_segmentation_idc", 4095)
		vui.MaxBytesPerPicDenom = r.ueMax("max_bytes_per_pic_denom", 16)
		vui.MaxBitsPerMinCuDenom = r.ueMax("max_bits_per_min_cu_denom", 16)
		vui.Log2MaxMvLengthHorizontal = r.ueMax("log2_max_mv_length_horizontal", 15)
		vui.Log2MaxMvLengthVertical = r.ueMax("log2_max_mv_length_vertical", 15)
	}

	return vui
}

// warnTiming warns about zero timing values, which are accepted as-is.
func warnTiming(r *fieldReader, what string, numUnitsInTick, timeScale uint32) {
	if r.err() != nil {
		return
	}
	if numUnitsInTick == 0 {
		log.Warn("%s: num_units_in_tick is 0", what)
	}
	if timeScale == 0 {
		log.Warn("%s: time_scale is 0", what)
	}
}
