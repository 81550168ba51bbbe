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
	"image"
)

const (
	// maxSPSCount is the number of distinct sps_seq_parameter_set_id values.
	maxSPSCount = 16
	// maxPicDimension bounds pic_width/height_in_luma_samples.
	maxPicDimension = 16888
)

// SPSRangeExtension is sps_range_extension().
type SPSRangeExtension struct {
	TransformSkipRotationEnabledFlag    bool
	TransformSkipContextEnabledFlag     bool
	ImplicitRdpcmEnabledFlag            bool
	ExplicitRdpcmEnabledFlag            bool
	ExtendedPrecisionProcessingFlag     bool
	IntraSmoothingDisabledFlag          bool
	HighPrecisionOffsetsEnabledFlag     bool
	PersistentRiceAdaptationEnabledFlag bool
	CabacBypassAlignmentEnabledFlag     bool
}

// SPSSccExtension is sps_scc_extension().
type SPSSccExtension struct {
	SPSCurrPicRefEnabledFlag                   bool
	PaletteModeEnabledFlag                     bool
	PaletteMaxSize                             int
	DeltaPaletteMaxPredictorSize               int
	SPSPalettePredictorInitializersPresentFlag bool
	SPSNumPalettePredictorInitializersMinus1   int
	SPSPalettePredictorInitializers            [3][]uint32
	MotionVectorResolutionControlIDC           int
	IntraBoundaryFilteringDisabledFlag         bool
}

// SPS is a sequence parameter set, 7.3.2.2.
type SPS struct {
	SPSVideoParameterSetID      int
	SPSMaxSubLayersMinus1       int
	SPSTemporalIDNestingFlag    bool
	ProfileTierLevel            *ProfileTierLevel
	SPSSeqParameterSetID        int
	ChromaFormatIDC             int
	SeparateColourPlaneFlag     bool
	PicWidthInLumaSamples       int
	PicHeightInLumaSamples      int
	ConformanceWindowFlag       bool
	ConfWinLeftOffset           int
	ConfWinRightOffset          int
	ConfWinTopOffset            int
	ConfWinBottomOffset         int
	BitDepthLumaMinus8          int
	BitDepthChromaMinus8        int
	Log2MaxPicOrderCntLsbMinus4 int

	SPSSubLayerOrderingInfoPresentFlag bool
	SPSMaxDecPicBufferingMinus1        [maxSubLayers]int
	SPSMaxNumReorderPics               [maxSubLayers]int
	SPSMaxLatencyIncreasePlus1         [maxSubLayers]uint32

	Log2MinLumaCodingBlockSizeMinus3     int
	Log2DiffMaxMinLumaCodingBlockSize    int
	Log2MinLumaTransformBlockSizeMinus2  int
	Log2DiffMaxMinLumaTransformBlockSize int
	MaxTransformHierarchyDepthInter      int
	MaxTransformHierarchyDepthIntra      int

	ScalingListEnabledFlag        bool
	SPSScalingListDataPresentFlag bool
	ScalingListData               ScalingListData

	AmpEnabledFlag                  bool
	SampleAdaptiveOffsetEnabledFlag bool

	PCMEnabledFlag                       bool
	PCMSampleBitDepthLumaMinus1          int
	PCMSampleBitDepthChromaMinus1        int
	Log2MinPCMLumaCodingBlockSizeMinus3  int
	Log2DiffMaxMinPCMLumaCodingBlockSize int
	PCMLoopFilterDisabledFlag            bool

	NumShortTermRefPicSets int
	StRefPicSet            [maxShortTermRefPicSets]ShortTermRefPicSet

	LongTermRefPicsPresentFlag bool
	NumLongTermRefPicsSPS      int
	LtRefPicPocLsbSPS          [maxLongTermRefPics]uint32
	UsedByCurrPicLtSPSFlag     [maxLongTermRefPics]bool

	SPSTemporalMvpEnabledFlag       bool
	StrongIntraSmoothingEnabledFlag bool

	VUIParametersPresentFlag bool
	VUIParameters            *VUIParameters

	SPSExtensionPresentFlag    bool
	SPSRangeExtensionFlag      bool
	SPSMultilayerExtensionFlag bool
	SPS3DExtensionFlag         bool
	SPSSccExtensionFlag        bool
	SPSExtension4Bits          int
	RangeExtension             SPSRangeExtension
	SccExtension               SPSSccExtension

	// Derived variables, computed on parse.
	ChromaArrayType    int
	SubWidthC          int
	SubHeightC         int
	BitDepthY          int
	BitDepthC          int
	QpBdOffsetY        int
	QpBdOffsetC        int
	MaxPicOrderCntLsb  int
	MinCbLog2SizeY     int
	CtbLog2SizeY       int
	MinCbSizeY         int
	CtbSizeY           int
	MinTbLog2SizeY     int
	MaxTbLog2SizeY     int
	PicWidthInCtbsY    int
	PicHeightInCtbsY   int
	PicSizeInCtbsY     int
	PicWidthInMinCbsY  int
	PicHeightInMinCbsY int
	WpOffsetBdShiftY   int
	WpOffsetBdShiftC   int
	WpOffsetHalfRangeY int
	WpOffsetHalfRangeC int

	// VPS is the referenced video parameter set, nil if it was not seen.
	VPS *VPS
}

// GetCodedSize returns the size of the coded picture in luma samples.
func (sps *SPS) GetCodedSize() image.Point {
	return image.Pt(sps.PicWidthInLumaSamples, sps.PicHeightInLumaSamples)
}

// GetVisibleRect returns the conformance cropping window in luma samples.
func (sps *SPS) GetVisibleRect() image.Rectangle {
	if !sps.ConformanceWindowFlag {
		return image.Rect(0, 0, sps.PicWidthInLumaSamples, sps.PicHeightInLumaSamples)
	}
	return image.Rect(
		sps.SubWidthC*sps.ConfWinLeftOffset,
		sps.SubHeightC*sps.ConfWinTopOffset,
		sps.PicWidthInLumaSamples-sps.SubWidthC*sps.ConfWinRightOffset,
		sps.PicHeightInLumaSamples-sps.SubHeightC*sps.ConfWinBottomOffset,
	)
}

// GetDPBMaxPicBuf returns the number of pictures the DPB must hold for the
// highest temporal sub-layer.
func (sps *SPS) GetDPBMaxPicBuf() int {
	return sps.SPSMaxDecPicBufferingMinus1[sps.SPSMaxSubLayersMinus1] + 1
}

// GetMaxDpbSize returns MaxDpbSize for the picture size and level, A.4.2.
func (sps *SPS) GetMaxDpbSize() int {
	const maxDpbPicBuf = 6

	maxLumaPs := sps.ProfileTierLevel.GeneralLevelIDC.MaxLumaPs()
	picSize := sps.PicWidthInLumaSamples * sps.PicHeightInLumaSamples

	switch {
	case picSize <= maxLumaPs>>2:
		return min(4*maxDpbPicBuf, maxDpbSize)
	case picSize <= maxLumaPs>>1:
		return min(2*maxDpbPicBuf, maxDpbSize)
	case picSize <= (3*maxLumaPs)>>2:
		return min((4*maxDpbPicBuf)/3, maxDpbSize)
	}
	return maxDpbPicBuf
}

// subsampling returns SubWidthC and SubHeightC, Table 6-1.
func subsampling(chromaFormatIDC int, separateColourPlane bool) (int, int) {
	if separateColourPlane {
		return 1, 1
	}
	switch chromaFormatIDC {
	case 1:
		return 2, 2
	case 2:
		return 2, 1
	}
	return 1, 1
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ceilLog2 returns the number of bits needed to code values in [0, n).
func ceilLog2(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	return bits
}

// parseSPS parses seq_parameter_set_rbsp(). Any VPS it references is
// resolved through the given lookup.
func parseSPS(r *fieldReader, lookupVPS func(int) *VPS) *SPS {
	sps := &SPS{}

	sps.SPSVideoParameterSetID = int(r.u(4, "sps_video_parameter_set_id"))
	sps.SPSMaxSubLayersMinus1 = int(r.u(3, "sps_max_sub_layers_minus1"))
	r.check(sps.SPSMaxSubLayersMinus1 < maxSubLayers,
		"sps_max_sub_layers_minus1 %d out of range", sps.SPSMaxSubLayersMinus1)
	sps.SPSTemporalIDNestingFlag = r.flag("sps_temporal_id_nesting_flag")
	if r.err() != nil {
		return nil
	}

	sps.VPS = lookupVPS(sps.SPSVideoParameterSetID)
	sps.ProfileTierLevel = parseProfileTierLevel(r, true, sps.SPSMaxSubLayersMinus1)

	sps.SPSSeqParameterSetID = r.ueMax("sps_seq_parameter_set_id", maxSPSCount-1)
	sps.ChromaFormatIDC = r.ueMax("chroma_format_idc", 3)
	if sps.ChromaFormatIDC == 3 {
		sps.SeparateColourPlaneFlag = r.flag("separate_colour_plane_flag")
	}
	sps.ChromaArrayType = sps.ChromaFormatIDC
	if sps.SeparateColourPlaneFlag {
		sps.ChromaArrayType = 0
	}
	sps.SubWidthC, sps.SubHeightC = subsampling(sps.ChromaFormatIDC, sps.SeparateColourPlaneFlag)

	sps.PicWidthInLumaSamples = r.ueBounded("pic_width_in_luma_samples", 1, maxPicDimension)
	sps.PicHeightInLumaSamples = r.ueBounded("pic_height_in_luma_samples", 1, maxPicDimension)

	sps.ConformanceWindowFlag = r.flag("conformance_window_flag")
	if sps.ConformanceWindowFlag {
		sps.ConfWinLeftOffset = int(r.ue("conf_win_left_offset"))
		sps.ConfWinRightOffset = int(r.ue("conf_win_right_offset"))
		sps.ConfWinTopOffset = int(r.ue("conf_win_top_offset"))
		sps.ConfWinBottomOffset = int(r.ue("conf_win_bottom_offset"))
		r.check(sps.SubWidthC*(sps.ConfWinLeftOffset+sps.ConfWinRightOffset) < sps.PicWidthInLumaSamples,
			"horizontal conformance window offsets exceed picture width")
		r.check(sps.SubHeightC*(sps.ConfWinTopOffset+sps.ConfWinBottomOffset) < sps.PicHeightInLumaSamples,
			"vertical conformance window offsets exceed picture height")
	}

	sps.BitDepthLumaMinus8 = r.ueMax("bit_depth_luma_minus8", 8)
	sps.BitDepthChromaMinus8 = r.ueMax("bit_depth_chroma_minus8", 8)
	sps.BitDepthY = 8 + sps.BitDepthLumaMinus8
	sps.BitDepthC = 8 + sps.BitDepthChromaMinus8
	sps.QpBdOffsetY = 6 * sps.BitDepthLumaMinus8
	sps.QpBdOffsetC = 6 * sps.BitDepthChromaMinus8

	sps.Log2MaxPicOrderCntLsbMinus4 = r.ueMax("log2_max_pic_order_cnt_lsb_minus4", 12)
	sps.MaxPicOrderCntLsb = 1 << (sps.Log2MaxPicOrderCntLsbMinus4 + 4)

	sps.SPSSubLayerOrderingInfoPresentFlag = r.flag("sps_sub_layer_ordering_info_present_flag")
	first := sps.SPSMaxSubLayersMinus1
	if sps.SPSSubLayerOrderingInfoPresentFlag {
		first = 0
	}
	for i := first; i <= sps.SPSMaxSubLayersMinus1; i++ {
		sps.SPSMaxDecPicBufferingMinus1[i] = r.ueMax("sps_max_dec_pic_buffering_minus1", maxDpbSize-1)
		sps.SPSMaxNumReorderPics[i] = r.ueMax("sps_max_num_reorder_pics", sps.SPSMaxDecPicBufferingMinus1[i])
		sps.SPSMaxLatencyIncreasePlus1[i] = r.ue("sps_max_latency_increase_plus1")
		if i > 0 {
			r.check(sps.SPSMaxDecPicBufferingMinus1[i] >= sps.SPSMaxDecPicBufferingMinus1[i-1],
				"sps_max_dec_pic_buffering_minus1 decreases for sub-layer %d", i)
			r.check(sps.SPSMaxNumReorderPics[i] >= sps.SPSMaxNumReorderPics[i-1],
				"sps_max_num_reorder_pics decreases for sub-layer %d", i)
		}
	}
	if !sps.SPSSubLayerOrderingInfoPresentFlag {
		last := sps.SPSMaxSubLayersMinus1
		for i := 0; i < last; i++ {
			sps.SPSMaxDecPicBufferingMinus1[i] = sps.SPSMaxDecPicBufferingMinus1[last]
			sps.SPSMaxNumReorderPics[i] = sps.SPSMaxNumReorderPics[last]
			sps.SPSMaxLatencyIncreasePlus1[i] = sps.SPSMaxLatencyIncreasePlus1[last]
		}
	}

	sps.Log2MinLumaCodingBlockSizeMinus3 = r.ueMax("log2_min_luma_coding_block_size_minus3", 3)
	sps.Log2DiffMaxMinLumaCodingBlockSize = r.ueMax("log2_diff_max_min_luma_coding_block_size", 3)
	sps.Log2MinLumaTransformBlockSizeMinus2 = r.ueMax("log2_min_luma_transform_block_size_minus2", 3)
	sps.Log2DiffMaxMinLumaTransformBlockSize = r.ueMax("log2_diff_max_min_luma_transform_block_size", 3)
	if r.err() != nil {
		return nil
	}

	sps.MinCbLog2SizeY = sps.Log2MinLumaCodingBlockSizeMinus3 + 3
	sps.CtbLog2SizeY = sps.MinCbLog2SizeY + sps.Log2DiffMaxMinLumaCodingBlockSize
	sps.MinCbSizeY = 1 << sps.MinCbLog2SizeY
	sps.CtbSizeY = 1 << sps.CtbLog2SizeY
	sps.MinTbLog2SizeY = sps.Log2MinLumaTransformBlockSizeMinus2 + 2
	sps.MaxTbLog2SizeY = sps.MinTbLog2SizeY + sps.Log2DiffMaxMinLumaTransformBlockSize
	sps.PicWidthInCtbsY = ceilDiv(sps.PicWidthInLumaSamples, sps.CtbSizeY)
	sps.PicHeightInCtbsY = ceilDiv(sps.PicHeightInLumaSamples, sps.CtbSizeY)
	sps.PicSizeInCtbsY = sps.PicWidthInCtbsY * sps.PicHeightInCtbsY
	sps.PicWidthInMinCbsY = sps.PicWidthInLumaSamples / sps.MinCbSizeY
	sps.PicHeightInMinCbsY = sps.PicHeightInLumaSamples / sps.MinCbSizeY

	r.check(sps.CtbLog2SizeY <= 6, "CtbLog2SizeY %d out of range", sps.CtbLog2SizeY)
	r.check(sps.MinTbLog2SizeY < sps.MinCbLog2SizeY,
		"MinTbLog2SizeY %d not less than MinCbLog2SizeY %d", sps.MinTbLog2SizeY, sps.MinCbLog2SizeY)
	r.check(sps.MaxTbLog2SizeY <= min(sps.CtbLog2SizeY, 5),
		"MaxTbLog2SizeY %d exceeds min(CtbLog2SizeY, 5)", sps.MaxTbLog2SizeY)
	r.check(sps.PicWidthInLumaSamples%sps.MinCbSizeY == 0,
		"pic_width_in_luma_samples %d not a multiple of MinCbSizeY", sps.PicWidthInLumaSamples)
	r.check(sps.PicHeightInLumaSamples%sps.MinCbSizeY == 0,
		"pic_height_in_luma_samples %d not a multiple of MinCbSizeY", sps.PicHeightInLumaSamples)

	sps.MaxTransformHierarchyDepthInter = r.ueMax("max_transform_hierarchy_depth_inter", sps.CtbLog2SizeY-sps.MinTbLog2SizeY)
	sps.MaxTransformHierarchyDepthIntra = r.ueMax("max_transform_hierarchy_depth_intra", sps.CtbLog2SizeY-sps.MinTbLog2SizeY)

	sps.ScalingListEnabledFlag = r.flag("scaling_list_enabled_flag")
	if sps.ScalingListEnabledFlag {
		sps.SPSScalingListDataPresentFlag = r.flag("sps_scaling_list_data_present_flag")
		sps.ScalingListData = DefaultScalingListData()
		if sps.SPSScalingListDataPresentFlag {
			parseScalingListData(r, &sps.ScalingListData)
		}
	} else {
		sps.ScalingListData = FlatScalingListData()
	}

	sps.AmpEnabledFlag = r.flag("amp_enabled_flag")
	sps.SampleAdaptiveOffsetEnabledFlag = r.flag("sample_adaptive_offset_enabled_flag")

	sps.PCMEnabledFlag = r.flag("pcm_enabled_flag")
	if sps.PCMEnabledFlag {
		sps.PCMSampleBitDepthLumaMinus1 = int(r.u(4, "pcm_sample_bit_depth_luma_minus1"))
		sps.PCMSampleBitDepthChromaMinus1 = int(r.u(4, "pcm_sample_bit_depth_chroma_minus1"))
		r.check(sps.PCMSampleBitDepthLumaMinus1+1 <= sps.BitDepthY, "PCM luma bit depth exceeds BitDepthY")
		r.check(sps.PCMSampleBitDepthChromaMinus1+1 <= sps.BitDepthC, "PCM chroma bit depth exceeds BitDepthC")
		sps.Log2MinPCMLumaCodingBlockSizeMinus3 = r.ueMax("log2_min_pcm_luma_coding_block_size_minus3", 2)
		sps.Log2DiffMaxMinPCMLumaCodingBlockSize = r.ueMax("log2_diff_max_min_pcm_luma_coding_block_size", 2)
		minPCM := sps.Log2MinPCMLumaCodingBlockSizeMinus3 + 3
		maxPCM := minPCM + sps.Log2DiffMaxMinPCMLumaCodingBlockSize
		r.check(minPCM >= min(sps.MinCbLog2SizeY, 5) && maxPCM <= min(sps.CtbLog2SizeY, 5),
			"PCM coding block sizes [%d, %d] out of range", minPCM, maxPCM)
		sps.PCMLoopFilterDisabledFlag = r.flag("pcm_loop_filter_disabled_flag")
	}

	sps.NumShortTermRefPicSets = r.ueMax("num_short_term_ref_pic_sets", maxShortTermRefPicSets)
	if r.err() != nil {
		return nil
	}
	for i := 0; i < sps.NumShortTermRefPicSets && r.err() == nil; i++ {
		sps.StRefPicSet[i] = parseStRefPicSet(r, i, sps.NumShortTermRefPicSets, sps.StRefPicSet[:],
			sps.SPSMaxDecPicBufferingMinus1[sps.SPSMaxSubLayersMinus1])
	}

	sps.LongTermRefPicsPresentFlag = r.flag("long_term_ref_pics_present_flag")
	if sps.LongTermRefPicsPresentFlag {
		sps.NumLongTermRefPicsSPS = r.ueMax("num_long_term_ref_pics_sps", maxLongTermRefPics)
		for i := 0; i < sps.NumLongTermRefPicsSPS && r.err() == nil; i++ {
			sps.LtRefPicPocLsbSPS[i] = r.u(sps.Log2MaxPicOrderCntLsbMinus4+4, "lt_ref_pic_poc_lsb_sps")
			sps.UsedByCurrPicLtSPSFlag[i] = r.flag("used_by_curr_pic_lt_sps_flag")
		}
	}

	sps.SPSTemporalMvpEnabledFlag = r.flag("sps_temporal_mvp_enabled_flag")
	sps.StrongIntraSmoothingEnabledFlag = r.flag("strong_intra_smoothing_enabled_flag")

	sps.VUIParametersPresentFlag = r.flag("vui_parameters_present_flag")
	if sps.VUIParametersPresentFlag {
		sps.VUIParameters = parseVUIParameters(r, sps.SPSMaxSubLayersMinus1)
	}

	sps.SPSExtensionPresentFlag = r.flag("sps_extension_present_flag")
	if sps.SPSExtensionPresentFlag {
		sps.SPSRangeExtensionFlag = r.flag("sps_range_extension_flag")
		sps.SPSMultilayerExtensionFlag = r.flag("sps_multilayer_extension_flag")
		sps.SPS3DExtensionFlag = r.flag("sps_3d_extension_flag")
		sps.SPSSccExtensionFlag = r.flag("sps_scc_extension_flag")
		sps.SPSExtension4Bits = int(r.u(4, "sps_extension_4bits"))
	}

	if sps.SPSRangeExtensionFlag {
		ext := &sps.RangeExtension
		ext.TransformSkipRotationEnabledFlag = r.flag("transform_skip_rotation_enabled_flag")
		ext.TransformSkipContextEnabledFlag = r.flag("transform_skip_context_enabled_flag")
		ext.ImplicitRdpcmEnabledFlag = r.flag("implicit_rdpcm_enabled_flag")
		ext.ExplicitRdpcmEnabledFlag = r.flag("explicit_rdpcm_enabled_flag")
		ext.ExtendedPrecisionProcessingFlag = r.flag("extended_precision_processing_flag")
		ext.IntraSmoothingDisabledFlag = r.flag("intra_smoothing_disabled_flag")
		ext.HighPrecisionOffsetsEnabledFlag = r.flag("high_precision_offsets_enabled_flag")
		ext.PersistentRiceAdaptationEnabledFlag = r.flag("persistent_rice_adaptation_enabled_flag")
		ext.CabacBypassAlignmentEnabledFlag = r.flag("cabac_bypass_alignment_enabled_flag")
	}
	r.check(!sps.SPSMultilayerExtensionFlag, "multilayer extension is not supported")
	r.check(!sps.SPS3DExtensionFlag, "3D extension is not supported")

	if sps.SPSSccExtensionFlag {
		parseSPSSccExtension(r, sps)
	}

	// sps_extension_data_flag bits, if any, are ignored.

	if r.err() != nil {
		return nil
	}

	sps.computeWeightedPredictionRanges()

	return sps
}

func parseSPSSccExtension(r *fieldReader, sps *SPS) {
	ext := &sps.SccExtension
	ext.SPSCurrPicRefEnabledFlag = r.flag("sps_curr_pic_ref_enabled_flag")
	ext.PaletteModeEnabledFlag = r.flag("palette_mode_enabled_flag")
	if ext.PaletteModeEnabledFlag {
		ext.PaletteMaxSize = r.ueMax("palette_max_size", 64)
		ext.DeltaPaletteMaxPredictorSize = r.ueMax("delta_palette_max_predictor_size", 128)
		ext.SPSPalettePredictorInitializersPresentFlag = r.flag("sps_palette_predictor_initializers_present_flag")
		if ext.SPSPalettePredictorInitializersPresentFlag {
			maxInit := ext.PaletteMaxSize + ext.DeltaPaletteMaxPredictorSize - 1
			ext.SPSNumPalettePredictorInitializersMinus1 = r.ueMax("sps_num_palette_predictor_initializers_minus1", maxInit)
			numComps := 3
			if sps.ChromaFormatIDC == 0 {
				numComps = 1
			}
			for comp := 0; comp < numComps && r.err() == nil; comp++ {
				depth := sps.BitDepthY
				if comp > 0 {
					depth = sps.BitDepthC
				}
				for i := 0; i <= ext.SPSNumPalettePredictorInitializersMinus1; i++ {
					ext.SPSPalettePredictorInitializers[comp] = append(ext.SPSPalettePredictorInitializers[comp],
						r.u(depth, "sps_palette_predictor_initializer"))
				}
			}
		}
	}
	ext.MotionVectorResolutionControlIDC = int(r.u(2, "motion_vector_resolution_control_idc"))
	ext.IntraBoundaryFilteringDisabledFlag = r.flag("intra_boundary_filtering_disabled_flag")
}

// computeWeightedPredictionRanges derives the weighted prediction offset
// shifts and half-ranges, (7-32)..(7-35).
func (sps *SPS) computeWeightedPredictionRanges() {
	if sps.RangeExtension.HighPrecisionOffsetsEnabledFlag {
		sps.WpOffsetBdShiftY = 0
		sps.WpOffsetBdShiftC = 0
		sps.WpOffsetHalfRangeY = 1 << (sps.BitDepthY - 1)
		sps.WpOffsetHalfRangeC = 1 << (sps.BitDepthC - 1)
		return
	}
	sps.WpOffsetBdShiftY = sps.BitDepthY - 8
	sps.WpOffsetBdShiftC = sps.BitDepthC - 8
	sps.WpOffsetHalfRangeY = 1 << 7
	sps.WpOffsetHalfRangeC = 1 << 7
}
