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
	// maxPPSCount is the number of distinct pps_pic_parameter_set_id values.
	maxPPSCount = 64
	// maxTileColumns and maxTileRows bound the tile grid of any level.
	maxTileColumns = 20
	maxTileRows    = 22
	// maxRefIdxActive bounds num_ref_idx_lX_active_minus1 + 1.
	maxRefIdxActive = 15
	// maxChromaQpOffsetListLen bounds chroma_qp_offset_list_len_minus1 + 1.
	maxChromaQpOffsetListLen = 6
)

// PPSRangeExtension is pps_range_extension().
type PPSRangeExtension struct {
	Log2MaxTransformSkipBlockSizeMinus2 int
	CrossComponentPredictionEnabledFlag bool
	ChromaQpOffsetListEnabledFlag       bool
	DiffCuChromaQpOffsetDepth           int
	ChromaQpOffsetListLenMinus1         int
	CbQpOffsetList                      [maxChromaQpOffsetListLen]int
	CrQpOffsetList                      [maxChromaQpOffsetListLen]int
	Log2SaoOffsetScaleLuma              int
	Log2SaoOffsetScaleChroma            int
}

// PPSSccExtension is pps_scc_extension().
type PPSSccExtension struct {
	PPSCurrPicRefEnabledFlag                   bool
	ResidualAdaptiveColourTransformEnabledFlag bool
	PPSSliceActQpOffsetsPresentFlag            bool
	PPSActYQpOffsetPlus5                       int
	PPSActCbQpOffsetPlus5                      int
	PPSActCrQpOffsetPlus3                      int
	PPSPalettePredictorInitializersPresentFlag bool
	PPSNumPalettePredictorInitializers         int
	MonochromePaletteFlag                      bool
	LumaBitDepthEntryMinus8                    int
	ChromaBitDepthEntryMinus8                  int
	PPSPalettePredictorInitializers            [3][]uint32
}

// PPS is a picture parameter set, 7.3.2.3.
type PPS struct {
	PPSPicParameterSetID                   int
	PPSSeqParameterSetID                   int
	DependentSliceSegmentsEnabledFlag      bool
	OutputFlagPresentFlag                  bool
	NumExtraSliceHeaderBits                int
	SignDataHidingEnabledFlag              bool
	CabacInitPresentFlag                   bool
	NumRefIdxL0DefaultActiveMinus1         int
	NumRefIdxL1DefaultActiveMinus1         int
	InitQpMinus26                          int
	ConstrainedIntraPredFlag               bool
	TransformSkipEnabledFlag               bool
	CuQpDeltaEnabledFlag                   bool
	DiffCuQpDeltaDepth                     int
	PPSCbQpOffset                          int
	PPSCrQpOffset                          int
	PPSSliceChromaQpOffsetsPresentFlag     bool
	WeightedPredFlag                       bool
	WeightedBipredFlag                     bool
	TransquantBypassEnabledFlag            bool
	TilesEnabledFlag                       bool
	EntropyCodingSyncEnabledFlag           bool
	NumTileColumnsMinus1                   int
	NumTileRowsMinus1                      int
	UniformSpacingFlag                     bool
	ColumnWidthMinus1                      [maxTileColumns]int
	RowHeightMinus1                        [maxTileRows]int
	LoopFilterAcrossTilesEnabledFlag       bool
	PPSLoopFilterAcrossSlicesEnabledFlag   bool
	DeblockingFilterControlPresentFlag     bool
	DeblockingFilterOverrideEnabledFlag    bool
	PPSDeblockingFilterDisabledFlag        bool
	PPSBetaOffsetDiv2                      int
	PPSTcOffsetDiv2                        int
	PPSScalingListDataPresentFlag          bool
	ScalingListData                        ScalingListData
	ListsModificationPresentFlag           bool
	Log2ParallelMergeLevelMinus2           int
	SliceSegmentHeaderExtensionPresentFlag bool

	PPSExtensionPresentFlag    bool
	PPSRangeExtensionFlag      bool
	PPSMultilayerExtensionFlag bool
	PPS3DExtensionFlag         bool
	PPSSccExtensionFlag        bool
	PPSExtension4Bits          int
	RangeExtension             PPSRangeExtension
	SccExtension               PPSSccExtension

	// SPS is the referenced sequence parameter set.
	SPS *SPS
}

// ColumnWidths returns the width of every tile column in CTBs (6-3).
func (pps *PPS) ColumnWidths() []int {
	n := pps.NumTileColumnsMinus1 + 1
	widths := make([]int, n)
	total := pps.SPS.PicWidthInCtbsY
	if pps.UniformSpacingFlag {
		for i := 0; i < n; i++ {
			widths[i] = ((i+1)*total)/n - (i*total)/n
		}
		return widths
	}
	used := 0
	for i := 0; i < n-1; i++ {
		widths[i] = pps.ColumnWidthMinus1[i] + 1
		used += widths[i]
	}
	widths[n-1] = total - used
	return widths
}

// RowHeights returns the height of every tile row in CTBs (6-4).
func (pps *PPS) RowHeights() []int {
	n := pps.NumTileRowsMinus1 + 1
	heights := make([]int, n)
	total := pps.SPS.PicHeightInCtbsY
	if pps.UniformSpacingFlag {
		for i := 0; i < n; i++ {
			heights[i] = ((i+1)*total)/n - (i*total)/n
		}
		return heights
	}
	used := 0
	for i := 0; i < n-1; i++ {
		heights[i] = pps.RowHeightMinus1[i] + 1
		used += heights[i]
	}
	heights[n-1] = total - used
	return heights
}

// parsePPS parses pic_parameter_set_rbsp(). The referenced SPS must be
// known to the given lookup.
func parsePPS(r *fieldReader, lookupSPS func(int) *SPS) *PPS {
	pps := &PPS{}

	pps.PPSPicParameterSetID = r.ueMax("pps_pic_parameter_set_id", maxPPSCount-1)
	pps.PPSSeqParameterSetID = r.ueMax("pps_seq_parameter_set_id", maxSPSCount-1)
	if r.err() != nil {
		return nil
	}

	sps := lookupSPS(pps.PPSSeqParameterSetID)
	r.check(sps != nil, "referenced SPS %d is missing", pps.PPSSeqParameterSetID)
	if r.err() != nil {
		return nil
	}
	pps.SPS = sps

	pps.DependentSliceSegmentsEnabledFlag = r.flag("dependent_slice_segments_enabled_flag")
	pps.OutputFlagPresentFlag = r.flag("output_flag_present_flag")
	pps.NumExtraSliceHeaderBits = int(r.u(3, "num_extra_slice_header_bits"))
	pps.SignDataHidingEnabledFlag = r.flag("sign_data_hiding_enabled_flag")
	pps.CabacInitPresentFlag = r.flag("cabac_init_present_flag")
	pps.NumRefIdxL0DefaultActiveMinus1 = r.ueMax("num_ref_idx_l0_default_active_minus1", maxRefIdxActive-1)
	pps.NumRefIdxL1DefaultActiveMinus1 = r.ueMax("num_ref_idx_l1_default_active_minus1", maxRefIdxActive-1)
	pps.InitQpMinus26 = r.seBounded("init_qp_minus26", -(26 + sps.QpBdOffsetY), 25)
	pps.ConstrainedIntraPredFlag = r.flag("constrained_intra_pred_flag")
	pps.TransformSkipEnabledFlag = r.flag("transform_skip_enabled_flag")
	pps.CuQpDeltaEnabledFlag = r.flag("cu_qp_delta_enabled_flag")
	if pps.CuQpDeltaEnabledFlag {
		pps.DiffCuQpDeltaDepth = r.ueMax("diff_cu_qp_delta_depth", sps.Log2DiffMaxMinLumaCodingBlockSize)
	}
	pps.PPSCbQpOffset = r.seBounded("pps_cb_qp_offset", -12, 12)
	pps.PPSCrQpOffset = r.seBounded("pps_cr_qp_offset", -12, 12)
	pps.PPSSliceChromaQpOffsetsPresentFlag = r.flag("pps_slice_chroma_qp_offsets_present_flag")
	pps.WeightedPredFlag = r.flag("weighted_pred_flag")
	pps.WeightedBipredFlag = r.flag("weighted_bipred_flag")
	pps.TransquantBypassEnabledFlag = r.flag("transquant_bypass_enabled_flag")
	pps.TilesEnabledFlag = r.flag("tiles_enabled_flag")
	pps.EntropyCodingSyncEnabledFlag = r.flag("entropy_coding_sync_enabled_flag")

	if pps.TilesEnabledFlag {
		pps.NumTileColumnsMinus1 = r.ueMax("num_tile_columns_minus1", min(sps.PicWidthInCtbsY, maxTileColumns)-1)
		pps.NumTileRowsMinus1 = r.ueMax("num_tile_rows_minus1", min(sps.PicHeightInCtbsY, maxTileRows)-1)
		r.check(pps.NumTileColumnsMinus1 > 0 || pps.NumTileRowsMinus1 > 0,
			"tiles enabled with a single tile")
		pps.UniformSpacingFlag = r.flag("uniform_spacing_flag")
		if !pps.UniformSpacingFlag && r.err() == nil {
			used := 0
			for i := 0; i < pps.NumTileColumnsMinus1; i++ {
				pps.ColumnWidthMinus1[i] = r.ueMax("column_width_minus1", sps.PicWidthInCtbsY-used-1)
				used += pps.ColumnWidthMinus1[i] + 1
			}
			r.check(used < sps.PicWidthInCtbsY, "tile columns exceed picture width")
			used = 0
			for i := 0; i < pps.NumTileRowsMinus1; i++ {
				pps.RowHeightMinus1[i] = r.ueMax("row_height_minus1", sps.PicHeightInCtbsY-used-1)
				used += pps.RowHeightMinus1[i] + 1
			}
			r.check(used < sps.PicHeightInCtbsY, "tile rows exceed picture height")
		}
		pps.LoopFilterAcrossTilesEnabledFlag = r.flag("loop_filter_across_tiles_enabled_flag")
	}

	pps.PPSLoopFilterAcrossSlicesEnabledFlag = r.flag("pps_loop_filter_across_slices_enabled_flag")
	pps.DeblockingFilterControlPresentFlag = r.flag("deblocking_filter_control_present_flag")
	if pps.DeblockingFilterControlPresentFlag {
		pps.DeblockingFilterOverrideEnabledFlag = r.flag("deblocking_filter_override_enabled_flag")
		pps.PPSDeblockingFilterDisabledFlag = r.flag("pps_deblocking_filter_disabled_flag")
		if !pps.PPSDeblockingFilterDisabledFlag {
			pps.PPSBetaOffsetDiv2 = r.seBounded("pps_beta_offset_div2", -6, 6)
			pps.PPSTcOffsetDiv2 = r.seBounded("pps_tc_offset_div2", -6, 6)
		}
	}

	pps.PPSScalingListDataPresentFlag = r.flag("pps_scaling_list_data_present_flag")
	if pps.PPSScalingListDataPresentFlag {
		pps.ScalingListData = DefaultScalingListData()
		parseScalingListData(r, &pps.ScalingListData)
	} else {
		pps.ScalingListData = sps.ScalingListData
	}

	pps.ListsModificationPresentFlag = r.flag("lists_modification_present_flag")
	pps.Log2ParallelMergeLevelMinus2 = r.ueMax("log2_parallel_merge_level_minus2", sps.CtbLog2SizeY-2)
	pps.SliceSegmentHeaderExtensionPresentFlag = r.flag("slice_segment_header_extension_present_flag")

	pps.PPSExtensionPresentFlag = r.flag("pps_extension_present_flag")
	if pps.PPSExtensionPresentFlag {
		pps.PPSRangeExtensionFlag = r.flag("pps_range_extension_flag")
		pps.PPSMultilayerExtensionFlag = r.flag("pps_multilayer_extension_flag")
		pps.PPS3DExtensionFlag = r.flag("pps_3d_extension_flag")
		pps.PPSSccExtensionFlag = r.flag("pps_scc_extension_flag")
		pps.PPSExtension4Bits = int(r.u(4, "pps_extension_4bits"))
	}

	if pps.PPSRangeExtensionFlag {
		parsePPSRangeExtension(r, pps, sps)
	}
	r.check(!pps.PPSMultilayerExtensionFlag, "multilayer extension is not supported")
	r.check(!pps.PPS3DExtensionFlag, "3D extension is not supported")
	if pps.PPSSccExtensionFlag {
		parsePPSSccExtension(r, pps, sps)
	}

	if r.err() != nil {
		return nil
	}
	return pps
}

func parsePPSRangeExtension(r *fieldReader, pps *PPS, sps *SPS) {
	ext := &pps.RangeExtension
	if pps.TransformSkipEnabledFlag {
		ext.Log2MaxTransformSkipBlockSizeMinus2 = r.ueMax("log2_max_transform_skip_block_size_minus2", sps.MaxTbLog2SizeY-2)
	}
	ext.CrossComponentPredictionEnabledFlag = r.flag("cross_component_prediction_enabled_flag")
	r.check(!ext.CrossComponentPredictionEnabledFlag || sps.ChromaArrayType == 3,
		"cross_component_prediction_enabled_flag requires ChromaArrayType 3")
	ext.ChromaQpOffsetListEnabledFlag = r.flag("chroma_qp_offset_list_enabled_flag")
	if ext.ChromaQpOffsetListEnabledFlag {
		ext.DiffCuChromaQpOffsetDepth = r.ueMax("diff_cu_chroma_qp_offset_depth", sps.Log2DiffMaxMinLumaCodingBlockSize)
		ext.ChromaQpOffsetListLenMinus1 = r.ueMax("chroma_qp_offset_list_len_minus1", maxChromaQpOffsetListLen-1)
		for i := 0; i <= ext.ChromaQpOffsetListLenMinus1; i++ {
			ext.CbQpOffsetList[i] = r.seBounded("cb_qp_offset_list", -12, 12)
			ext.CrQpOffsetList[i] = r.seBounded("cr_qp_offset_list", -12, 12)
		}
	}
	ext.Log2SaoOffsetScaleLuma = r.ueMax("log2_sao_offset_scale_luma", max(0, sps.BitDepthY-10))
	ext.Log2SaoOffsetScaleChroma = r.ueMax("log2_sao_offset_scale_chroma", max(0, sps.BitDepthC-10))
}

func parsePPSSccExtension(r *fieldReader, pps *PPS, sps *SPS) {
	ext := &pps.SccExtension
	ext.PPSCurrPicRefEnabledFlag = r.flag("pps_curr_pic_ref_enabled_flag")
	ext.ResidualAdaptiveColourTransformEnabledFlag = r.flag("residual_adaptive_colour_transform_enabled_flag")
	if ext.ResidualAdaptiveColourTransformEnabledFlag {
		ext.PPSSliceActQpOffsetsPresentFlag = r.flag("pps_slice_act_qp_offsets_present_flag")
		ext.PPSActYQpOffsetPlus5 = r.seBounded("pps_act_y_qp_offset_plus5", -7, 17)
		ext.PPSActCbQpOffsetPlus5 = r.seBounded("pps_act_cb_qp_offset_plus5", -7, 17)
		ext.PPSActCrQpOffsetPlus3 = r.seBounded("pps_act_cr_qp_offset_plus3", -9, 15)
	}
	ext.PPSPalettePredictorInitializersPresentFlag = r.flag("pps_palette_predictor_initializers_present_flag")
	if !ext.PPSPalettePredictorInitializersPresentFlag {
		return
	}

	maxInit := sps.SccExtension.PaletteMaxSize + sps.SccExtension.DeltaPaletteMaxPredictorSize
	ext.PPSNumPalettePredictorInitializers = r.ueMax("pps_num_palette_predictor_initializers", maxInit)
	if ext.PPSNumPalettePredictorInitializers == 0 {
		return
	}
	ext.MonochromePaletteFlag = r.flag("monochrome_palette_flag")
	ext.LumaBitDepthEntryMinus8 = r.ueMax("luma_bit_depth_entry_minus8", 8)
	numComps := 1
	if !ext.MonochromePaletteFlag {
		ext.ChromaBitDepthEntryMinus8 = r.ueMax("chroma_bit_depth_entry_minus8", 8)
		numComps = 3
	}
	for comp := 0; comp < numComps && r.err() == nil; comp++ {
		depth := ext.LumaBitDepthEntryMinus8 + 8
		if comp > 0 {
			depth = ext.ChromaBitDepthEntryMinus8 + 8
		}
		for i := 0; i < ext.PPSNumPalettePredictorInitializers; i++ {
			ext.PPSPalettePredictorInitializers[comp] = append(ext.PPSPalettePredictorInitializers[comp],
				r.u(depth, "pps_palette_predictor_initializer"))
		}
	}
}
