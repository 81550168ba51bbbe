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
	// maxSubLayers bounds max_sub_layers_minus1 + 1.
	maxSubLayers = 7
	// maxVPSCount is the number of distinct vps_video_parameter_set_id values.
	maxVPSCount = 16
	// maxLayerSets bounds vps_num_layer_sets_minus1 + 1.
	maxLayerSets = 1024
	// maxDpbSize is the largest decoded picture buffer size of any level.
	maxDpbSize = 16
)

// VPS is a video parameter set, 7.3.2.1.
type VPS struct {
	VPSVideoParameterSetID             int
	VPSBaseLayerInternalFlag           bool
	VPSBaseLayerAvailableFlag          bool
	VPSMaxLayersMinus1                 int
	VPSMaxSubLayersMinus1              int
	VPSTemporalIDNestingFlag           bool
	ProfileTierLevel                   *ProfileTierLevel
	VPSSubLayerOrderingInfoPresentFlag bool
	VPSMaxDecPicBufferingMinus1        [maxSubLayers]int
	VPSMaxNumReorderPics               [maxSubLayers]int
	VPSMaxLatencyIncreasePlus1         [maxSubLayers]uint32
	VPSMaxLayerID                      int
	VPSNumLayerSetsMinus1              int
	VPSTimingInfoPresentFlag           bool
	VPSNumUnitsInTick                  uint32
	VPSTimeScale                       uint32
	VPSPocProportionalToTimingFlag     bool
	VPSNumTicksPocDiffOneMinus1        uint32
	VPSNumHRDParameters                int
	HRDLayerSetIdx                     []int
	CprmsPresentFlag                   []bool
	HRDParameters                      []*HRDParameters
	VPSExtensionFlag                   bool
}

// parseVPS parses video_parameter_set_rbsp().
func parseVPS(r *fieldReader) *VPS {
	vps := &VPS{}

	vps.VPSVideoParameterSetID = int(r.u(4, "vps_video_parameter_set_id"))
	vps.VPSBaseLayerInternalFlag = r.flag("vps_base_layer_internal_flag")
	vps.VPSBaseLayerAvailableFlag = r.flag("vps_base_layer_available_flag")
	vps.VPSMaxLayersMinus1 = int(r.u(6, "vps_max_layers_minus1"))
	vps.VPSMaxSubLayersMinus1 = int(r.u(3, "vps_max_sub_layers_minus1"))
	r.check(vps.VPSMaxSubLayersMinus1 < maxSubLayers,
		"vps_max_sub_layers_minus1 %d out of range", vps.VPSMaxSubLayersMinus1)
	vps.VPSTemporalIDNestingFlag = r.flag("vps_temporal_id_nesting_flag")
	reserved := r.u(16, "vps_reserved_0xffff_16bits")
	r.check(reserved == 0xffff, "vps_reserved_0xffff_16bits is 0x%x", reserved)
	if r.err() != nil {
		return nil
	}

	vps.ProfileTierLevel = parseProfileTierLevel(r, true, vps.VPSMaxSubLayersMinus1)

	vps.VPSSubLayerOrderingInfoPresentFlag = r.flag("vps_sub_layer_ordering_info_present_flag")
	first := vps.VPSMaxSubLayersMinus1
	if vps.VPSSubLayerOrderingInfoPresentFlag {
		first = 0
	}
	for i := first; i <= vps.VPSMaxSubLayersMinus1; i++ {
		vps.VPSMaxDecPicBufferingMinus1[i] = r.ueMax("vps_max_dec_pic_buffering_minus1", maxDpbSize-1)
		vps.VPSMaxNumReorderPics[i] = r.ueMax("vps_max_num_reorder_pics", vps.VPSMaxDecPicBufferingMinus1[i])
		vps.VPSMaxLatencyIncreasePlus1[i] = r.ue("vps_max_latency_increase_plus1")
		if i > 0 {
			r.check(vps.VPSMaxDecPicBufferingMinus1[i] >= vps.VPSMaxDecPicBufferingMinus1[i-1],
				"vps_max_dec_pic_buffering_minus1 decreases for sub-layer %d", i)
			r.check(vps.VPSMaxNumReorderPics[i] >= vps.VPSMaxNumReorderPics[i-1],
				"vps_max_num_reorder_pics decreases for sub-layer %d", i)
		}
	}
	if !vps.VPSSubLayerOrderingInfoPresentFlag {
		last := vps.VPSMaxSubLayersMinus1
		for i := 0; i < last; i++ {
			vps.VPSMaxDecPicBufferingMinus1[i] = vps.VPSMaxDecPicBufferingMinus1[last]
			vps.VPSMaxNumReorderPics[i] = vps.VPSMaxNumReorderPics[last]
			vps.VPSMaxLatencyIncreasePlus1[i] = vps.VPSMaxLatencyIncreasePlus1[last]
		}
	}

	vps.VPSMaxLayerID = int(r.u(6, "vps_max_layer_id"))
	vps.VPSNumLayerSetsMinus1 = r.ueMax("vps_num_layer_sets_minus1", maxLayerSets-1)
	if r.err() != nil {
		return nil
	}
	for i := 1; i <= vps.VPSNumLayerSetsMinus1; i++ {
		r.skip(vps.VPSMaxLayerID+1, "layer_id_included_flag")
	}

	vps.VPSTimingInfoPresentFlag = r.flag("vps_timing_info_present_flag")
	if vps.VPSTimingInfoPresentFlag {
		vps.VPSNumUnitsInTick = r.u(32, "vps_num_units_in_tick")
		vps.VPSTimeScale = r.u(32, "vps_time_scale")
		warnTiming(r, "vps", vps.VPSNumUnitsInTick, vps.VPSTimeScale)
		vps.VPSPocProportionalToTimingFlag = r.flag("vps_poc_proportional_to_timing_flag")
		if vps.VPSPocProportionalToTimingFlag {
			vps.VPSNumTicksPocDiffOneMinus1 = r.ue("vps_num_ticks_poc_diff_one_minus1")
		}
		vps.VPSNumHRDParameters = r.ueMax("vps_num_hrd_parameters", vps.VPSNumLayerSetsMinus1+1)
		for i := 0; i < vps.VPSNumHRDParameters && r.err() == nil; i++ {
			vps.HRDLayerSetIdx = append(vps.HRDLayerSetIdx, r.ueMax("hrd_layer_set_idx", vps.VPSNumLayerSetsMinus1))
			cprms := true
			if i > 0 {
				cprms = r.flag("cprms_present_flag")
			}
			vps.CprmsPresentFlag = append(vps.CprmsPresentFlag, cprms)
			vps.HRDParameters = append(vps.HRDParameters,
				parseHRDParameters(r, cprms, vps.VPSMaxSubLayersMinus1))
		}
	}

	// vps_extension() describes layers beyond the base one, which we don't decode.
	vps.VPSExtensionFlag = r.flag("vps_extension_flag")

	if r.err() != nil {
		return nil
	}
	return vps
}
