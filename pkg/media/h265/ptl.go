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
)

// Level is a general_level_idc value, 30 times the level number.
type Level uint8

// Levels from Table A.8.
const (
	Level1   Level = 30
	Level2   Level = 60
	Level21  Level = 63
	Level3   Level = 90
	Level31  Level = 93
	Level4   Level = 120
	Level41  Level = 123
	Level5   Level = 150
	Level51  Level = 153
	Level52  Level = 156
	Level6   Level = 180
	Level61  Level = 183
	Level62  Level = 186
	Level62p Level = 255 // 8.5 in later editions, used for unconstrained streams
)

func (l Level) String() string {
	return fmt.Sprintf("L%d.%d", l/30, (l%30)/3)
}

// MaxLumaPs returns the maximum luma picture size for the level, Table A.8.
func (l Level) MaxLumaPs() int {
	switch {
	case l <= Level1:
		return 36864
	case l <= Level2:
		return 122880
	case l <= Level21:
		return 245760
	case l <= Level3:
		return 552960
	case l <= Level31:
		return 983040
	case l <= Level41:
		return 2228224
	case l <= Level52:
		return 8912896
	}
	return 35651584
}

// Profile identifies an HEVC profile, general_profile_idc.
type Profile uint8

// Profiles from Annex A.
const (
	ProfileMain              Profile = 1
	ProfileMain10            Profile = 2
	ProfileMainStillPicture  Profile = 3
	ProfileRangeExtensions   Profile = 4
	ProfileHighThroughput    Profile = 5
	ProfileMultiviewMain     Profile = 6
	ProfileScalableMain      Profile = 7
	Profile3DMain            Profile = 8
	ProfileScreenExtended    Profile = 9
	ProfileScalableRangeExt  Profile = 10
	ProfileHighThroughputSCC Profile = 11
)

// ProfileTierLevel is the profile_tier_level() syntax structure.
type ProfileTierLevel struct {
	GeneralProfileSpace                 uint8
	GeneralTierFlag                     bool
	GeneralProfileIDC                   Profile
	GeneralProfileCompatibilityFlags    uint32
	GeneralProgressiveSourceFlag        bool
	GeneralInterlacedSourceFlag         bool
	GeneralNonPackedConstraintFlag      bool
	GeneralFrameOnlyConstraintFlag      bool
	GeneralMax12BitConstraintFlag       bool
	GeneralMax10BitConstraintFlag       bool
	GeneralMax8BitConstraintFlag        bool
	GeneralMax422ChromaConstraintFlag   bool
	GeneralMax420ChromaConstraintFlag   bool
	GeneralMaxMonochromeConstraintFlag  bool
	GeneralIntraConstraintFlag          bool
	GeneralOnePictureOnlyConstraintFlag bool
	GeneralLowerBitRateConstraintFlag   bool
	GeneralLevelIDC                     Level

	SubLayerProfilePresentFlag [maxSubLayers]bool
	SubLayerLevelPresentFlag   [maxSubLayers]bool
	SubLayerProfileIDC         [maxSubLayers]Profile
	SubLayerLevelIDC           [maxSubLayers]Level
}

// CompatibleWith returns true if the profile compatibility flag for p is set.
func (ptl *ProfileTierLevel) CompatibleWith(p Profile) bool {
	if p >= 32 {
		return false
	}
	return ptl.GeneralProfileCompatibilityFlags&(1<<(31-uint(p))) != 0
}

func parseProfileTierLevel(r *fieldReader, profilePresent bool, maxSubLayersMinus1 int) *ProfileTierLevel {
	ptl := &ProfileTierLevel{}

	if profilePresent {
		ptl.GeneralProfileSpace = uint8(r.u(2, "general_profile_space"))
		ptl.GeneralTierFlag = r.flag("general_tier_flag")
		ptl.GeneralProfileIDC = Profile(r.u(5, "general_profile_idc"))
		ptl.GeneralProfileCompatibilityFlags = r.u(32, "general_profile_compatibility_flags")
		ptl.GeneralProgressiveSourceFlag = r.flag("general_progressive_source_flag")
		ptl.GeneralInterlacedSourceFlag = r.flag("general_interlaced_source_flag")
		ptl.GeneralNonPackedConstraintFlag = r.flag("general_non_packed_constraint_flag")
		ptl.GeneralFrameOnlyConstraintFlag = r.flag("general_frame_only_constraint_flag")
		// these are reserved_zero bits for profiles 1-3, read them anyway
		ptl.GeneralMax12BitConstraintFlag = r.flag("general_max_12bit_constraint_flag")
		ptl.GeneralMax10BitConstraintFlag = r.flag("general_max_10bit_constraint_flag")
		ptl.GeneralMax8BitConstraintFlag = r.flag("general_max_8bit_constraint_flag")
		ptl.GeneralMax422ChromaConstraintFlag = r.flag("general_max_422chroma_constraint_flag")
		ptl.GeneralMax420ChromaConstraintFlag = r.flag("general_max_420chroma_constraint_flag")
		ptl.GeneralMaxMonochromeConstraintFlag = r.flag("general_max_monochrome_constraint_flag")
		ptl.GeneralIntraConstraintFlag = r.flag("general_intra_constraint_flag")
		ptl.GeneralOnePictureOnlyConstraintFlag = r.flag("general_one_picture_only_constraint_flag")
		ptl.GeneralLowerBitRateConstraintFlag = r.flag("general_lower_bit_rate_constraint_flag")
		r.skip(34, "general_reserved_zero_34bits")
		r.skip(1, "general_inbld_flag")
	}

	ptl.GeneralLevelIDC = Level(r.u(8, "general_level_idc"))
	if r.err() == nil && ptl.GeneralLevelIDC == 0 {
		log.Warn("general_level_idc is 0, treating it as level 1")
		ptl.GeneralLevelIDC = Level1
	}

	for i := 0; i < maxSubLayersMinus1; i++ {
		ptl.SubLayerProfilePresentFlag[i] = r.flag("sub_layer_profile_present_flag")
		ptl.SubLayerLevelPresentFlag[i] = r.flag("sub_layer_level_present_flag")
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			r.skip(2, "reserved_zero_2bits")
		}
	}

	for i := 0; i < maxSubLayersMinus1; i++ {
		if ptl.SubLayerProfilePresentFlag[i] {
			r.skip(3, "sub_layer_profile_space, sub_layer_tier_flag")
			ptl.SubLayerProfileIDC[i] = Profile(r.u(5, "sub_layer_profile_idc"))
			r.skip(32, "sub_layer_profile_compatibility_flag")
			r.skip(48, "sub_layer_constraint_flags")
		}
		if ptl.SubLayerLevelPresentFlag[i] {
			ptl.SubLayerLevelIDC[i] = Level(r.u(8, "sub_layer_level_idc"))
		}
	}

	return ptl
}
