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
	// maxRefPicSetEntries bounds the pictures of a short-term RPS (MaxDpbSize).
	maxRefPicSetEntries = 16
	// maxShortTermRefPicSets bounds num_short_term_ref_pic_sets.
	maxShortTermRefPicSets = 64
	// maxLongTermRefPics bounds num_long_term_ref_pics_sps and the long-term
	// entries of a slice header.
	maxLongTermRefPics = 32
)

// ShortTermRefPicSet is a decoded st_ref_pic_set(), with the picture order
// count deltas derived whether the set was coded explicitly or predicted.
type ShortTermRefPicSet struct {
	InterRefPicSetPredictionFlag bool
	DeltaIdxMinus1               int
	DeltaRpsSign                 bool
	AbsDeltaRpsMinus1            int

	NumNegativePics int
	NumPositivePics int
	NumDeltaPocs    int

	DeltaPocS0      [maxRefPicSetEntries]int
	UsedByCurrPicS0 [maxRefPicSetEntries]bool
	DeltaPocS1      [maxRefPicSetEntries]int
	UsedByCurrPicS1 [maxRefPicSetEntries]bool
}

// NumUsedByCurrPic returns the number of pictures used by the current picture.
func (rps *ShortTermRefPicSet) NumUsedByCurrPic() int {
	n := 0
	for i := 0; i < rps.NumNegativePics; i++ {
		if rps.UsedByCurrPicS0[i] {
			n++
		}
	}
	for i := 0; i < rps.NumPositivePics; i++ {
		if rps.UsedByCurrPicS1[i] {
			n++
		}
	}
	return n
}

// parseStRefPicSet parses st_ref_pic_set(stRpsIdx), 7.3.7. The sets slice
// holds the previously parsed sets of the SPS, numSets is
// num_short_term_ref_pic_sets; stRpsIdx == numSets denotes a set coded in a
// slice header.
func parseStRefPicSet(r *fieldReader, stRpsIdx, numSets int, sets []ShortTermRefPicSet,
	maxDecPicBufferingMinus1 int) ShortTermRefPicSet {
	var rps ShortTermRefPicSet

	if stRpsIdx != 0 {
		rps.InterRefPicSetPredictionFlag = r.flag("inter_ref_pic_set_prediction_flag")
	}

	if !rps.InterRefPicSetPredictionFlag {
		rps.NumNegativePics = r.ueMax("num_negative_pics", maxDecPicBufferingMinus1)
		rps.NumPositivePics = r.ueMax("num_positive_pics", maxDecPicBufferingMinus1-rps.NumNegativePics)
		if r.err() != nil {
			return rps
		}

		poc := 0
		for i := 0; i < rps.NumNegativePics; i++ {
			poc -= r.ueMax("delta_poc_s0_minus1", 1<<15-1) + 1
			rps.DeltaPocS0[i] = poc
			rps.UsedByCurrPicS0[i] = r.flag("used_by_curr_pic_s0_flag")
		}
		poc = 0
		for i := 0; i < rps.NumPositivePics; i++ {
			poc += r.ueMax("delta_poc_s1_minus1", 1<<15-1) + 1
			rps.DeltaPocS1[i] = poc
			rps.UsedByCurrPicS1[i] = r.flag("used_by_curr_pic_s1_flag")
		}
		rps.NumDeltaPocs = rps.NumNegativePics + rps.NumPositivePics

		return rps
	}

	if stRpsIdx == numSets {
		rps.DeltaIdxMinus1 = r.ueMax("delta_idx_minus1", stRpsIdx-1)
	}
	rps.DeltaRpsSign = r.flag("delta_rps_sign")
	rps.AbsDeltaRpsMinus1 = r.ueMax("abs_delta_rps_minus1", 1<<15-1)
	if r.err() != nil {
		return rps
	}

	refRpsIdx := stRpsIdx - (rps.DeltaIdxMinus1 + 1)
	ref := &sets[refRpsIdx]
	deltaRps := rps.AbsDeltaRpsMinus1 + 1
	if rps.DeltaRpsSign {
		deltaRps = -deltaRps
	}

	var (
		usedByCurrPic [maxRefPicSetEntries + 1]bool
		useDelta      [maxRefPicSetEntries + 1]bool
	)
	for j := 0; j <= ref.NumDeltaPocs; j++ {
		usedByCurrPic[j] = r.flag("used_by_curr_pic_flag")
		useDelta[j] = true
		if !usedByCurrPic[j] {
			useDelta[j] = r.flag("use_delta_flag")
		}
	}
	if r.err() != nil {
		return rps
	}

	// (7-61)
	i := 0
	add0 := func(dPoc int, used bool) {
		if i >= maxRefPicSetEntries {
			r.check(false, "too many negative pictures in predicted short-term RPS")
			return
		}
		rps.DeltaPocS0[i] = dPoc
		rps.UsedByCurrPicS0[i] = used
		i++
	}
	for j := ref.NumPositivePics - 1; j >= 0; j-- {
		dPoc := ref.DeltaPocS1[j] + deltaRps
		if dPoc < 0 && useDelta[ref.NumNegativePics+j] {
			add0(dPoc, usedByCurrPic[ref.NumNegativePics+j])
		}
	}
	if deltaRps < 0 && useDelta[ref.NumDeltaPocs] {
		add0(deltaRps, usedByCurrPic[ref.NumDeltaPocs])
	}
	for j := 0; j < ref.NumNegativePics; j++ {
		dPoc := ref.DeltaPocS0[j] + deltaRps
		if dPoc < 0 && useDelta[j] {
			add0(dPoc, usedByCurrPic[j])
		}
	}
	rps.NumNegativePics = i

	// (7-62)
	i = 0
	add1 := func(dPoc int, used bool) {
		if i >= maxRefPicSetEntries {
			r.check(false, "too many positive pictures in predicted short-term RPS")
			return
		}
		rps.DeltaPocS1[i] = dPoc
		rps.UsedByCurrPicS1[i] = used
		i++
	}
	for j := ref.NumNegativePics - 1; j >= 0; j-- {
		dPoc := ref.DeltaPocS0[j] + deltaRps
		if dPoc > 0 && useDelta[j] {
			add1(dPoc, usedByCurrPic[j])
		}
	}
	if deltaRps > 0 && useDelta[ref.NumDeltaPocs] {
		add1(deltaRps, usedByCurrPic[ref.NumDeltaPocs])
	}
	for j := 0; j < ref.NumPositivePics; j++ {
		dPoc := ref.DeltaPocS1[j] + deltaRps
		if dPoc > 0 && useDelta[ref.NumNegativePics+j] {
			add1(dPoc, usedByCurrPic[ref.NumNegativePics+j])
		}
	}
	rps.NumPositivePics = i
	rps.NumDeltaPocs = rps.NumNegativePics + rps.NumPositivePics

	return rps
}
