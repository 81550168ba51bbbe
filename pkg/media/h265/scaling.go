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
	scalingListSizeIDs   = 4
	scalingListMatrices  = 6
	scalingListDCDefault = 16
)

// ScalingListData holds the scaling matrices of an SPS or PPS, with every
// list stored in up-right diagonal scan order.
type ScalingListData struct {
	ScalingList4x4   [scalingListMatrices][16]uint8
	ScalingList8x8   [scalingListMatrices][64]uint8
	ScalingList16x16 [scalingListMatrices][64]uint8
	ScalingList32x32 [scalingListMatrices][64]uint8
	// DC coefficients for the 16x16 and 32x32 matrices.
	ScalingListDCCoef16x16 [scalingListMatrices]uint8
	ScalingListDCCoef32x32 [scalingListMatrices]uint8
}

// Default 8x8 (and larger) scaling lists, Table 7-6, in diagonal scan order.
var (
	defaultScalingListIntra = [64]uint8{
		16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 17, 16, 17, 16, 17, 18,
		17, 18, 18, 17, 18, 21, 19, 20, 21, 20, 19, 21, 24, 22, 22, 24,
		24, 22, 22, 24, 25, 25, 27, 30, 27, 25, 25, 29, 31, 35, 35, 31,
		29, 36, 41, 44, 41, 36, 47, 54, 54, 47, 65, 70, 65, 88, 88, 115,
	}
	defaultScalingListInter = [64]uint8{
		16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 17, 17, 17, 17, 17, 18,
		18, 18, 18, 18, 18, 20, 20, 20, 20, 20, 20, 20, 24, 24, 24, 24,
		24, 24, 24, 24, 25, 25, 25, 25, 25, 25, 25, 28, 28, 28, 28, 28,
		28, 33, 33, 33, 33, 33, 41, 41, 41, 41, 54, 54, 54, 71, 71, 91,
	}
)

func defaultList(matrixID int) [64]uint8 {
	if matrixID < 3 {
		return defaultScalingListIntra
	}
	return defaultScalingListInter
}

// list returns the coefficients of the given matrix.
func (s *ScalingListData) list(sizeID, matrixID int) []uint8 {
	switch sizeID {
	case 0:
		return s.ScalingList4x4[matrixID][:]
	case 1:
		return s.ScalingList8x8[matrixID][:]
	case 2:
		return s.ScalingList16x16[matrixID][:]
	}
	return s.ScalingList32x32[matrixID][:]
}

func (s *ScalingListData) setDC(sizeID, matrixID int, dc uint8) {
	switch sizeID {
	case 2:
		s.ScalingListDCCoef16x16[matrixID] = dc
	case 3:
		s.ScalingListDCCoef32x32[matrixID] = dc
	}
}

func (s *ScalingListData) dc(sizeID, matrixID int) uint8 {
	switch sizeID {
	case 2:
		return s.ScalingListDCCoef16x16[matrixID]
	case 3:
		return s.ScalingListDCCoef32x32[matrixID]
	}
	return scalingListDCDefault
}

// fillDefault fills the given matrix with its default coefficients.
func (s *ScalingListData) fillDefault(sizeID, matrixID int) {
	l := s.list(sizeID, matrixID)
	if sizeID == 0 {
		for i := range l {
			l[i] = scalingListDCDefault
		}
		return
	}
	def := defaultList(matrixID)
	copy(l, def[:])
	s.setDC(sizeID, matrixID, scalingListDCDefault)
}

// DefaultScalingListData returns scaling lists with every matrix set to
// its default, as inferred when scaling_list_enabled_flag is set but no
// scaling list data is present.
func DefaultScalingListData() ScalingListData {
	var s ScalingListData
	for sizeID := 0; sizeID < scalingListSizeIDs; sizeID++ {
		for matrixID := 0; matrixID < scalingListMatrices; matrixID++ {
			s.fillDefault(sizeID, matrixID)
		}
	}
	return s
}

// FlatScalingListData returns scaling lists with every coefficient set to
// 16, as used when scaling lists are disabled.
func FlatScalingListData() ScalingListData {
	var s ScalingListData
	for sizeID := 0; sizeID < scalingListSizeIDs; sizeID++ {
		for matrixID := 0; matrixID < scalingListMatrices; matrixID++ {
			l := s.list(sizeID, matrixID)
			for i := range l {
				l[i] = scalingListDCDefault
			}
			s.setDC(sizeID, matrixID, scalingListDCDefault)
		}
	}
	return s
}

// parseScalingListData parses scaling_list_data(), 7.3.4.
func parseScalingListData(r *fieldReader, s *ScalingListData) {
	for sizeID := 0; sizeID < scalingListSizeIDs; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < scalingListMatrices; matrixID += step {
			if r.err() != nil {
				return
			}

			if !r.flag("scaling_list_pred_mode_flag") {
				delta := r.ueMax("scaling_list_pred_matrix_id_delta", matrixID/step)
				if r.err() != nil {
					return
				}
				if delta == 0 {
					s.fillDefault(sizeID, matrixID)
				} else {
					refMatrixID := matrixID - delta*step
					copy(s.list(sizeID, matrixID), s.list(sizeID, refMatrixID))
					s.setDC(sizeID, matrixID, s.dc(sizeID, refMatrixID))
				}
				continue
			}

			nextCoef := 8
			coefNum := 1 << (4 + (sizeID << 1))
			if coefNum > 64 {
				coefNum = 64
			}
			if sizeID > 1 {
				dcMinus8 := r.seBounded("scaling_list_dc_coef_minus8", -7, 247)
				nextCoef = dcMinus8 + 8
				s.setDC(sizeID, matrixID, uint8(nextCoef))
			}
			l := s.list(sizeID, matrixID)
			for i := 0; i < coefNum; i++ {
				delta := r.seBounded("scaling_list_delta_coef", -128, 127)
				nextCoef = (nextCoef + delta + 256) % 256
				l[i] = uint8(nextCoef)
			}
		}
	}

	// 32x32 chroma matrices are not coded, they follow the 16x16 ones (7.4.5)
	for matrixID := 1; matrixID < scalingListMatrices; matrixID++ {
		if matrixID == 3 {
			continue
		}
		s.ScalingList32x32[matrixID] = s.ScalingList16x16[matrixID]
		s.ScalingListDCCoef32x32[matrixID] = s.ScalingListDCCoef16x16[matrixID]
	}
}
