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

package vp9

import (
	"github.com/pkg/errors"
)

const (
	superframeMarkerMask = 0xe0
	superframeMarker     = 0xc0
	// MaxFramesInSuperframe is the largest number of frames a superframe
	// index can describe.
	MaxFramesInSuperframe = 8
)

// FrameInfo locates a single frame within a chunk of data.
type FrameInfo struct {
	Offset int
	Size   int
}

// ParseSuperframe splits a chunk of data into the frames it contains. Data
// without a valid superframe index is a single frame. The superframe index
// itself is not part of any frame.
func ParseSuperframe(data []byte) ([]FrameInfo, error) {
	if len(data) == 0 {
		return nil, errors.New("vp9: empty chunk")
	}

	marker := data[len(data)-1]
	if marker&superframeMarkerMask != superframeMarker {
		return []FrameInfo{{Offset: 0, Size: len(data)}}, nil
	}

	var (
		numFrames    = int(marker&0x07) + 1
		bytesPerSize = int((marker>>3)&0x03) + 1
		indexSize    = 2 + bytesPerSize*numFrames
	)

	if len(data) < indexSize || data[len(data)-indexSize] != marker {
		log.Debug("superframe marker 0x%02x without a matching index, treating as a single frame", marker)
		return []FrameInfo{{Offset: 0, Size: len(data)}}, nil
	}

	var (
		frames = make([]FrameInfo, 0, numFrames)
		index  = data[len(data)-indexSize+1:]
		offset = 0
		limit  = len(data) - indexSize
	)

	for i := 0; i < numFrames; i++ {
		size := 0
		for j := 0; j < bytesPerSize; j++ {
			size |= int(index[i*bytesPerSize+j]) << (8 * j)
		}
		if size == 0 {
			return nil, errors.Errorf("vp9: superframe frame %d has zero size", i)
		}
		if offset+size > limit {
			return nil, errors.Errorf("vp9: superframe frame %d (%d bytes at offset %d) exceeds chunk of %d bytes",
				i, size, offset, limit)
		}
		frames = append(frames, FrameInfo{Offset: offset, Size: size})
		offset += size
	}

	return frames, nil
}
