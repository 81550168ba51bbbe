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

package bitstream

// Writer writes bits MSB-first into a growing byte slice.
type Writer struct {
	data   []byte
	bitPos int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// PutBits writes the n (at most 32) least significant bits of v.
func (w *Writer) PutBits(n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		w.putBit((v>>uint(i))&1 == 1)
	}
}

// PutFlag writes a single bit.
func (w *Writer) PutFlag(v bool) {
	w.putBit(v)
}

// PutUE writes v as an unsigned Exp-Golomb code.
func (w *Writer) PutUE(v uint32) {
	x := uint64(v) + 1
	n := 0
	for t := x; t > 1; t >>= 1 {
		n++
	}
	w.PutBits(n, 0)
	for i := n; i >= 0; i-- {
		w.putBit((x>>uint(i))&1 == 1)
	}
}

// PutSE writes v as a signed Exp-Golomb code.
func (w *Writer) PutSE(v int32) {
	if v > 0 {
		w.PutUE(uint32(2*int64(v) - 1))
	} else {
		w.PutUE(uint32(-2 * int64(v)))
	}
}

// PutSigned writes an n-bit magnitude followed by a sign bit.
func (w *Writer) PutSigned(n int, v int32) {
	if v < 0 {
		w.PutBits(n, uint32(-v))
		w.PutFlag(true)
	} else {
		w.PutBits(n, uint32(v))
		w.PutFlag(false)
	}
}

// PutTrailingBits writes an RBSP stop bit and pads to a byte boundary.
func (w *Writer) PutTrailingBits() {
	w.putBit(true)
	w.PadToByte()
}

// PadToByte pads with zero bits up to the next byte boundary.
func (w *Writer) PadToByte() {
	for w.bitPos%8 != 0 {
		w.putBit(false)
	}
}

// BitLen returns the number of bits written so far.
func (w *Writer) BitLen() int {
	return w.bitPos
}

// Bytes returns the written data, zero-padded to a full byte.
func (w *Writer) Bytes() []byte {
	return w.data
}

func (w *Writer) putBit(v bool) {
	if w.bitPos%8 == 0 {
		w.data = append(w.data, 0)
	}
	if v {
		w.data[w.bitPos/8] |= 1 << uint(7-w.bitPos%8)
	}
	w.bitPos++
}

// EscapeRBSP inserts emulation prevention bytes into an RBSP, producing
// the payload of a NAL unit.
func EscapeRBSP(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/64+1)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
