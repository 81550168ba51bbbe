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

// Package bitstream implements MSB-first bit reading and writing for
// video elementary streams.
//
// A Reader created with NewNALReader transparently skips H.26x emulation
// prevention bytes (a 0x03 following two 0x00 bytes) and counts them, so
// callers can compute bit-exact header sizes relative to the escaped
// payload. A Reader created with NewReader reads the bytes verbatim, as
// needed for VP9.
package bitstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMoreData is returned when a read runs past the end of the data.
	ErrNoMoreData = errors.New("bitstream: out of data")
	// ErrInvalidExpGolomb is returned for Exp-Golomb codes longer than 32 bits.
	ErrInvalidExpGolomb = errors.New("bitstream: invalid Exp-Golomb code")
)

// Reader reads bits MSB-first from a byte slice.
type Reader struct {
	data     []byte
	off      int    // offset of the next byte to load
	cur      uint32 // current byte
	curBits  int    // bits still unread in cur
	prev     uint32 // last two loaded bytes, for emulation prevention
	skipEPB  bool
	epbCount int
}

// NewReader returns a Reader which reads the given data verbatim.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, prev: 0xffff}
}

// NewNALReader returns a Reader which skips emulation prevention bytes.
func NewNALReader(data []byte) *Reader {
	return &Reader{data: data, prev: 0xffff, skipEPB: true}
}

func (r *Reader) load() bool {
	if r.off >= len(r.data) {
		return false
	}

	if r.skipEPB && r.data[r.off] == 0x03 && r.prev == 0 {
		r.off++
		r.epbCount++
		r.prev = 0xffff
		if r.off >= len(r.data) {
			return false
		}
	}

	r.cur = uint32(r.data[r.off])
	r.off++
	r.curBits = 8
	r.prev = ((r.prev << 8) | r.cur) & 0xffff

	return true
}

// ReadBits reads n (at most 32) bits as an unsigned value.
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("bitstream: invalid bit count %d", n)
	}

	var v uint64
	for n > 0 {
		if r.curBits == 0 && !r.load() {
			return 0, ErrNoMoreData
		}
		take := n
		if take > r.curBits {
			take = r.curBits
		}
		bits := (r.cur >> uint(r.curBits-take)) & ((1 << uint(take)) - 1)
		v = (v << uint(take)) | uint64(bits)
		r.curBits -= take
		n -= take
	}

	return uint32(v), nil
}

// ReadFlag reads a single bit as a boolean.
func (r *Reader) ReadFlag() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadBool is an alias for ReadFlag.
func (r *Reader) ReadBool() (bool, error) {
	return r.ReadFlag()
}

// ReadSigned reads an n-bit magnitude followed by a sign bit, as used by VP9.
func (r *Reader) ReadSigned(n int) (int32, error) {
	v, err := r.ReadBits(n)
	if err != nil {
		return 0, err
	}
	neg, err := r.ReadFlag()
	if err != nil {
		return 0, err
	}
	if neg {
		return -int32(v), nil
	}
	return int32(v), nil
}

// SkipBits skips n bits.
func (r *Reader) SkipBits(n int) error {
	for n > 32 {
		if _, err := r.ReadBits(32); err != nil {
			return err
		}
		n -= 32
	}
	_, err := r.ReadBits(n)
	return err
}

// ReadUE reads an unsigned Exp-Golomb coded value, ue(v).
func (r *Reader) ReadUE() (uint32, error) {
	zeros := 0
	for {
		bit, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		zeros++
		if zeros > 31 {
			return 0, ErrInvalidExpGolomb
		}
	}

	if zeros == 0 {
		return 0, nil
	}

	rest, err := r.ReadBits(zeros)
	if err != nil {
		return 0, err
	}

	return (1<<uint(zeros) - 1) + rest, nil
}

// ReadSE reads a signed Exp-Golomb coded value, se(v).
func (r *Reader) ReadSE() (int32, error) {
	v, err := r.ReadUE()
	if err != nil {
		return 0, err
	}
	if v&1 != 0 {
		return int32((int64(v) + 1) / 2), nil
	}
	return int32(-(int64(v) / 2)), nil
}

// BitsLeft returns the number of unread bits, including any emulation
// prevention bytes not reached yet.
func (r *Reader) BitsLeft() int {
	return r.curBits + (len(r.data)-r.off)*8
}

// BitsRead returns the number of bits consumed so far, including skipped
// emulation prevention bytes.
func (r *Reader) BitsRead() int {
	return len(r.data)*8 - r.BitsLeft()
}

// EmulationPreventionBytes returns the number of skipped emulation prevention bytes.
func (r *Reader) EmulationPreventionBytes() int {
	return r.epbCount
}

// ByteAligned returns true if the next read starts at a byte boundary.
func (r *Reader) ByteAligned() bool {
	return r.curBits == 0 || r.curBits == 8
}

// ByteAlign skips the remaining bits of the current byte.
func (r *Reader) ByteAlign() error {
	return r.SkipBits(r.BitsLeft() % 8)
}

// MoreRBSPData returns true if there is payload left before the RBSP
// stop bit and its trailing zero padding.
func (r *Reader) MoreRBSPData() bool {
	c := *r
	if c.curBits == 0 && !c.load() {
		return false
	}

	if c.cur&((1<<uint(c.curBits-1))-1) != 0 {
		return true
	}

	// tolerate trailing zero bytes after the stop bit
	for c.load() {
		if c.cur != 0 {
			return true
		}
	}

	return false
}
