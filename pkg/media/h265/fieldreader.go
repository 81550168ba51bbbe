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
	"github.com/pkg/errors"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/media/bitstream"
)

// fieldReader reads syntax elements, latching the first error. Once an
// error is latched every further read returns zero, so parsing code can
// check err() at convenient points instead of after every element.
type fieldReader struct {
	br   *bitstream.Reader
	what string
	e    error
}

func newFieldReader(br *bitstream.Reader, what string) *fieldReader {
	return &fieldReader{br: br, what: what}
}

func (r *fieldReader) err() error {
	return r.e
}

func (r *fieldReader) fail(err error) {
	if r.e == nil {
		r.e = err
	}
}

// u reads an n-bit unsigned syntax element.
func (r *fieldReader) u(n int, name string) uint32 {
	if r.e != nil {
		return 0
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		r.fail(errors.Wrapf(err, "%s: %s", r.what, name))
		return 0
	}
	return v
}

// flag reads a single-bit syntax element.
func (r *fieldReader) flag(name string) bool {
	return r.u(1, name) == 1
}

// skip skips n bits.
func (r *fieldReader) skip(n int, name string) {
	if r.e != nil {
		return
	}
	if err := r.br.SkipBits(n); err != nil {
		r.fail(errors.Wrapf(err, "%s: %s", r.what, name))
	}
}

// ue reads an unsigned Exp-Golomb syntax element.
func (r *fieldReader) ue(name string) uint32 {
	if r.e != nil {
		return 0
	}
	v, err := r.br.ReadUE()
	if err != nil {
		r.fail(errors.Wrapf(err, "%s: %s", r.what, name))
		return 0
	}
	return v
}

// se reads a signed Exp-Golomb syntax element.
func (r *fieldReader) se(name string) int32 {
	if r.e != nil {
		return 0
	}
	v, err := r.br.ReadSE()
	if err != nil {
		r.fail(errors.Wrapf(err, "%s: %s", r.what, name))
		return 0
	}
	return v
}

// ueMax reads an unsigned Exp-Golomb element which must not exceed max.
func (r *fieldReader) ueMax(name string, max int) int {
	return r.ueBounded(name, 0, max)
}

// ueBounded reads an unsigned Exp-Golomb element which must be in [min, max].
func (r *fieldReader) ueBounded(name string, min, max int) int {
	v := r.ue(name)
	if r.e != nil {
		return 0
	}
	if int64(v) < int64(min) || int64(v) > int64(max) {
		r.fail(errors.Errorf("%s: %s %d out of range [%d, %d]", r.what, name, v, min, max))
		return 0
	}
	return int(v)
}

// seBounded reads a signed Exp-Golomb element which must be in [min, max].
func (r *fieldReader) seBounded(name string, min, max int) int {
	v := r.se(name)
	if r.e != nil {
		return 0
	}
	if int(v) < min || int(v) > max {
		r.fail(errors.Errorf("%s: %s %d out of range [%d, %d]", r.what, name, v, min, max))
		return 0
	}
	return int(v)
}

// check latches an error if the given condition does not hold.
func (r *fieldReader) check(ok bool, format string, args ...interface{}) {
	if r.e == nil && !ok {
		r.fail(errors.Errorf(r.what+": "+format, args...))
	}
}
