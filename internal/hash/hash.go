/*
Copyright © 2025 the sproc authors.
This file is part of sproc.

sproc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sproc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sproc.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash creates stable keys for caching evaluations.
package hash

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hash key for the specified object. Map keys are
// sorted, so equal objects get equal keys across runs.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	return sum(h.Sum([]byte{}), h.Size())
}

// Floats returns a key for a point in parameter space. Points whose
// elements have identical bit patterns get identical keys; in particular
// 0 and -0 differ, and every NaN payload hashes separately.
func Floats(x []float64) string {
	h := fnv.New128a()
	b := make([]byte, 8)
	for _, v := range x {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		h.Write(b)
	}
	return sum(h.Sum([]byte{}), h.Size())
}

func sum(b []byte, size int) string {
	return fmt.Sprintf("%x", b[0:size])
}
