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

// Command sproc resolves, optimizes and simulates chemical process
// plants described in flowsheet files.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/sproc/sprocutil"
)

func main() {
	if err := sprocutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
