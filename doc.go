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

// Package sproc models chemical process plants as networks of unit
// models. A Unit maps an input vector to an output vector at steady
// state and gives the time derivative of its state vector for dynamic
// studies. Units are connected by material streams into a Graph whose
// recycle loops are resolved by bounded fixed-point iteration. A Plant
// ties a graph together with free operating variables so that the
// plant can be resolved, optimized for a production target, or used to
// simulate the dynamics of one of its units.
package sproc

// Version gives the version number.
const Version = "1.0.0"
