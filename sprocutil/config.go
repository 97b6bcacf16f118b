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

package sprocutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// checkOutputFile expands any environment variables in the output file
// path and makes sure that its directory exists and that it is a
// spreadsheet. An empty path means no output file.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", nil
	}
	f = os.ExpandEnv(f)
	if ext := strings.ToLower(filepath.Ext(f)); ext != ".xlsx" {
		return f, fmt.Errorf("sprocutil: OutputFile must have extension .xlsx, not '%s'", ext)
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("sprocutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified. If neither a log file nor an output file is given, no log
// file is written.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" && outputFile != "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// newLogger returns a logger that writes to w and, if logFile is not
// empty, to logFile. The returned function closes the log file.
func newLogger(w io.Writer, logFile string, level string) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("sprocutil: %v", err)
	}
	log.SetLevel(lvl)
	if logFile == "" {
		log.Out = w
		return log, func() error { return nil }, nil
	}
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("sprocutil: problem creating log file: %v", err)
	}
	log.Out = io.MultiWriter(w, f)
	return log, f.Close, nil
}

// parseFloats converts command-line values to numbers.
func parseFloats(s []string) ([]float64, error) {
	o := make([]float64, 0, len(s))
	for _, v := range s {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := cast.ToFloat64E(part)
			if err != nil {
				return nil, fmt.Errorf("sprocutil: %v", err)
			}
			o = append(o, f)
		}
	}
	return o, nil
}
