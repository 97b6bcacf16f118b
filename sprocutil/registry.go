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
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/units/batchtransfer"
	"github.com/spatialmodel/sproc/units/feed"
	"github.com/spatialmodel/sproc/units/heater"
	"github.com/spatialmodel/sproc/units/mixer"
	"github.com/spatialmodel/sproc/units/pump"
	"github.com/spatialmodel/sproc/units/splitter"
	"github.com/spatialmodel/sproc/units/tank"
)

// Factory creates a unit from loosely typed parameters, such as those
// read from a flowsheet file. Parameters are keyed by their `param`
// name; missing parameters keep their default values.
type Factory func(params map[string]interface{}) (sproc.Unit, error)

var registry = map[string]Factory{
	batchtransfer.Type: factory(batchtransfer.Type, batchtransfer.DefaultConfig, batchtransfer.New),
	feed.Type:          factory(feed.Type, feed.DefaultConfig, feed.New),
	heater.Type:        factory(heater.Type, heater.DefaultConfig, heater.New),
	mixer.Type:         factory(mixer.Type, mixer.DefaultConfig, mixer.New),
	pump.Type:          factory(pump.Type, pump.DefaultConfig, pump.New),
	splitter.Type:      factory(splitter.Type, splitter.DefaultConfig, splitter.New),
	tank.Type:          factory(tank.Type, tank.DefaultConfig, tank.New),
}

func factory[C any, U sproc.Unit](typ string, def func() C, mk func(C) (U, error)) Factory {
	return func(params map[string]interface{}) (sproc.Unit, error) {
		cfg := def()
		if err := setParams(typ, &cfg, params); err != nil {
			return nil, err
		}
		u, err := mk(cfg)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}

// Types returns the registered unit types in sorted order.
func Types() []string {
	t := make([]string, 0, len(registry))
	for k := range registry {
		t = append(t, k)
	}
	sort.Strings(t)
	return t
}

// NewUnit creates a unit of the given type.
func NewUnit(typ string, params map[string]interface{}) (sproc.Unit, error) {
	f, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("sprocutil: unknown unit type %q; valid types are %s",
			typ, strings.Join(Types(), ", "))
	}
	return f(params)
}

// setParams sets the fields of the configuration struct pointed to by
// cfg from params, matching keys against the `param` field tags.
// Numbers given as strings are converted, and unknown keys are an
// error.
func setParams(typ string, cfg interface{}, params map[string]interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "param",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := d.Decode(params); err != nil {
		return fmt.Errorf("sprocutil: %s parameters: %v", typ, err)
	}
	return nil
}
