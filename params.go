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

package sproc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all unit configurations.
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their parameter name rather than the Go field name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("param"); name != "" {
			return name
		}
		return f.Name
	})
}

// ValidateConfig checks the `validate` struct tags of the unit
// configuration cfg, returning a *ParameterRangeError for the first
// parameter that is out of range. unitType is used in the error message.
func ValidateConfig(unitType string, cfg interface{}) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		c := fe.Tag()
		if fe.Param() != "" {
			c += "=" + fe.Param()
		}
		return &ParameterRangeError{
			Unit:       unitType,
			Parameter:  fe.Field(),
			Value:      fe.Value(),
			Constraint: c,
		}
	}
	return fmt.Errorf("sproc: %s: %v", unitType, err)
}
