/*
Copyright © 2017 the CloudMask authors.
This file is part of CloudMask.

CloudMask is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CloudMask is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CloudMask.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloudmaskutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/cloudmask"
	"github.com/spf13/cast"
)

// GetStringMapString returns a map[string]string from a viper
// configuration, accounting for the fact that it might be a native
// map or a JSON-encoded string.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string), nil
	case map[string]interface{}:
		return cast.ToStringMapString(i), nil
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("cloudmask: decoding %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("cloudmask: invalid type for variable %s: %#v", varName, i)
	}
}

// pass1Thresholds returns the first-pass classification constants,
// applying any overrides set in the Cloud.Pass1 configuration map.
// Keys match the Pass1Thresholds field names.
func pass1Thresholds(cfg *viper.Viper) (cloudmask.Pass1Thresholds, error) {
	t := cloudmask.DefaultPass1Thresholds()
	overrides, err := GetStringMapString("Cloud.Pass1", cfg)
	if err != nil {
		return t, err
	}
	fields := map[string]*float64{
		"SWIR2Min":      &t.SWIR2Min,
		"BTMax":         &t.BTMax,
		"NDSIMax":       &t.NDSIMax,
		"NDVIMax":       &t.NDVIMax,
		"WhitenessMax":  &t.WhitenessMax,
		"HOTRedCoeff":   &t.HOTRedCoeff,
		"HOTOffset":     &t.HOTOffset,
		"RatioMin":      &t.RatioMin,
		"WaterNDVIThin": &t.WaterNDVIThin,
		"WaterNIRThin":  &t.WaterNIRThin,
		"WaterNDVIThck": &t.WaterNDVIThck,
		"WaterNIRThck":  &t.WaterNIRThck,
		"SnowNDSIMin":   &t.SnowNDSIMin,
		"SnowBTMax":     &t.SnowBTMax,
		"SnowNIRMin":    &t.SnowNIRMin,
		"SnowGreenMin":  &t.SnowGreenMin,
	}
	for name, val := range overrides {
		p, ok := fields[name]
		if !ok {
			return t, fmt.Errorf("cloudmask: unknown Cloud.Pass1 threshold %q", name)
		}
		v, err := cast.ToFloat64E(val)
		if err != nil {
			return t, fmt.Errorf("cloudmask: reading Cloud.Pass1 threshold %q: %v", name, err)
		}
		*p = v
	}
	return t, nil
}
