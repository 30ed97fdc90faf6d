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

// Package cloudmaskutil holds the configuration and command-line
// interface for the cloudmask model.
package cloudmaskutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/cloudmask"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to cloudmask.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the output mask and diagnostic
              rasters are written to.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "keepIntermediate",
			usage: `
              keepIntermediate specifies whether to also write the
              intermediate rasters of each pipeline pass for diagnostics.`,
			shorthand:  "k",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "ScaleFactor",
			usage: `
              ScaleFactor is the integer scaling of the calibrated input
              rasters: reflectance and brightness temperature values are
              stored multiplied by this factor.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "MinSampleCount",
			usage: `
              MinSampleCount is the smallest clear-sky region sample from
              which a percentile threshold will be derived.`,
			defaultVal: 200,
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "Cloud.Pass1",
			usage: `
              Cloud.Pass1 overrides individual first-pass classification
              thresholds, keyed by threshold name.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "Cloud.ReflectanceFile",
			usage: `
              Cloud.ReflectanceFile is the path to the calibrated
              top-of-atmosphere reflectance raster, with bands ordered
              blue, green, red, NIR, SWIR1, SWIR2.`,
			defaultVal: "refl.nc",
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "Cloud.ThermalFile",
			usage: `
              Cloud.ThermalFile is the path to the brightness temperature
              raster in scaled °C.`,
			defaultVal: "thermal.nc",
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "Cloud.SaturationFile",
			usage: `
              Cloud.SaturationFile is the path to the band saturation
              raster, one band per reflectance and thermal band.`,
			defaultVal: "saturation.nc",
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "Cloud.ValidFile",
			usage: `
              Cloud.ValidFile is the path to the single-band raster with 1
              marking observed pixels. It is optional for the cloud
              command and required for the shadow command.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cloudCmd.PersistentFlags()},
		},
		{
			name: "Terrain.DEMFile",
			usage: `
              Terrain.DEMFile is the path to the digital elevation model
              raster.`,
			defaultVal: "dem.nc",
			flagsets:   []*pflag.FlagSet{terrainCmd.PersistentFlags()},
		},
		{
			name: "Terrain.ElevationBand",
			usage: `
              Terrain.ElevationBand is the band of the DEM raster holding
              elevation.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{terrainCmd.PersistentFlags()},
		},
		{
			name: "Terrain.SunZenith",
			usage: `
              Terrain.SunZenith is the solar zenith angle in degrees.`,
			defaultVal: 45.0,
			flagsets:   []*pflag.FlagSet{terrainCmd.PersistentFlags()},
		},
		{
			name: "Terrain.SunAzimuth",
			usage: `
              Terrain.SunAzimuth is the solar azimuth angle in degrees
              clockwise from north.`,
			defaultVal: 315.0,
			flagsets:   []*pflag.FlagSet{terrainCmd.PersistentFlags()},
		},
		{
			name: "Terrain.ViewZenith",
			usage: `
              Terrain.ViewZenith is the sensor view zenith angle in
              degrees.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{anglesCmd.Flags()},
		},
		{
			name: "Terrain.ViewAzimuth",
			usage: `
              Terrain.ViewAzimuth is the sensor view azimuth angle in
              degrees clockwise from north.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{anglesCmd.Flags()},
		},
		{
			name: "Terrain.MaxElevation",
			usage: `
              Terrain.MaxElevation is the highest elevation in the scene,
              used to terminate shadow rays.`,
			defaultVal: 9000.0,
			flagsets:   []*pflag.FlagSet{castshadowCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CLOUDMASK")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(cloudCmd)
	cloudCmd.AddCommand(shadowCmd)
	Root.AddCommand(terrainCmd)
	terrainCmd.AddCommand(slopeCmd)
	terrainCmd.AddCommand(aspectCmd)
	terrainCmd.AddCommand(hillshadeCmd)
	terrainCmd.AddCommand(anglesCmd)
	terrainCmd.AddCommand(castshadowCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cloudmask: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cloudmask",
	Short: "Cloud, shadow, and terrain masking for satellite imagery.",
	Long: `cloudmask detects clouds and cloud shadows in calibrated
multispectral satellite imagery and computes terrain illumination
geometry from digital elevation models.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CLOUDMASK_var' where 'var'
is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of cloudmask.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cloudmask v%s\n", cloudmask.Version)
	},
	DisableAutoGenTag: true,
}

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Detect clouds.",
	Long: `cloud runs the multi-pass cloud detection pipeline on the
reflectance, thermal, and saturation rasters named in the configuration
and writes the resulting cloud mask to OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		return Cloud(
			os.ExpandEnv(Cfg.GetString("Cloud.ReflectanceFile")),
			os.ExpandEnv(Cfg.GetString("Cloud.ThermalFile")),
			os.ExpandEnv(Cfg.GetString("Cloud.SaturationFile")),
			os.ExpandEnv(Cfg.GetString("Cloud.ValidFile")),
			os.ExpandEnv(Cfg.GetString("OutputDir")),
			cfg)
	},
	DisableAutoGenTag: true,
}

var shadowCmd = &cobra.Command{
	Use:   "shadow",
	Short: "Detect clouds and cloud shadows.",
	Long: `shadow runs the cloud detection pipeline followed by the
cloud-shadow candidate pipeline, writing both masks to OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		return Shadow(
			os.ExpandEnv(Cfg.GetString("Cloud.ReflectanceFile")),
			os.ExpandEnv(Cfg.GetString("Cloud.ThermalFile")),
			os.ExpandEnv(Cfg.GetString("Cloud.SaturationFile")),
			os.ExpandEnv(Cfg.GetString("Cloud.ValidFile")),
			os.ExpandEnv(Cfg.GetString("OutputDir")),
			cfg)
	},
	DisableAutoGenTag: true,
}

var terrainCmd = &cobra.Command{
	Use:   "terrain",
	Short: "Compute terrain geometry products.",
	Long: `terrain computes surface geometry products from the digital
elevation model named in the configuration. Use the subcommands
specified below to choose a product.`,
	DisableAutoGenTag: true,
}

var slopeCmd = &cobra.Command{
	Use:   "slope",
	Short: "Compute terrain slope.",
	Long:  `slope computes the slope of every cell of the DEM in degrees.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return TerrainProduct("slope", terrainOpts())
	},
	DisableAutoGenTag: true,
}

var aspectCmd = &cobra.Command{
	Use:   "aspect",
	Short: "Compute terrain aspect.",
	Long: `aspect computes the downslope direction of every cell of the
DEM in degrees clockwise from north, with a companion band marking the
flat cells where no direction is defined.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return TerrainProduct("aspect", terrainOpts())
	},
	DisableAutoGenTag: true,
}

var hillshadeCmd = &cobra.Command{
	Use:   "hillshade",
	Short: "Compute shaded relief.",
	Long: `hillshade computes the shaded-relief brightness of every cell
of the DEM for the configured sun position, on a scale of 1 to 255.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return TerrainProduct("hillshade", terrainOpts())
	},
	DisableAutoGenTag: true,
}

var anglesCmd = &cobra.Command{
	Use:   "angles",
	Short: "Compute illumination angles.",
	Long: `angles computes the solar incidence and sensor exitance angles
of every cell of the DEM in degrees, for use in topographic correction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return TerrainProduct("angles", terrainOpts())
	},
	DisableAutoGenTag: true,
}

var castshadowCmd = &cobra.Command{
	Use:   "castshadow",
	Short: "Compute terrain cast shadows.",
	Long: `castshadow traces a ray from every cell of the DEM toward the
configured sun position and masks the cells occluded by surrounding
terrain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return TerrainProduct("castshadow", terrainOpts())
	},
	DisableAutoGenTag: true,
}

func pipelineConfig() (cloudmask.Config, error) {
	p1, err := pass1Thresholds(Cfg)
	if err != nil {
		return cloudmask.Config{}, err
	}
	return cloudmask.Config{
		ScaleFactor:      Cfg.GetFloat64("ScaleFactor"),
		MinSampleCount:   Cfg.GetInt("MinSampleCount"),
		Pass1:            p1,
		KeepIntermediate: Cfg.GetBool("keepIntermediate"),
	}, nil
}

// TerrainOptions collects the terrain command configuration.
type TerrainOptions struct {
	DEMFile       string
	ElevationBand int
	OutputDir     string

	SunZenith, SunAzimuth   float64
	ViewZenith, ViewAzimuth float64
	MaxElevation            float64
}

func terrainOpts() TerrainOptions {
	return TerrainOptions{
		DEMFile:       os.ExpandEnv(Cfg.GetString("Terrain.DEMFile")),
		ElevationBand: Cfg.GetInt("Terrain.ElevationBand"),
		OutputDir:     os.ExpandEnv(Cfg.GetString("OutputDir")),
		SunZenith:     Cfg.GetFloat64("Terrain.SunZenith"),
		SunAzimuth:    Cfg.GetFloat64("Terrain.SunAzimuth"),
		ViewZenith:    Cfg.GetFloat64("Terrain.ViewZenith"),
		ViewAzimuth:   Cfg.GetFloat64("Terrain.ViewAzimuth"),
		MaxElevation:  Cfg.GetFloat64("Terrain.MaxElevation"),
	}
}
