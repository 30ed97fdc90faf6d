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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cloudmask"
	"github.com/spatialmodel/cloudmask/terrain"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
}

// progressChan returns a channel logging pipeline status messages.
func progressChan() chan string {
	c := make(chan string)
	go func() {
		for msg := range c {
			logger.Info(msg)
		}
	}()
	return c
}

// Cloud runs the cloud detection pipeline on the given raster files
// and writes the mask to outputDir. An empty validFile means every
// pixel is treated as observed.
func Cloud(reflFile, thermalFile, saturationFile, validFile, outputDir string, cfg cloudmask.Config) error {
	_, err := runCloud(reflFile, thermalFile, saturationFile, validFile, outputDir, cfg)
	return err
}

func runCloud(reflFile, thermalFile, saturationFile, validFile, outputDir string, cfg cloudmask.Config) (*cloudmask.CloudMaskPipeline, error) {
	refl, err := cloudmask.ReadRasterFile(reflFile)
	if err != nil {
		return nil, err
	}
	thermal, err := cloudmask.ReadRasterFile(thermalFile)
	if err != nil {
		return nil, err
	}
	saturation, err := cloudmask.ReadRasterFile(saturationFile)
	if err != nil {
		return nil, err
	}
	var valid *cloudmask.Raster
	if validFile != "" {
		if valid, err = cloudmask.ReadRasterFile(validFile); err != nil {
			return nil, err
		}
	}

	cfg.Progress = progressChan()
	p := &cloudmask.CloudMaskPipeline{
		Config:     cfg,
		Refl:       refl,
		Thermal:    thermal,
		Saturation: saturation,
		Valid:      valid,
	}
	logger.WithFields(logrus.Fields{
		"rows": refl.Rows(), "cols": refl.Cols(), "bands": refl.Bands(),
	}).Info("starting cloud detection")
	if err := p.Run(); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"landCloudProb":  p.Thresholds.LandCloudProb,
		"waterCloudProb": p.Thresholds.WaterCloudProb,
		"waterValid":     p.Thresholds.WaterValid,
	}).Info("cloud detection finished")

	sink := &cloudmask.FileSink{Dir: outputDir}
	if err := sink.WriteRaster("cloudmask", p.CloudMask); err != nil {
		return nil, err
	}
	if cfg.KeepIntermediate {
		pass1, landWater, prob := p.Diagnostics()
		for name, r := range map[string]*cloudmask.Raster{
			"pass1": pass1, "landwater": landWater, "probability": prob,
		} {
			if err := sink.WriteRaster(name, r); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Shadow runs the cloud detection pipeline followed by the shadow
// candidate pipeline, writing both masks to outputDir.
func Shadow(reflFile, thermalFile, saturationFile, validFile, outputDir string, cfg cloudmask.Config) error {
	if validFile == "" {
		return fmt.Errorf("cloudmask: Cloud.ValidFile is required for shadow detection")
	}
	p, err := runCloud(reflFile, thermalFile, saturationFile, validFile, outputDir, cfg)
	if err != nil {
		return err
	}

	shadowCfg := cfg
	shadowCfg.Progress = progressChan()
	s := &cloudmask.ShadowMaskPipeline{
		Config:    shadowCfg,
		Refl:      p.Refl,
		Valid:     p.Valid,
		LandWater: p.LandWater(),
		Store:     p.Store,
	}
	logger.Info("starting shadow detection")
	if err := s.Run(); err != nil {
		return err
	}
	sink := &cloudmask.FileSink{Dir: outputDir}
	if err := sink.WriteRaster("shadowmask", s.ShadowMask); err != nil {
		return err
	}
	if cfg.KeepIntermediate {
		nir, nirFilled := s.Diagnostics()
		for name, r := range map[string]*cloudmask.Raster{
			"nir": nir, "nirfilled": nirFilled,
		} {
			if err := sink.WriteRaster(name, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// TerrainProduct computes the named terrain product of the DEM in
// opts and writes it to opts.OutputDir.
func TerrainProduct(product string, opts TerrainOptions) error {
	dem, err := cloudmask.ReadRasterFile(opts.DEMFile)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"product": product, "rows": dem.Rows(), "cols": dem.Cols(),
	}).Info("computing terrain product")

	var out *cloudmask.Raster
	switch product {
	case "slope":
		out, err = terrain.SlopeRaster(dem, opts.ElevationBand, terrain.Degrees)
	case "aspect":
		out, err = terrain.AspectRaster(dem, opts.ElevationBand)
	case "hillshade":
		out, err = terrain.HillshadeRaster(dem, opts.ElevationBand,
			opts.SunZenith, opts.SunAzimuth)
	case "angles":
		out, err = terrain.IncidenceExitanceRaster(dem, opts.ElevationBand,
			opts.SunZenith, opts.SunAzimuth, opts.ViewZenith, opts.ViewAzimuth)
	case "castshadow":
		var c *terrain.ShadowCaster
		c, err = terrain.NewShadowCaster(dem, opts.ElevationBand,
			opts.SunZenith, opts.SunAzimuth, opts.MaxElevation)
		if err == nil {
			out, err = c.Mask()
		}
	default:
		return fmt.Errorf("cloudmask: unknown terrain product %q", product)
	}
	if err != nil {
		return err
	}
	sink := &cloudmask.FileSink{Dir: opts.OutputDir}
	return sink.WriteRaster(product, out)
}
