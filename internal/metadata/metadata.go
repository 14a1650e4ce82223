// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package metadata is the best-effort EXIF extractor (spec §4.6): camera
// and GPS fields parsed out of the image container when the EXIF toggle is
// on. Any parse failure yields an empty map and nil coordinates; the
// ingestion pipeline continues regardless.
package metadata

import (
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// Fields holds the subset of EXIF tags spec §4.6 names, already normalized
// to plain Go values for embedding in the opaque JSON blob.
type Fields struct {
	CameraMake      string  `json:"cameraMake,omitempty"`
	CameraModel     string  `json:"cameraModel,omitempty"`
	FNumber         float64 `json:"fNumber,omitempty"`
	ExposureTime    string  `json:"exposureTime,omitempty"`
	ISO             int     `json:"iso,omitempty"`
	ExposureBias    float64 `json:"exposureBias,omitempty"`
	FocalLength     float64 `json:"focalLength,omitempty"`
	MaxAperture     float64 `json:"maxAperture,omitempty"`
	MeteringMode    string  `json:"meteringMode,omitempty"`
	FlashMode       string  `json:"flashMode,omitempty"`
	FocalLength35mm int     `json:"focalLength35mm,omitempty"`
}

// Result is the outcome of Extract: best-effort fields plus optional GPS
// coordinates.
type Result struct {
	Fields Fields
	Lat    *float64
	Lon    *float64
}

// Extract opens path and parses whatever EXIF tags are present. It never
// returns an error to the caller: any failure (missing EXIF segment,
// unsupported container, corrupt tag) yields a zero Result, matching spec
// §4.6's "any parse failure yields an empty map and null coordinates".
func Extract(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{}
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Result{}
	}

	var res Result
	res.Fields.CameraMake = tagString(x, exif.Make)
	res.Fields.CameraModel = tagString(x, exif.Model)
	res.Fields.FNumber = tagRational(x, exif.FNumber)
	res.Fields.ExposureTime = tagRationalString(x, exif.ExposureTime)
	res.Fields.ISO = tagInt(x, exif.ISOSpeedRatings)
	res.Fields.ExposureBias = tagRational(x, exif.ExposureBiasValue)
	res.Fields.FocalLength = tagRational(x, exif.FocalLength)
	res.Fields.MaxAperture = tagRational(x, exif.MaxApertureValue)
	res.Fields.MeteringMode = meteringModeString(tagInt(x, exif.MeteringMode))
	res.Fields.FlashMode = flashString(tagInt(x, exif.Flash))
	res.Fields.FocalLength35mm = tagInt(x, exif.FocalLengthIn35mmFilm)

	if lat, lon, err := x.LatLong(); err == nil {
		latCopy, lonCopy := lat, lon
		res.Lat = &latCopy
		res.Lon = &lonCopy
	}
	return res
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func tagInt(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

func tagRational(x *exif.Exif, name exif.FieldName) float64 {
	tag, err := x.Get(name)
	if err != nil || tag.Count == 0 {
		return 0
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func tagRationalString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	return tag.String()
}

func meteringModeString(v int) string {
	switch v {
	case 1:
		return "average"
	case 2:
		return "center-weighted"
	case 3:
		return "spot"
	case 4:
		return "multi-spot"
	case 5:
		return "pattern"
	case 6:
		return "partial"
	default:
		return ""
	}
}

func flashString(v int) string {
	if v&0x1 != 0 {
		return "fired"
	}
	return "did-not-fire"
}
