package control

import (
	"fmt"
	"sort"
	"strings"
)

// Param names a rover variable set through ?var=name&val=value.
type Param string

const (
	Speed     Param = "speed"
	Flash     Param = "flash"
	Quality   Param = "quality"
	FrameSize Param = "framesize"
)

// Range is the inclusive value range of a parameter.
type Range struct {
	Min int
	Max int
}

var paramRanges = map[Param]Range{
	Speed:     {0, 255},
	Flash:     {0, 255},
	Quality:   {10, 63},
	FrameSize: {5, 13},
}

// ParamDefaults are the values the firmware boots with.
var ParamDefaults = map[Param]int{
	Speed:     255,
	Flash:     0,
	Quality:   12,
	FrameSize: 8,
}

// ParseParam validates a parameter name.
func ParseParam(s string) (Param, error) {
	p := Param(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := paramRanges[p]; !ok {
		return "", fmt.Errorf("unknown parameter %q", s)
	}
	return p, nil
}

// Range returns the valid range of p.
func (p Param) Range() Range {
	return paramRanges[p]
}

// Clamp restricts v to the valid range of p.
func (p Param) Clamp(v int) int {
	r, ok := paramRanges[p]
	if !ok {
		return v
	}
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// FrameSizes maps the camera resolution names to their framesize codes.
var FrameSizes = map[string]int{
	"UXGA(1600x1200)": 13,
	"SXGA(1280x1024)": 12,
	"HD(1280x720)":    11,
	"XGA(1024x768)":   10,
	"SVGA(800x600)":   9,
	"VGA(640x480)":    8,
	"CIF(400x296)":    7,
	"QVGA(320x240)":   6,
	"QCIF(176x144)":   5,
}

// FrameSizeCode looks up a resolution by its full name ("VGA(640x480)") or
// its short prefix ("vga"). Unknown names fall back to VGA.
func FrameSizeCode(name string) (int, bool) {
	if code, ok := FrameSizes[name]; ok {
		return code, true
	}
	for full, code := range FrameSizes {
		short := full[:strings.Index(full, "(")]
		if strings.EqualFold(short, strings.TrimSpace(name)) {
			return code, true
		}
	}
	return ParamDefaults[FrameSize], false
}

// FrameSizeNames returns the resolution names from largest to smallest.
func FrameSizeNames() []string {
	names := make([]string, 0, len(FrameSizes))
	for n := range FrameSizes {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return FrameSizes[names[i]] > FrameSizes[names[j]]
	})
	return names
}
