package core

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	memoryBase = regexp.MustCompile("^[0-9]+")
	memoryUnit = regexp.MustCompile("[KMGT]B?$")
)

// DecodeMemory converts a request such as 8GB, 8G or 512 (megabytes by
// default) into megabytes, rounding kilobytes up
func DecodeMemory(req string) (mem int, err error) {
	req = strings.ToUpper(strings.TrimSpace(req))
	match := memoryBase.FindString(req)
	if len(match) == 0 {
		err = errors.New("invalid memory request: " + req)
		return
	}
	base, perr := strconv.ParseInt(match, 10, 64)
	if perr != nil {
		err = errors.New("invalid memory request: " + req)
		return
	}
	unit := memoryUnit.FindString(req)
	if len(match)+len(unit) != len(req) {
		err = errors.New("invalid memory request: " + req)
		return
	}
	switch strings.TrimSuffix(unit, "B") {
	case "K":
		mem = int(math.Ceil(float64(base) / 1024))
	case "G":
		mem = int(base) * 1024
	case "T":
		mem = int(base) * 1024 * 1024
	default:
		mem = int(base)
	}
	return
}
