package lsf

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	core "superres.io/hpc-launcher/core"
)

// section[body] inside a -R resource requirement string
var resourceSection = regexp.MustCompile(`([a-z]+)\[([^\]]*)\]`)

// decodeResourceReq reads span[hosts=N], rusage[mem=X] and select[Y]
func decodeResourceReq(req string, res *core.Resources) error {
	sections := resourceSection.FindAllStringSubmatch(req, -1)
	if len(sections) == 0 {
		return errors.New("bsub: invalid resource requirement: " + req)
	}
	for _, section := range sections {
		switch name, body := section[1], section[2]; name {
		case "span":
			for key, value := range keyValues(body, ":") {
				if key != "hosts" {
					continue
				}
				hosts, err := strconv.Atoi(value)
				if err != nil || hosts < 1 {
					return errors.New("bsub: invalid span: " + body)
				}
				res.SpanHosts = hosts
			}
		case "rusage":
			if mem, ok := keyValues(body, ":,")["mem"]; ok {
				if _, err := core.DecodeMemory(mem); err != nil {
					return errors.New("bsub: " + err.Error())
				}
				res.Memory = mem
			}
		case "select":
			res.GpuSelect = body
		}
	}
	return nil
}

// decodeGpuReq reads num=N[:mode=M]
func decodeGpuReq(req string, res *core.Resources) error {
	values := keyValues(req, ":")
	num, ok := values["num"]
	if !ok {
		return errors.New("bsub: invalid gpu request: " + req)
	}
	gpus, err := strconv.Atoi(num)
	if err != nil || gpus < 0 {
		return errors.New("bsub: invalid gpu request: " + req)
	}
	res.Gpus = gpus
	res.GpuMode = values["mode"]
	return nil
}

func keyValues(body, separators string) map[string]string {
	values := make(map[string]string)
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	for _, field := range fields {
		parts := strings.SplitN(strings.TrimSpace(field), "=", 2)
		if len(parts) == 2 {
			values[parts[0]] = parts[1]
		} else {
			values[parts[0]] = "true"
		}
	}
	return values
}
