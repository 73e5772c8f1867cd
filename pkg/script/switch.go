package script

import "strings"

// Switch is the compiled form of an edge's `switch{field, cases, default}`
// clause: a dot-separated field path split into segments, a map of string
// match values to target node ids, and an optional default target.
type Switch struct {
	field   []string
	cases   map[string]string
	deflt   string
	hasDflt bool
}

// CompileSwitch splits field on "." and copies cases/deflt into a [Switch]
// ready for repeated resolution.
func CompileSwitch(field string, cases map[string]string, deflt string, hasDefault bool) *Switch {
	sw := &Switch{
		field:   strings.Split(field, "."),
		cases:   make(map[string]string, len(cases)),
		deflt:   deflt,
		hasDflt: hasDefault,
	}
	for k, v := range cases {
		sw.cases[k] = v
	}
	return sw
}

// Resolve walks data (the JSON view of the source payload, as produced by
// [payload.ToJSON]) by the switch's field path and returns the matching
// target node id. ok is false if no case matched and no default was
// configured.
func (s *Switch) Resolve(data any) (target string, ok bool) {
	cur := data
	for _, segment := range s.field {
		obj, isMap := cur.(map[string]any)
		if !isMap {
			return s.fallback()
		}
		next, present := obj[segment]
		if !present {
			return s.fallback()
		}
		cur = next
	}

	key, isString := cur.(string)
	if !isString {
		return s.fallback()
	}
	if target, matched := s.cases[key]; matched {
		return target, true
	}
	return s.fallback()
}

func (s *Switch) fallback() (string, bool) {
	if s.hasDflt {
		return s.deflt, true
	}
	return "", false
}
