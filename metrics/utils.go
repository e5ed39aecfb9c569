package metrics

import "strings"

func hostForKey(h string) string {
	h = strings.ReplaceAll(h, ".", "_")
	h = strings.ReplaceAll(h, ":", "__")
	return h
}

func measuredMethod(m string) string {
	switch m {
	case "OPTIONS",
		"GET",
		"HEAD",
		"POST",
		"PUT",
		"DELETE",
		"TRACE",
		"CONNECT":
		return m
	default:
		return "_unknownmethod_"
	}
}
