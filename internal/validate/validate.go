// Package validate inspects a working copy against the attribute schema and
// produces an ordered diagnostic list.
package validate

import (
	"fmt"

	"github.com/roadsight/vannot/internal/schema"
)

// structuralKeys are the categorical keys subject to the membership check, in
// the order their issues are reported. special_type is exempt.
var structuralKeys = []string{
	"brand_name",
	"vehicle_color",
	"orientation",
	"label",
	"itype",
	"type",
}

// Diagnose returns the list of issues for a working copy. Missing-metadata
// issues come first, then invalid-value issues; within each group keys are
// checked in declared order. Pure function: attrs is never modified.
func Diagnose(attrs map[string]any) []string {
	var issues []string

	for _, key := range schema.MetadataKeys {
		if _, ok := attrs[key]; !ok {
			issues = append(issues, fmt.Sprintf("Missing required field: %s", key))
		}
	}

	for _, key := range structuralKeys {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString || !schema.IsValid(key, s) {
			issues = append(issues, fmt.Sprintf("Invalid value for %s: %v", key, v))
		}
	}

	return issues
}
