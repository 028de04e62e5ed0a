// Package schema defines the fixed attribute vocabulary for vehicle samples:
// which keys a sample document carries, which values each categorical key
// accepts, and fuzzy matching against the accepted values for advisory
// suggestions.
package schema

import (
	"sort"

	"github.com/agext/levenshtein"
)

// Sentinel is the default value for any categorical attribute that has not
// been annotated yet. It is always the last entry of every option list.
const Sentinel = "None of the above"

// MetadataKeys are the mandatory per-sample metadata fields. They are never
// deleted once present.
var MetadataKeys = []string{"img_name", "width", "height"}

// CategoricalKeys lists the seven annotated attributes in canonical order.
// This order drives defaulting on load/verify and report sections.
var CategoricalKeys = []string{
	"label",
	"orientation",
	"brand_name",
	"vehicle_color",
	"itype",
	"type",
	"special_type",
}

var brands = []string{
	"TVS", "Maruti-Suzuki", "Eicher", "Ashok_leyland", "Mercedes-Benz",
	"Royal_Enfield", "Chevrolet", "Fiat", "Jaguar", "Audi", "Toyota",
	"SML", "Bajaj", "JBM", "Bharat_Benz", "Hero_Motor", "Volvo",
	"Nissan", "Renault", "Volkswagen", "Mazda", "Hero-Honda", "Hyundai",
	"MG", "Skoda", "Land_Rover", "Yamaha", "Kia", "Mahindra",
	"Mitsubishi", "Ford", "Jeep", "Tata-Motors", "Honda", "BMW",
	"Coupe", "Force", Sentinel,
}

var colors = []string{
	"Khakhi", "Silver", "Yellow", "Pink", "Purple", "Green", "Blue",
	"Brown", "Maroon", "Red", "Orange", "Violet", "White", "Black",
	"Gray", Sentinel,
}

var orientations = []string{"Front", "Back", "Side", Sentinel}

var labels = []string{
	"Bus", "Car", "Truck", "Motorbike", "Bicycle", "E-Rikshaw",
	"Cycle_Rikshaw", "Tractor", "Cement_Mixer", "Mini_Truck",
	"Mini_Bus", "Mini_Van", "Van", Sentinel,
}

var itypes = []string{
	"HMV", "LMV", "LGV", "3-Axle", "5-Axle", "MGWG", "6-Axle",
	"2-Axle", "4-Axle", "Heavy-Vehicle", Sentinel,
}

var types = []string{
	"Sedan", "SUV", "Micro", "Hatchback", "Wagon", "Pick-Up",
	"Convertible", Sentinel,
}

var specialTypes = []string{
	"Army_Vehicle", "Ambulance", "Graminseva_4wheeler",
	"Graminseva_3wheeler", "Campervan", Sentinel,
}

var optionsByKey = map[string][]string{
	"label":         labels,
	"orientation":   orientations,
	"brand_name":    brands,
	"vehicle_color": colors,
	"itype":         itypes,
	"type":          types,
	"special_type":  specialTypes,
}

// IsCategorical reports whether key carries a closed option set.
func IsCategorical(key string) bool {
	_, ok := optionsByKey[key]
	return ok
}

// Options returns the ordered option list for a categorical key, or nil for
// any other key. The sentinel is always the final entry.
func Options(key string) []string {
	return optionsByKey[key]
}

// IsValid reports whether value is acceptable for key. Categorical keys
// require membership in the option list; every other key is free-form.
func IsValid(key, value string) bool {
	opts, ok := optionsByKey[key]
	if !ok {
		return true
	}
	for _, o := range opts {
		if o == value {
			return true
		}
	}
	return false
}

// matchThreshold is the minimum normalized similarity for a suggestion.
const matchThreshold = 0.6

// similarity scores value against a single option on a 0-1 scale. Besides the
// plain normalized edit similarity it also scores value against the option's
// prefix of equal length, so a short entry like "Maruthi" still ranks the
// longer canonical "Maruti-Suzuki" highly.
func similarity(value, option string) float64 {
	best := levenshtein.Match(value, option, nil)
	if len(option) > len(value) {
		if s := levenshtein.Similarity(value, option[:len(value)], nil); s > best {
			best = s
		}
	}
	return best
}

// ClosestMatches ranks the option list for key by similarity to value and
// returns up to max entries scoring at or above the suggestion threshold.
// Advisory only: callers never apply these as corrections.
func ClosestMatches(key, value string, max int) []string {
	opts := optionsByKey[key]
	if value == "" || len(opts) == 0 || max <= 0 {
		return nil
	}

	type scored struct {
		option string
		score  float64
	}
	var candidates []scored
	for _, o := range opts {
		if s := similarity(value, o); s >= matchThreshold {
			candidates = append(candidates, scored{option: o, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.option
	}
	return out
}
