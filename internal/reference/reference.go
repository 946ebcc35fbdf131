// Package reference holds the static lookup lists the clinic works with.
package reference

import (
	"errors"
	"sort"
)

var ErrUnknownProcedure = errors.New("unknown procedure code")

type Procedure struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Item struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Booking duration is derived from this table and never edited afterwards.
var procedures = map[string]Procedure{
	"consultation":    {Code: "consultation", Name: "Consultation", DurationMinutes: 30},
	"follow-up":       {Code: "follow-up", Name: "Follow-up visit", DurationMinutes: 20},
	"checkup":         {Code: "checkup", Name: "Routine check-up", DurationMinutes: 30},
	"cleaning":        {Code: "cleaning", Name: "Cleaning", DurationMinutes: 45},
	"extraction":      {Code: "extraction", Name: "Extraction", DurationMinutes: 60},
	"filling":         {Code: "filling", Name: "Filling", DurationMinutes: 45},
	"root-canal":      {Code: "root-canal", Name: "Root canal", DurationMinutes: 90},
	"ecg":             {Code: "ecg", Name: "Electrocardiogram", DurationMinutes: 15},
	"vaccination":     {Code: "vaccination", Name: "Vaccination", DurationMinutes: 15},
	"minor-surgery":   {Code: "minor-surgery", Name: "Minor surgery", DurationMinutes: 60},
	"physiotherapy":   {Code: "physiotherapy", Name: "Physiotherapy session", DurationMinutes: 50},
	"wound-dressing":  {Code: "wound-dressing", Name: "Wound dressing", DurationMinutes: 20},
	"emergency-visit": {Code: "emergency-visit", Name: "Emergency visit", DurationMinutes: 30},
}

var materials = []Item{
	{"gauze", "Sterile gauze"},
	{"gloves", "Nitrile gloves"},
	{"syringe-5ml", "Syringe 5 ml"},
	{"suture-3-0", "Suture 3-0"},
	{"anesthetic-lidocaine", "Lidocaine 2%"},
	{"composite-resin", "Composite resin"},
	{"bandage", "Elastic bandage"},
	{"alcohol-swab", "Alcohol swab"},
}

var exams = []Item{
	{"cbc", "Complete blood count"},
	{"lipid-panel", "Lipid panel"},
	{"glucose", "Fasting glucose"},
	{"x-ray-panoramic", "Panoramic X-ray"},
	{"x-ray-chest", "Chest X-ray"},
	{"urinalysis", "Urinalysis"},
	{"tsh", "Thyroid-stimulating hormone"},
}

var equipment = []Item{
	{"autoclave", "Autoclave"},
	{"ecg-machine", "ECG machine"},
	{"dental-chair", "Dental chair"},
	{"ultrasonic-scaler", "Ultrasonic scaler"},
	{"nebulizer", "Nebulizer"},
}

var specialties = []Item{
	{"general-practice", "General Practice"},
	{"dentistry", "Dentistry"},
	{"cardiology", "Cardiology"},
	{"dermatology", "Dermatology"},
	{"orthopedics", "Orthopedics"},
	{"pediatrics", "Pediatrics"},
	{"physiotherapy", "Physiotherapy"},
}

// DurationFor returns the fixed booking length of a procedure.
func DurationFor(code string) (int, error) {
	p, ok := procedures[code]
	if !ok {
		return 0, ErrUnknownProcedure
	}
	return p.DurationMinutes, nil
}

func LookupProcedure(code string) (Procedure, bool) {
	p, ok := procedures[code]
	return p, ok
}

// Procedures returns every procedure ordered by code.
func Procedures() []Procedure {
	out := make([]Procedure, 0, len(procedures))
	for _, p := range procedures {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func Materials() []Item   { return clone(materials) }
func Exams() []Item       { return clone(exams) }
func Equipment() []Item   { return clone(equipment) }
func Specialties() []Item { return clone(specialties) }

func clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
