package operation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation is the canonical record of one emergency dispatch event.
// Alarm sources produce it from their native input, enrichment jobs may
// mutate it before it is stored, and distribution jobs consume it read-only
// afterwards.
type Operation struct {
	// ID is the store-assigned identity. It is zero until the operation
	// has been persisted.
	ID int64 `json:"id" yaml:"id"`
	// GUID is assigned at creation time and stays stable across
	// redeliveries of the same alarm.
	GUID string `json:"guid" yaml:"guid"`
	// Number is the dispatch-center supplied operation number and the
	// deduplication key: two deliveries with the same number describe the
	// same event.
	Number string `json:"operation_number" yaml:"operation_number"`
	// AlarmAt is the time of the actual alarm as reported by the source.
	AlarmAt time.Time `json:"alarm_at" yaml:"alarm_at"`
	// IncomeAt is the time the record materialized in this process.
	IncomeAt time.Time `json:"income_at" yaml:"income_at"`

	Messenger string `json:"messenger,omitempty" yaml:"messenger,omitempty"`
	Priority  string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Comment   string `json:"comment,omitempty" yaml:"comment,omitempty"`
	// Picture is the free-text situation picture ("Meldebild").
	Picture string `json:"picture,omitempty" yaml:"picture,omitempty"`
	// Plan is the dispatch plan reference ("Einsatzplan").
	Plan string `json:"plan,omitempty" yaml:"plan,omitempty"`

	// Einsatzort is the incident location.
	Einsatzort Location `json:"einsatzort" yaml:"einsatzort"`
	// Zielort is the destination location, usually empty.
	Zielort Location `json:"zielort" yaml:"zielort"`

	Keywords  Keywords `json:"keywords" yaml:"keywords"`
	Loops     LoopList `json:"loops" yaml:"loops"`
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`

	// CustomData carries source- or job-specific values that have no
	// dedicated field.
	CustomData map[string]any `json:"custom_data,omitempty" yaml:"custom_data,omitempty"`

	// Acknowledged marks operations that no longer need operator attention.
	Acknowledged bool `json:"acknowledged" yaml:"acknowledged"`
}

// New creates an empty operation with a fresh GUID and the income timestamp
// set to the current time.
func New() *Operation {
	return &Operation{
		GUID:       uuid.NewString(),
		IncomeAt:   time.Now(),
		CustomData: make(map[string]any),
	}
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}

	cloned := *o
	cloned.Loops = o.Loops.Clone()
	cloned.Resources = append([]string(nil), o.Resources...)

	if o.CustomData != nil {
		cloned.CustomData = make(map[string]any, len(o.CustomData))
		for k, v := range o.CustomData {
			cloned.CustomData[k] = v
		}
	}

	return &cloned
}

// CustomValue looks up a custom data value by name.
func (o *Operation) CustomValue(name string) (any, bool) {
	if o.CustomData == nil {
		return nil, false
	}

	v, ok := o.CustomData[name]

	return v, ok
}

// SetCustomValue stores a custom data value, allocating the bag lazily.
func (o *Operation) SetCustomValue(name string, value any) {
	if o.CustomData == nil {
		o.CustomData = make(map[string]any)
	}

	o.CustomData[name] = value
}

// String renders a short operator-facing summary.
func (o *Operation) String() string {
	parts := make([]string, 0, 3)
	if o.Number != "" {
		parts = append(parts, o.Number)
	}

	if kw := o.Keywords.String(); kw != "" {
		parts = append(parts, kw)
	}

	if loc := o.Einsatzort.String(); loc != "" {
		parts = append(parts, loc)
	}

	if len(parts) == 0 {
		return o.GUID
	}

	return strings.Join(parts, ", ")
}

// Location describes a place referenced by an operation.
type Location struct {
	Street       string `json:"street,omitempty" yaml:"street,omitempty"`
	HouseNumber  string `json:"house_number,omitempty" yaml:"house_number,omitempty"`
	ZipCode      string `json:"zip_code,omitempty" yaml:"zip_code,omitempty"`
	City         string `json:"city,omitempty" yaml:"city,omitempty"`
	Intersection string `json:"intersection,omitempty" yaml:"intersection,omitempty"`
	// Property holds additional object information, e.g. a building name.
	Property string `json:"property,omitempty" yaml:"property,omitempty"`

	// Latitude and Longitude are nil until a geocoding step resolved them.
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
}

// HasCoordinates reports whether both geo coordinates are set.
func (l *Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// IsMeaningful reports whether the location carries enough data to be
// looked up or displayed.
func (l *Location) IsMeaningful() bool {
	return l.Street != "" || l.City != "" || l.ZipCode != ""
}

// String renders the location as "Street HouseNumber, ZipCode City".
func (l *Location) String() string {
	var b strings.Builder

	if l.Street != "" {
		b.WriteString(l.Street)

		if l.HouseNumber != "" {
			b.WriteString(" ")
			b.WriteString(l.HouseNumber)
		}
	}

	if l.ZipCode != "" || l.City != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}

		b.WriteString(strings.TrimSpace(fmt.Sprintf("%s %s", l.ZipCode, l.City)))
	}

	return b.String()
}

// Keywords holds the categorized alarm keywords reported by the dispatch
// center. B/R/S/T follow the usual fire/rescue classification scheme.
type Keywords struct {
	Keyword          string `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	EmergencyKeyword string `json:"emergency_keyword,omitempty" yaml:"emergency_keyword,omitempty"`
	B                string `json:"b,omitempty" yaml:"b,omitempty"`
	R                string `json:"r,omitempty" yaml:"r,omitempty"`
	S                string `json:"s,omitempty" yaml:"s,omitempty"`
	T                string `json:"t,omitempty" yaml:"t,omitempty"`
}

// String joins all set keywords into one display string.
func (k *Keywords) String() string {
	parts := make([]string, 0, 6)
	for _, v := range []string{k.Keyword, k.EmergencyKeyword, k.B, k.R, k.S, k.T} {
		if v != "" {
			parts = append(parts, v)
		}
	}

	return strings.Join(parts, ", ")
}
