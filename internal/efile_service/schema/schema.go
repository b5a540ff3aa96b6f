// Package schema pins the authority-facing vocabulary to a schema version.
// Everything here is data, not behavior: element constants, code mappings,
// allow-lists. Bumping to a new tax-year schema means adding a Table, not
// editing the encoder.
package schema

import (
	"strings"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
)

// Version names one supported authority schema release.
type Version string

const (
	// TY2025v1_2 is the tax-year-2025 processing-year-2026 schema.
	TY2025v1_2 Version = "TY2025v1.2"
)

// DefaultVersion is the schema used when the caller does not pin one.
const DefaultVersion = TY2025v1_2

// Wire TIN type codes.
const (
	TINBusiness   = "BUSINESS_TIN"
	TINIndividual = "INDIVIDUAL_TIN"
	TINUnknown    = "UNKNOWN"
)

// Table is the full vocabulary for one schema version.
type Table struct {
	Version          Version
	SchemaVersionNum string
	Namespace        string

	tinTypes     map[domain.TINType]string
	statusStates map[string]domain.FilingState
	cfsfForms    map[domain.FormType]bool
	cfsfStates   map[string]bool
}

var tables = map[Version]*Table{
	TY2025v1_2: {
		Version:          TY2025v1_2,
		SchemaVersionNum: "2.0.3",
		Namespace:        "urn:us:gov:treasury:irs:ir",
		tinTypes: map[domain.TINType]string{
			domain.TINTypeEIN:  TINBusiness,
			domain.TINTypeSSN:  TINIndividual,
			domain.TINTypeITIN: TINIndividual,
			domain.TINTypeATIN: TINIndividual,
		},
		statusStates: map[string]domain.FilingState{
			"accepted":             domain.FilingAccepted,
			"accepted with errors": domain.FilingAcceptedWithErrors,
			"partially accepted":   domain.FilingAcceptedWithErrors,
			"rejected":             domain.FilingRejected,
			"processing":           domain.FilingProcessing,
			"received":             domain.FilingProcessing,
			"in process":           domain.FilingProcessing,
			"submitted":            domain.FilingSubmitted,
		},
		cfsfForms: map[domain.FormType]bool{
			domain.Form1099NEC:  true,
			domain.Form1099MISC: true,
		},
		cfsfStates: setOf(
			"AL", "AZ", "AR", "CA", "CT", "CO", "DC", "DE", "GA", "HI",
			"ID", "IN", "KS", "LA", "MA", "MD", "ME", "MI", "MN", "MS",
			"MT", "NE", "NJ", "NM", "NC", "ND", "OH", "OK", "OR", "PA",
			"RI", "SC", "WI",
		),
	},
}

// Lookup returns the Table for a version, falling back to the default when
// the version is unknown.
func Lookup(v Version) *Table {
	if t, ok := tables[v]; ok {
		return t
	}
	return tables[DefaultVersion]
}

// Default returns the table for DefaultVersion.
func Default() *Table { return Lookup(DefaultVersion) }

// TINTypeCode maps a local TIN type to the wire code. Unrecognized types map
// to UNKNOWN rather than being guessed at.
func (t *Table) TINTypeCode(tt domain.TINType) string {
	if code, ok := t.tinTypes[tt]; ok {
		return code
	}
	return TINUnknown
}

// FilingStateFor maps an authority status string to a lifecycle state.
// Matching is case-insensitive on the trimmed value; anything outside the
// vocabulary comes back as (FilingUnknown, false).
func (t *Table) FilingStateFor(authorityStatus string) (domain.FilingState, bool) {
	key := strings.ToLower(strings.TrimSpace(authorityStatus))
	if s, ok := t.statusStates[key]; ok {
		return s, true
	}
	return domain.FilingUnknown, false
}

// CFSFEligibleForm reports whether the combined federal/state program accepts
// the form type in this schema version.
func (t *Table) CFSFEligibleForm(ft domain.FormType) bool { return t.cfsfForms[ft] }

// CFSFEligibleState reports whether a state participates in the combined
// federal/state program.
func (t *Table) CFSFEligibleState(state string) bool {
	return t.cfsfStates[strings.ToUpper(strings.TrimSpace(state))]
}

// BusinessNameControl derives the four-character name control from a
// business name: the first four significant characters, uppercased, with
// ampersands and hyphens kept.
func BusinessNameControl(name string) string {
	return nameControl(name, true)
}

// PersonNameControl derives the name control from an individual's last name.
func PersonNameControl(lastName string) string {
	return nameControl(lastName, false)
}

func nameControl(s string, business bool) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		case business && (r == '&' || (r >= '0' && r <= '9')):
			b.WriteRune(r)
		}
		if b.Len() == 4 {
			break
		}
	}
	return b.String()
}

func setOf(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
