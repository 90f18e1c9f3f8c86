package mappings

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Role is a semantic posting slot, resolved to a concrete account per company.
type Role string

const (
	RoleReceivable Role = "RECEIVABLE"
	RoleRevenue    Role = "REVENUE"
	RoleCOGS       Role = "COGS"
	RoleInventory  Role = "INVENTORY"
	RoleVATOutput  Role = "VAT_OUTPUT"
	RoleExpense    Role = "EXPENSE"
	RolePayable    Role = "PAYABLE"
	RoleVATInput   Role = "VAT_INPUT"
)

// VATMode selects the revenue/expense and tax accounts of a document.
type VATMode string

const (
	VATModeStandard VATMode = "STANDARD"
	VATModeReduced  VATMode = "REDUCED"
	VATModeExempt   VATMode = "EXEMPT"
)

// ChartMapping is one version of the role -> account code table. It is the
// only place account code literals live.
type ChartMapping struct {
	Version string
	// Fixed roles map to a single code regardless of VAT mode.
	Fixed map[Role]string
	// ByMode roles map to a code per VAT mode. A mode missing from the inner
	// map means the role does not apply (e.g. no VAT account when exempt).
	ByMode map[Role]map[VATMode]string
	Rates  map[VATMode]decimal.Decimal
}

// Code returns the account code of role under mode.
func (m ChartMapping) Code(role Role, mode VATMode) (string, bool) {
	if code, ok := m.Fixed[role]; ok {
		return code, true
	}
	byMode, ok := m.ByMode[role]
	if !ok {
		return "", false
	}
	code, ok := byMode[mode]
	return code, ok
}

// Rate returns the VAT rate of mode.
func (m ChartMapping) Rate(mode VATMode) (decimal.Decimal, bool) {
	rate, ok := m.Rates[mode]
	return rate, ok
}

// ProtectedCodes lists every code referenced by the mapping, sorted.
func (m ChartMapping) ProtectedCodes() []string {
	seen := map[string]struct{}{}
	for _, code := range m.Fixed {
		seen[code] = struct{}{}
	}
	for _, byMode := range m.ByMode {
		for _, code := range byMode {
			seen[code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// DefaultVersion is the chart mapping used when none is configured.
const DefaultVersion = "2024.1"

var charts = map[string]ChartMapping{
	DefaultVersion: {
		Version: DefaultVersion,
		Fixed: map[Role]string{
			RoleReceivable: "1200",
			RoleInventory:  "1300",
			RolePayable:    "2200",
			RoleCOGS:       "5000",
		},
		ByMode: map[Role]map[VATMode]string{
			RoleRevenue: {
				VATModeStandard: "7600",
				VATModeReduced:  "7610",
				VATModeExempt:   "7620",
			},
			RoleExpense: {
				VATModeStandard: "4000",
				VATModeReduced:  "4010",
				VATModeExempt:   "4020",
			},
			RoleVATOutput: {
				VATModeStandard: "2600",
				VATModeReduced:  "2610",
			},
			RoleVATInput: {
				VATModeStandard: "1600",
				VATModeReduced:  "1610",
			},
		},
		Rates: map[VATMode]decimal.Decimal{
			VATModeStandard: decimal.RequireFromString("0.20"),
			VATModeReduced:  decimal.RequireFromString("0.09"),
			VATModeExempt:   decimal.Zero,
		},
	},
}

// Lookup returns the chart mapping registered under version.
func Lookup(version string) (ChartMapping, bool) {
	if version == "" {
		version = DefaultVersion
	}
	m, ok := charts[version]
	return m, ok
}

// DefaultMapping returns the current chart mapping.
func DefaultMapping() ChartMapping {
	return charts[DefaultVersion]
}
