package mappings

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CodeLookup resolves account codes within a company chart in one batch.
type CodeLookup interface {
	FindIDsByCodes(ctx context.Context, companyID int64, codes []string) (map[string]int64, error)
}

// SaleRoles is the posting profile of a FIFO sale.
func SaleRoles() []Role {
	return []Role{RoleReceivable, RoleRevenue, RoleCOGS, RoleInventory, RoleVATOutput}
}

// PurchaseRoles is the posting profile of a receipt.
func PurchaseRoles() []Role {
	return []Role{RoleExpense, RolePayable, RoleVATInput}
}

// Resolver maps roles to account ids using a ChartMapping.
type Resolver struct {
	mapping ChartMapping
}

// NewResolver constructs a Resolver over mapping.
func NewResolver(mapping ChartMapping) *Resolver {
	return &Resolver{mapping: mapping}
}

// Mapping exposes the configured chart mapping.
func (r *Resolver) Mapping() ChartMapping {
	return r.mapping
}

// Resolve returns role -> account id for every role that applies under mode.
// Roles with no code for mode (VAT when exempt) are omitted. Missing accounts
// fail with *shared.ProfileMissingError listing every absent code.
func (r *Resolver) Resolve(ctx context.Context, lookup CodeLookup, companyID int64, roles []Role, mode VATMode) (map[Role]int64, error) {
	if _, ok := r.mapping.Rates[mode]; !ok {
		return nil, shared.ErrUnknownVATMode
	}
	codes := make(map[Role]string, len(roles))
	var batch []string
	for _, role := range roles {
		code, ok := r.mapping.Code(role, mode)
		if !ok {
			continue
		}
		codes[role] = code
		batch = append(batch, code)
	}
	found, err := lookup.FindIDsByCodes(ctx, companyID, batch)
	if err != nil {
		return nil, err
	}
	resolved := make(map[Role]int64, len(codes))
	missing := map[string]struct{}{}
	for role, code := range codes {
		id, ok := found[code]
		if !ok {
			missing[code] = struct{}{}
			continue
		}
		resolved[role] = id
	}
	if len(missing) > 0 {
		list := make([]string, 0, len(missing))
		for code := range missing {
			list = append(list, code)
		}
		sort.Strings(list)
		return nil, &shared.ProfileMissingError{Codes: list}
	}
	return resolved, nil
}
