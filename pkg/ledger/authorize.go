package ledger

import (
	"fmt"

	"github.com/RyanW02/waterledger/pkg/types/audit"
)

// satisfies lists the roles that meet each requirement. ADMIN is the higher role and may act as an OPERATOR.
var satisfies = map[audit.Role][]audit.Role{
	audit.RoleAdmin:    {audit.RoleAdmin},
	audit.RoleOperator: {audit.RoleOperator, audit.RoleAdmin},
}

// authorize is the single gate for every mutating operation. Must hold the lock.
func (l *Ledger) authorize(caller audit.Principal, required audit.Role) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}

	for _, role := range satisfies[required] {
		held, err := l.repository.HasRole(role, caller)
		if err != nil {
			return err
		}

		if held {
			return nil
		}
	}

	return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, caller, required)
}
