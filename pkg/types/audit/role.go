package audit

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOperator
}

// Roles lists every role the ledger knows about.
func Roles() []Role {
	return []Role{RoleAdmin, RoleOperator}
}
