// Package rbac resolves hospital portal roles and the permissions they
// grant. The role hierarchy and the permission table are fixed
// configuration data; the server remains the authority on enforcement.
package rbac

import "strings"

// Role identifies one of the portal's fixed roles.
type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleHospitalAdmin Role = "HOSPITAL_ADMIN"
	RoleAdmin         Role = "ADMIN"
	RoleDoctor        Role = "DOCTOR"
	RoleNurse         Role = "NURSE"
	RoleMidwife       Role = "MIDWIFE"
	RoleReceptionist  Role = "RECEPTIONIST"
	RoleLabScientist  Role = "LAB_SCIENTIST"
	RoleStaff         Role = "STAFF"
	RolePatient       Role = "PATIENT"
)

// rolePrefix is the namespace some backends prepend to role claims.
const rolePrefix = "ROLE_"

// Hierarchy orders roles from most to least privileged. The primary role
// of a role set is the member with the lowest index here.
var Hierarchy = []Role{
	RoleSuperAdmin,
	RoleHospitalAdmin,
	RoleAdmin,
	RoleDoctor,
	RoleNurse,
	RoleMidwife,
	RoleReceptionist,
	RoleLabScientist,
	RoleStaff,
	RolePatient,
}

// Normalize maps a raw role claim onto its canonical form: namespace
// prefix stripped, separators unified, upper-cased.
func Normalize(raw string) Role {
	r := strings.ToUpper(strings.TrimSpace(raw))
	r = strings.TrimPrefix(r, rolePrefix)
	r = strings.ReplaceAll(r, "-", "_")
	return Role(r)
}

// Primary returns the highest-priority role present in roles. The second
// return is false when roles is empty or contains no known role.
func Primary(roles []string) (Role, bool) {
	best := len(Hierarchy)
	for _, raw := range roles {
		r := Normalize(raw)
		for i, h := range Hierarchy {
			if r == h && i < best {
				best = i
			}
		}
	}
	if best == len(Hierarchy) {
		return "", false
	}
	return Hierarchy[best], true
}

// HasAny reports whether the two role sets intersect after normalization.
func HasAny(have, want []string) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	set := make(map[Role]struct{}, len(have))
	for _, raw := range have {
		set[Normalize(raw)] = struct{}{}
	}
	for _, raw := range want {
		if _, ok := set[Normalize(raw)]; ok {
			return true
		}
	}
	return false
}

// Format renders a role claim for display: prefix stripped, separators
// replaced with spaces, each word title-cased. Pure formatting, no state.
func Format(raw string) string {
	r := strings.TrimSpace(raw)
	r = strings.TrimPrefix(strings.ToUpper(r), rolePrefix)
	r = strings.NewReplacer("_", " ", "-", " ").Replace(r)
	words := strings.Fields(strings.ToLower(r))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
