package rbac

// PermAll is the wildcard: a role mapped to it holds every permission.
const PermAll = "*"

// Permission names, one group per portal screen family. Additions here are
// data entry, not logic changes.
const (
	PermPatientRead  = "patient.read"
	PermPatientWrite = "patient.write"

	PermStaffRead   = "staff.read"
	PermStaffManage = "staff.manage"

	PermAppointmentRead     = "appointment.read"
	PermAppointmentSchedule = "appointment.schedule"

	PermBillingRead   = "billing.read"
	PermBillingManage = "billing.manage"

	PermLabOrderRead    = "lab.order.read"
	PermLabResultsWrite = "lab.results.write"

	PermAdmissionRead   = "admission.read"
	PermAdmissionManage = "admission.manage"

	PermHospitalManage = "hospital.manage"
	PermReportsView    = "reports.view"
	PermSettingsManage = "settings.manage"
)

// permissionsByRole is the static grant table. SUPER_ADMIN holds the
// wildcard; every other role lists its grants explicitly.
var permissionsByRole = map[Role][]string{
	RoleSuperAdmin: {PermAll},
	RoleHospitalAdmin: {
		PermPatientRead, PermPatientWrite,
		PermStaffRead, PermStaffManage,
		PermAppointmentRead, PermAppointmentSchedule,
		PermBillingRead, PermBillingManage,
		PermLabOrderRead,
		PermAdmissionRead, PermAdmissionManage,
		PermHospitalManage, PermReportsView, PermSettingsManage,
	},
	RoleAdmin: {
		PermPatientRead, PermPatientWrite,
		PermStaffRead,
		PermAppointmentRead, PermAppointmentSchedule,
		PermBillingRead, PermBillingManage,
		PermAdmissionRead, PermAdmissionManage,
		PermReportsView,
	},
	RoleDoctor: {
		PermPatientRead, PermPatientWrite,
		PermAppointmentRead, PermAppointmentSchedule,
		PermLabOrderRead,
		PermAdmissionRead, PermAdmissionManage,
	},
	RoleNurse: {
		PermPatientRead, PermPatientWrite,
		PermAppointmentRead,
		PermLabOrderRead,
		PermAdmissionRead,
	},
	RoleMidwife: {
		PermPatientRead, PermPatientWrite,
		PermAppointmentRead,
		PermAdmissionRead,
	},
	RoleReceptionist: {
		PermPatientRead,
		PermAppointmentRead, PermAppointmentSchedule,
		PermBillingRead,
	},
	RoleLabScientist: {
		PermPatientRead,
		PermLabOrderRead, PermLabResultsWrite,
	},
	RoleStaff: {
		PermPatientRead,
		PermAppointmentRead,
	},
	RolePatient: {
		PermAppointmentRead,
	},
}

// PermissionsFor returns a copy of the grant list for a role.
func PermissionsFor(role Role) []string {
	grants := permissionsByRole[role]
	out := make([]string, len(grants))
	copy(out, grants)
	return out
}
