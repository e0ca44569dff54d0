package auth

// Section ids of the dashboard.
const (
	SectionDashboard = "dashboard"
	SectionMembers   = "members"
	SectionRegister  = "register"
	SectionVisits    = "visits"
	SectionShop      = "shop"
	SectionFinances  = "finances"
	SectionReports   = "reports"
	SectionTrash     = "trash"
	SectionAdmin     = "admin"
	SectionHistory   = "history"
	SectionDev       = "dev"
)

var (
	baseSections     = []string{SectionDashboard, SectionMembers, SectionRegister, SectionVisits, SectionShop, SectionFinances, SectionReports}
	elevatedSections = []string{SectionTrash, SectionAdmin, SectionHistory}
)

// VisibleSections is the ordered set of sections role may open once hidden
// overrides are subtracted. The dev section cannot be hidden.
func VisibleSections(role Role, hidden []string) []string {
	skip := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		if h != SectionDev {
			skip[h] = true
		}
	}

	all := append([]string(nil), baseSections...)
	if Elevated(role) {
		all = append(all, elevatedSections...)
	}
	if role == RoleDev {
		all = append(all, SectionDev)
	}

	out := all[:0]
	for _, s := range all {
		if !skip[s] {
			out = append(out, s)
		}
	}
	return out
}

// KnownSection reports whether id names a section that can be hidden.
func KnownSection(id string) bool {
	for _, s := range baseSections {
		if s == id {
			return true
		}
	}
	for _, s := range elevatedSections {
		if s == id {
			return true
		}
	}
	return false
}
