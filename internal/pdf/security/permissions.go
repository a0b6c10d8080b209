package security

import (
	"strings"
)

// Permissions are the user access flags of an encrypted PDF, decoded from
// the P entry of its encryption dictionary
type Permissions struct {
	Print     bool // Bit 3
	Modify    bool // Bit 4
	Copy      bool // Bit 5
	Annotate  bool // Bit 6, also covers filling form fields
	FillForms bool // Bit 9, filling existing form fields when bit 6 is clear
	Extract   bool // Bit 10
	Assemble  bool // Bit 11
}

// NewPermissions decodes a P value
func NewPermissions(p int32) Permissions {
	return Permissions{
		Print:     p&(1<<2) != 0,
		Modify:    p&(1<<3) != 0,
		Copy:      p&(1<<4) != 0,
		Annotate:  p&(1<<5) != 0,
		FillForms: p&(1<<8) != 0,
		Extract:   p&(1<<9) != 0,
		Assemble:  p&(1<<10) != 0,
	}
}

// FullPermissions is what an unencrypted document allows
func FullPermissions() Permissions {
	return Permissions{
		Print: true, Modify: true, Copy: true, Annotate: true,
		FillForms: true, Extract: true, Assemble: true,
	}
}

// CanFillForms reports whether interactive form fields may be filled in
func (p Permissions) CanFillForms() bool {
	return p.FillForms || p.Annotate
}

// Denied lists the operations the document does not allow
func (p Permissions) Denied() []string {
	var denied []string
	for _, op := range []struct {
		name    string
		allowed bool
	}{
		{"print", p.Print},
		{"modify", p.Modify},
		{"copy", p.Copy},
		{"annotate", p.Annotate},
		{"fill_forms", p.CanFillForms()},
		{"extract", p.Extract},
		{"assemble", p.Assemble},
	} {
		if !op.allowed {
			denied = append(denied, op.name)
		}
	}
	return denied
}

// String returns a human-readable form
func (p Permissions) String() string {
	denied := p.Denied()
	if len(denied) == 0 {
		return "all operations allowed"
	}
	return "denied: " + strings.Join(denied, ", ")
}
