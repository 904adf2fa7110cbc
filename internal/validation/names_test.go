package validation

import "testing"

func TestValidPermissionName(t *testing.T) {
	valid := []string{
		"sales.view",
		"inventory:adjust",
		"a",
		"reports.export_csv",
		"a1",
		"x-y.z:w",
	}
	for _, name := range valid {
		if !ValidPermissionName(name) {
			t.Errorf("ValidPermissionName(%q) = false, want true", name)
		}
	}

	invalid := []string{
		"",
		";hack",
		"Sales.View",
		"con espacio",
		".leader",
		"trailer.",
		":x",
		"x:",
		string(make([]byte, 70)),
	}
	for _, name := range invalid {
		if ValidPermissionName(name) {
			t.Errorf("ValidPermissionName(%q) = true, want false", name)
		}
	}
}

func TestValidRoleName(t *testing.T) {
	if !ValidRoleName("sales_rep") || !ValidRoleName("admin") {
		t.Fatal("expected role names to be valid")
	}
	// ":" y "." quedan reservados para permisos.
	for _, name := range []string{"sales.rep", "sales:rep", "Admin", "_x", ""} {
		if ValidRoleName(name) {
			t.Errorf("ValidRoleName(%q) = true, want false", name)
		}
	}
}
