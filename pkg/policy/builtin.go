package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		sensitiveFileModePolicy(),
		protectedPathsPolicy(),
		emptyCompositePolicy(),
	}
}

// sensitiveFileModePolicy keeps sensitive files away from other users.
func sensitiveFileModePolicy() Policy {
	return Policy{
		Name:        "sensitive-file-mode",
		Description: "Sensitive files must set a mode that grants nothing to others",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package froyo.builtin.sensitive_files

import rego.v1

creates_sensitive_file if {
	input.resource.type == "file"
	input.resource.sensitive
	input.resource.action == "create"
}

deny contains msg if {
	creates_sensitive_file
	not input.resource.attributes.mode
	msg := "sensitive file must set an explicit mode"
}

deny contains msg if {
	creates_sensitive_file
	mode := input.resource.attributes.mode
	not endswith(mode, "0")
	msg := sprintf("sensitive file mode %s grants access to others", [mode])
}`,
	}
}

// protectedPathsPolicy refuses to delete system directories.
func protectedPathsPolicy() Policy {
	return Policy{
		Name:        "protected-paths",
		Description: "File and directory resources must not delete system paths",
		Severity:    SeverityCritical,
		Enabled:     true,
		Rego: `package froyo.builtin.protected_paths

import rego.v1

protected := {"/", "/bin", "/boot", "/etc", "/home", "/root", "/usr", "/var"}

target := input.resource.attributes.path

target := input.resource.name if not input.resource.attributes.path

deny contains msg if {
	input.resource.type in {"file", "directory"}
	input.resource.action == "delete"
	target in protected
	msg := sprintf("refusing to delete protected path %s", [target])
}`,
	}
}

// emptyCompositePolicy flags composites that converge nothing.
func emptyCompositePolicy() Policy {
	return Policy{
		Name:        "empty-composite",
		Description: "Composite resources should declare children",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package froyo.builtin.composites

import rego.v1

deny contains msg if {
	input.resource.type == "composite"
	input.resource.children == 0
	msg := "composite resource declares no children"
}`,
	}
}
