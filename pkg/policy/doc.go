// Package policy gates declarations with Rego policies before a run.
//
// Each policy is a Rego module defining a deny set. The engine evaluates the
// module once per declared resource, parents before children, with an input
// document of the form:
//
//	{
//	  "resource": {
//	    "type": "file",
//	    "name": "motd",
//	    "identity": "file[motd]",
//	    "action": "create",
//	    "attributes": {"path": "/etc/motd", "mode": "0644"},
//	    "sensitive": false,
//	    "ignore_failure": false,
//	    "guarded": false,
//	    "nesting_level": 1,
//	    "parent": "composite[base]",
//	    "children": 0
//	  },
//	  "context": {"node": "web-01", "why_run": false}
//	}
//
// Attribute values of sensitive resources are replaced with "[SENSITIVE]",
// except path and mode.
//
// A deny entry is either a message string or an object with message and,
// optionally, severity and resource. Entries of severity error or critical
// block the run; anything else is reported as a warning.
//
// Example policy:
//
//	package froyo.site
//
//	import rego.v1
//
//	deny contains msg if {
//		input.resource.type == "file"
//		startswith(input.resource.attributes.path, "/tmp/")
//		msg := "files under /tmp are not managed"
//	}
//
// Built-in policies:
//   - sensitive-file-mode: sensitive files must set a mode ending in 0
//   - protected-paths: system directories are never deleted
//   - empty-composite: composites without children (warning)
package policy
