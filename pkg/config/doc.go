// Package config loads run configuration and resource declarations.
//
// # Run Configuration
//
// RunConfig is read from YAML over DefaultRunConfig and validated with
// struct tags. It names the node, the state database, the guard timeout,
// what the end-of-run summary contains, and the telemetry settings:
//
//	node: web-01
//	state_path: /var/lib/froyo/froyo.db
//	guard_timeout: 2s
//	report:
//	  format: json
//	  output: /var/log/froyo/last-run.json
//	  max_nesting: 1
//	  statuses: [updated, failed, unprocessed]
//	telemetry:
//	  logging:
//	    level: debug
//
// # Declarations
//
// A declaration lists the resources of a run in order. Nested resources are
// converged from within their parent's action. YAML and CUE are accepted:
//
//	resources:
//	  - type: directory
//	    name: /srv/app
//	  - type: composite
//	    name: app
//	    children:
//	      - type: file
//	        name: /srv/app/config.ini
//	        attributes:
//	          content: "port = 8080\n"
//	          mode: "0640"
//	        sensitive: true
//	        not_if: path_exists("/srv/app/.frozen")
//
// CUE documents are unified with the built-in declaration schema before they
// are decoded, so type and constraint errors carry file positions:
//
//	resources: [{
//	    type: "log"
//	    name: "hello"
//	    attributes: message: "converging \(node)"
//	}]
//
// Both formats then go through the same validator checks.
package config
