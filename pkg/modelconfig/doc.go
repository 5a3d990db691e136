// Package modelconfig loads entity descriptor overrides from HCL and YAML
// files so key conventions can be adjusted without touching struct tags.
//
// HCL:
//
//	entity "Product" {
//	  keys      = ["Id"]
//	  generated = false
//	  ignore    = ["Audit"]
//	}
//
// YAML:
//
//	entities:
//	  - name: Product
//	    keys: [Id]
//	    generated: false
//	    ignore: [Audit]
package modelconfig
