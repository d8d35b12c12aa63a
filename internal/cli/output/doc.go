// Package output formats chaingate-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - json.go: JSON output and raw JSON-RPC bodies
//   - yaml.go: YAML output
//   - text.go: aligned key/value output for humans
package output
