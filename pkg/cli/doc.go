// Package cli implements the formroom command line.
//
// Commands:
//   - init: write a starter configuration with generated secrets
//   - serve: run the HTTP API with the configured store, keys and plans
//   - fill: fill a template from one or more JSON or YAML records
//   - validate: report template syntax problems
//   - keygen: print a fresh sealing key
//   - migrate: seal legacy plaintext documents and rotate retired keys
//   - plan: list plans, show or change a user's plan, show feature rules
//   - schema: infer a JSON Schema from sample records
//   - token: issue a bearer token for a user
//   - version: show build information
//
// Configuration is read from --config (YAML) and FORMROOM_* environment
// variables.
package cli
