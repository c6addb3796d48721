// Package license validates the deployment's license key against the
// vendor server and gates optional features on the verdict.
//
// Validation results are cached in an expirable LRU so request paths
// never block on the license server; concurrent validations of the same
// key collapse into one HTTP call. The manager watches the license file
// for rewrites and swaps the active key without a restart.
package license
