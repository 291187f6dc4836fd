//go:build release

package spatial

// Release builds drop the contract scans. A broken invariant is undefined
// behaviour here; run the tests (default tags) to catch it.
const contractChecks = false

func invariant(bool, string, ...any) {}
