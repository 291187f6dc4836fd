//go:build !release

package spatial

// contractChecks is true in every build except -tags release. Release builds
// skip the per-cell and per-bucket contract scans below.
const contractChecks = true

func invariant(ok bool, format string, args ...any) {
	if !ok {
		panic(violation(format, args...))
	}
}
