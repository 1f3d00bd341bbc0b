// Package preflight provides readiness checks for the filesystem paths,
// storage backends and services that lightbox depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before every poll cycle. If any check fails,
//     the cycle is skipped so photos are not marked failed for environmental
//     reasons such as a full disk or an unreachable database.
//   - The CLI "lightbox check" command prints every result as a table.
//
// Checks for optional features report Passed with a "disabled" detail.
package preflight
