// Package git maintains the local mirror of the watched repository and
// materializes tagged trees out of it.
//
// Two backends implement Mirror:
//   - CLIMirror drives the git command line tool through a process.Runner
//   - GoGitMirror uses go-git and supports ssh, token and basic auth
//
// Failures are returned as git-category ShipperErrors. Materialize failures
// carry the step (clone or checkout) that failed.
package git
