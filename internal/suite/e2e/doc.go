// Package e2e holds the live-browser tests of the search cases. They only
// build with the e2e tag and need a local Chrome.
package e2e
