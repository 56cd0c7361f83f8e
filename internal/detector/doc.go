// Package detector scrapes the GWIStat page for the current observing state
// of the gravitational-wave detectors.
package detector
