// Package units provides astronomical unit conversions used when presenting
// event distances to users.
package units

// mlyPerMpc is the number of million light years in one megaparsec.
const mlyPerMpc = 3.2637977445371

// MpcToMly converts a distance in megaparsec to million light years.
func MpcToMly(mpc float64) float64 {
	return mpc * mlyPerMpc
}
