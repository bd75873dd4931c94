package geometry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrZeroDeterminant is returned when the scanner orientation cannot be inverted.
	ErrZeroDeterminant = errors.New("orientation determinant is zero")

	// ErrSubjectPosition is returned for a VisuSubjectPosition outside the accepted set.
	ErrSubjectPosition = errors.New("unrecognized subject position")

	// ErrSpatDim is returned when the spatial dimensionality is neither 2D nor 3D.
	ErrSpatDim = errors.New("unrecognized spatial dimension")
)

// Accepted VisuSubjectPosition values.
const (
	HeadProne  = "Head_Prone"
	HeadSupine = "Head_Supine"
)

// Profile selects the body-frame convention of a study. It is chosen once
// per study rather than per call.
type Profile int

const (
	// ProfileHead keeps the scanner frame as-is.
	ProfileHead Profile = iota

	// ProfileBodyAsHead remaps a quadruped body frame onto the biped head
	// frame used by most neuroimaging tools.
	ProfileBodyAsHead
)

func (p Profile) String() string {
	switch p {
	case ProfileHead:
		return "head"
	case ProfileBodyAsHead:
		return "body-as-head"
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

// ParseProfile accepts "head" and "body-as-head".
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "head":
		return ProfileHead, nil
	case "body-as-head", "body_as_head", "bodyashead":
		return ProfileBodyAsHead, nil
	}
	return ProfileHead, fmt.Errorf("unknown acquisition profile %q (want head or body-as-head)", s)
}

// Options are the overridable steps of the affine derivation.
type Options struct {
	Profile Profile

	// KeepSameDet forces the final determinant to the sign of the scanner's.
	KeepSameDet bool

	// ConsiderSubjectPosition flips the anterior-posterior axis of prone
	// subjects (sample upside down).
	ConsiderSubjectPosition bool
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{Profile: ProfileHead, KeepSameDet: true}
}

func checkSubjectPosition(s string) (prone bool, err error) {
	switch s {
	case HeadProne:
		return true, nil
	case HeadSupine:
		return false, nil
	}
	return false, fmt.Errorf("%w: %q (want %s or %s)", ErrSubjectPosition, s, HeadProne, HeadSupine)
}
