package release

import "fmt"

// WantedError compares an expected error against a found error in tests.
type WantedError interface {
	CompareErr(error) error
}

type NilError struct{}

func (NilError) CompareErr(other error) error {
	if other == nil {
		return nil
	}
	return fmt.Errorf("wanted `nil`; found `%T`: %v", other, other)
}

type WantedErrFunc func(error) error

func (wef WantedErrFunc) CompareErr(other error) error {
	return wef(other)
}

// CompareErrs treats a nil `wanted` as `NilError{}` so table tests can leave
// the field unset for happy paths.
func CompareErrs(wanted WantedError, found error) error {
	if wanted == nil {
		wanted = NilError{}
	}
	return wanted.CompareErr(found)
}
