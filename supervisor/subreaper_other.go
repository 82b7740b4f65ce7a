//go:build !linux

package supervisor

func becomeSubreaper() error {
	return nil
}
