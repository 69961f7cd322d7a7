package audio

import "context"

// SystemPermission satisfies ports.PermissionChecker on desktop platforms,
// where the OS prompts at first device open and a denial surfaces as a
// capture start failure rather than an up-front flag.
type SystemPermission struct{}

func (SystemPermission) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}
