package matrix

import "github.com/pkg/errors"

var (
	ErrSingularMatrix = errors.New("singular matrix")
	ErrIllConditioned = errors.New("ill-conditioned matrix")
)
