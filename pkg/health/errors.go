package health

import "github.com/brokercore/brokercore/pkg/errors"

var (
	errInvalidInterval           = errors.New(errors.CodeConfigInvalid, "health interval must be at least 5s", nil)
	errInvalidConnectivityTimeout = errors.New(errors.CodeConfigInvalid, "health connectivity_timeout must be positive", nil)
)
