package loader

import "errors"

var errResultUnavailable = errors.New("loader: fetch result unavailable after lock release")
