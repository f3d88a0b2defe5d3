package coordinator

import "errors"

var (
	errAlreadyLoaded       = errors.New("manifest already loaded")
	errNotLoaded           = errors.New("load must be called before attach")
	errStreamsNotAvailable = errors.New("no mutually available play window across selected streams")
	errNoPlayableStream    = errors.New("no enabled stream remains after applying restrictions")
)
