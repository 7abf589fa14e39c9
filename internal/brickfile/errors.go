package brickfile

import "errors"

var errHeaderSizeChanged = errors.New("brickfile: final header size differs from reserved placeholder size")
var errBufferTooSmall = errors.New("brickfile: destination buffer too small")
