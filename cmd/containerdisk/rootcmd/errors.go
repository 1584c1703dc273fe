package rootcmd

import "errors"

var ErrInvalidArgs = errors.New("arguments invalid")
