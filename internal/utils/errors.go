package utils

import "errors"

var ErrSlugExhausted = errors.New("no free slug")
