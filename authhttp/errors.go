package authhttp

import (
	"errors"
	"time"
)

var errExpired = errors.New("authhttp: auth expired")

func nowMillis() int64 { return time.Now().UnixMilli() }
