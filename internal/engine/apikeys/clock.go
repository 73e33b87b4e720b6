package apikeys

import "time"

// nowUnix is swapped out by tests that need deterministic expiry checks.
var nowUnix = func() int64 { return time.Now().Unix() }
