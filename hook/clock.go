package hook

import "time"

func nowFunc() time.Time { return time.Now() }

func sinceSeconds(start time.Time) float64 { return time.Since(start).Seconds() }
