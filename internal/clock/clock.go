package clock

import "time"

// Clock provides time to the services.
type Clock interface {
	Now() time.Time
}

type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }
