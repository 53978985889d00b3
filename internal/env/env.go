// Package env resolves the deployment environment once at startup.
// Production hardens the session cookie flags.
package env

import "os"

type Environment string

const (
	Local      Environment = "local"
	Production Environment = "production"

	Key string = "ENV"
)

func (e Environment) Valid() bool {
	switch e {
	case Local, Production:
		return true
	}
	return false
}

var Current = Local

func init() {
	Current = Environment(os.Getenv(Key))
	if !Current.Valid() {
		Current = Local
	}
}
