package userservice

import (
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// set hashes pwd. The plain text is kept only for the lifetime of the request.
func (p *Password) set(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcryptCost)
	if err != nil {
		return err
	}

	p.Plain = pwd
	p.hash = hash

	return nil
}
