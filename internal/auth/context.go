package auth

import "github.com/wb-go/wbf/ginext"

const userKey = "filmclub.user"

// WithUser attaches a verified user to the request context.
func WithUser(c *ginext.Context, u *User) {
	c.Set(userKey, u)
}

// CurrentUser returns the user stored by WithUser, or nil.
func CurrentUser(c *ginext.Context) *User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*User)
	return user
}
