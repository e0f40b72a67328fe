package domain

// User is the directory view of a portal account. Deleted users keep their
// order history; only their display data goes away.
type User struct {
	ID           string
	ScreenName   string
	EmailAddress string
	Locale       string
	Deleted      bool
}

// DisplayScreenName returns nil for deleted users or users without a name.
func (u User) DisplayScreenName() *string {
	if u.Deleted || u.ScreenName == "" {
		return nil
	}
	name := u.ScreenName
	return &name
}
