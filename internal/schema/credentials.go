package schema

// Credentials is the stored session: the bearer token pair plus the
// profile returned at login. Persisted in the local store so a restarted
// process resumes the same session without re-authenticating.
type Credentials struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	User         Profile `json:"user"`
}

// Valid reports whether the credentials carry a usable token pair.
func (c *Credentials) Valid() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}
