package gitlib

import (
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Signature is an author or committer identity with its timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// HasIdentity reports whether the signature carries a name or an email.
func (s *Signature) HasIdentity() bool {
	return s != nil && (s.Name != "" || s.Email != "")
}

// signatureFrom copies a native signature. A nil input yields nil so callers
// can tell a missing identity apart from an empty one.
func signatureFrom(sig *git2go.Signature) *Signature {
	if sig == nil {
		return nil
	}

	return &Signature{
		Name:  sig.Name,
		Email: sig.Email,
		When:  sig.When,
	}
}
