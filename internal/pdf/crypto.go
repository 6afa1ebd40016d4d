package pdf

import (
	"errors"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPasswordRequired is returned when a PDF is encrypted and the credentials do not open it.
var ErrPasswordRequired = errors.New("pdf is encrypted: password required")

// Credentials holds the passwords for an encrypted PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// configuration builds a pdfcpu configuration carrying the passwords. A nil receiver
// yields the default configuration.
func (c *Credentials) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if c == nil {
		return conf
	}
	if c.UserPassword != "" {
		conf.UserPW = c.UserPassword
	}
	if c.OwnerPassword != "" {
		conf.OwnerPW = c.OwnerPassword
	}
	return conf
}

// IsPasswordError reports whether err looks like a pdfcpu encryption failure.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPasswordRequired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"password", "encrypted", "decrypt"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
