package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/iliyamo/account-authority/internal/model"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.By(func(v interface{}) error {
			if s, _ := v.(string); len(s) > maxPasswordBytes {
				return errors.New("must be at most 72 bytes")
			}
			return nil
		}),
	}
}

// normalizeCandidate trims text fields so whitespace-only input counts as
// missing.
func normalizeCandidate(a model.NewAccount) model.NewAccount {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Address = strings.TrimSpace(a.Address)
	return a
}

func validateCandidate(a model.NewAccount) error {
	err := validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&a.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&a.Password, passwordRules()...),
		validation.Field(&a.DOB, validation.Required),
		validation.Field(&a.Address, validation.Required, validation.Length(1, 255)),
	)
	if err != nil {
		return badRequest("invalid account details", err)
	}
	return nil
}

func validatePassword(p string) error {
	if err := validation.Validate(p, passwordRules()...); err != nil {
		return badRequest("invalid password", err)
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(strings.TrimSpace(email), validation.Required, is.EmailFormat); err != nil {
		return badRequest("invalid email", err)
	}
	return nil
}
