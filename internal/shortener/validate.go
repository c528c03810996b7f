package shortener

import (
	"net/url"
	"strings"
)

const (
	maxCodeLength       = 64
	minCustomCodeLength = 6
	maxCustomCodeLength = 32
	maxURLLength        = 2048
)

// ValidateCode checks that code is something a link could have been stored under:
// at least six printable ASCII characters without spaces or slashes.
func ValidateCode(code Code) error {
	verr := &ValidationError{}

	switch {
	case len(code) < DefaultCodeLength:
		verr.Add("shortCode", "must be at least 6 characters", string(code))
	case len(code) > maxCodeLength:
		verr.Add("shortCode", "must be at most 64 characters", string(code))
	default:
		for i := range len(code) {
			c := code[i]
			if c <= ' ' || c > '~' || c == '/' {
				verr.Add("shortCode", "must contain printable ASCII characters only", string(code))

				break
			}
		}
	}

	return verr.Err()
}

// Validate reports every malformed field of the request.
func (r *CreateRequest) Validate() error {
	verr := &ValidationError{}

	validateLongURL(verr, r.LongURL)

	if r.OwnerID <= 0 {
		verr.Add("ownerId", "must be a positive owner id", r.OwnerID)
	}

	if r.CustomCode != "" {
		validateCustomCode(verr, r.CustomCode)
	}

	for _, id := range r.CategoryIDs {
		if id <= 0 {
			verr.Add("categories", "category ids must be positive", id)

			break
		}
	}

	return verr.Err()
}

func validateLongURL(verr *ValidationError, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add("longUrl", "is required", raw)

		return
	}

	if len(raw) > maxURLLength {
		verr.Add("longUrl", "must be at most 2048 characters", len(raw))

		return
	}

	u, err := url.Parse(raw)
	if err != nil {
		verr.Add("longUrl", "is not a valid url", raw)

		return
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		verr.Add("longUrl", "must use the http or https scheme", raw)
	}

	if u.Host == "" {
		verr.Add("longUrl", "must include a host", raw)
	}
}

func validateCustomCode(verr *ValidationError, code Code) {
	if len(code) < minCustomCodeLength || len(code) > maxCustomCodeLength {
		verr.Add("customCode", "must be 6-32 characters", string(code))

		return
	}

	for i := range len(code) {
		c := code[i]
		if !isLetter(c) && (c < '0' || c > '9') && c != '-' && c != '_' {
			verr.Add("customCode", "may contain letters, digits, '-' and '_' only", string(code))

			return
		}
	}
}
