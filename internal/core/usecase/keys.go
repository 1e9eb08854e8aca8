package usecase

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// Object key folders. Keys are <folder>/<email>_<name>.
const (
	DocumentsFolder = "documents"
	TextsFolder     = "extractedtexts"
)

func documentPrefix(email string) string {
	return DocumentsFolder + "/" + email + "_"
}

func textPrefix(email string) string {
	return TextsFolder + "/" + email + "_"
}

func documentKey(email, name string) string {
	return documentPrefix(email) + name
}

func textKey(email, name string) string {
	return textPrefix(email) + strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
}

// normalizeEmail validates the identity used as the storage key prefix.
// The domain part may not contain "_" or a second "@", so "<email>_" never
// prefixes the keys of another identity.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "identity", errors.New("email is required"))
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, "/\\ \t\n") {
		return "", domain.WrapError(domain.ErrInvalidInput, "identity", errors.New("email is malformed"))
	}
	if strings.ContainsAny(email[at+1:], "_@") {
		return "", domain.WrapError(domain.ErrInvalidInput, "identity", errors.New("email domain is malformed"))
	}
	return email, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
