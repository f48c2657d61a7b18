package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"salesbridge/internal/constants"
	"salesbridge/internal/errors"
)

// ValidatePhoneNumber validates phone number format and length
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")

	if len(cleaned) < constants.MinPhoneDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneDigits))
	}

	if len(cleaned) > constants.MaxPhoneDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneDigits))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageID validates message ID format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message ID cannot be empty")
	}

	if len(messageID) > constants.MaxMessageIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxMessageIDLength))
	}

	// Check for control characters that could cause issues
	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid content length")
	}

	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// OnlyDigits strips everything but ASCII digits from a document number.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidCPF reports whether the given string is a valid Brazilian CPF.
// Formatting characters are ignored; both check digits are verified.
func IsValidCPF(cpf string) bool {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return false
	}
	if allSameDigit(digits) {
		return false
	}

	d := toDigitSlice(digits)

	sum := 0
	for i := 1; i <= 9; i++ {
		sum += d[i-1] * (11 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 || rest == 11 {
		rest = 0
	}
	if rest != d[9] {
		return false
	}

	sum = 0
	for i := 1; i <= 10; i++ {
		sum += d[i-1] * (12 - i)
	}
	rest = (sum * 10) % 11
	if rest == 10 || rest == 11 {
		rest = 0
	}
	return rest == d[10]
}

// IsValidCNPJ reports whether the given string is a valid Brazilian CNPJ.
func IsValidCNPJ(cnpj string) bool {
	digits := OnlyDigits(cnpj)
	if len(digits) != 14 {
		return false
	}
	if allSameDigit(digits) {
		return false
	}

	d := toDigitSlice(digits)

	if cnpjCheckDigit(d, 12) != d[12] {
		return false
	}
	return cnpjCheckDigit(d, 13) == d[13]
}

// cnpjCheckDigit computes the check digit over the first size digits.
// Weights start at size-7 and step down to 2, then wrap back to 9.
func cnpjCheckDigit(d []int, size int) int {
	pos := size - 7
	sum := 0
	for i := 0; i < size; i++ {
		sum += d[i] * pos
		pos--
		if pos < 2 {
			pos = 9
		}
	}
	if sum%11 < 2 {
		return 0
	}
	return 11 - sum%11
}

// IsValidDocument accepts either a CPF or a CNPJ.
func IsValidDocument(doc string) bool {
	digits := OnlyDigits(doc)
	switch len(digits) {
	case 11:
		return IsValidCPF(digits)
	case 14:
		return IsValidCNPJ(digits)
	default:
		return false
	}
}

// FormatCPF renders an 11-digit CPF as XXX.XXX.XXX-XX.
// Input that is not 11 digits is returned unchanged.
func FormatCPF(cpf string) string {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return cpf
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
}

// FormatCNPJ renders a 14-digit CNPJ as XX.XXX.XXX/XXXX-XX.
// Input that is not 14 digits is returned unchanged.
func FormatCNPJ(cnpj string) string {
	digits := OnlyDigits(cnpj)
	if len(digits) != 14 {
		return cnpj
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}

func allSameDigit(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

func toDigitSlice(digits string) []int {
	d := make([]int, len(digits))
	for i := 0; i < len(digits); i++ {
		d[i] = int(digits[i] - '0')
	}
	return d
}
