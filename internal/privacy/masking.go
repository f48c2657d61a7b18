package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+5511999887766" -> "+*********7766"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	// Handle + prefix numbers specially
	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 { // Just "+"
			return phone
		}
		if len(phone) <= 5 { // "+1234" or shorter
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	// For numbers without + prefix
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskMessageID masks a Cloud API message id while keeping enough of the
// tail to correlate log lines
// Example: "wamid.HBgLNTUxMTk5OTg4Nzc2NhUCABIYFjNFQjA=" -> "wamid.****************QjA="
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	if strings.HasPrefix(messageID, "wamid.") {
		rest := messageID[len("wamid."):]
		return "wamid." + maskString(rest, 4)
	}

	return maskString(messageID, 8)
}

// MaskSessionID masks a session id of the form wa_id_<phone>, hiding the
// phone portion the same way MaskPhoneNumber does.
func MaskSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	if phone, ok := strings.CutPrefix(sessionID, "wa_id_"); ok {
		return "wa_id_" + MaskPhoneNumber(phone)
	}

	return maskString(sessionID, 4)
}

// MaskDocument masks a CPF/CNPJ showing only the last 2 digits.
func MaskDocument(doc string) string {
	if doc == "" {
		return ""
	}
	return maskString(doc, 2)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "phone", "phone_number", "from", "to":
			if s, ok := v.(string); ok {
				masked[k] = MaskPhoneNumber(s)
			} else {
				masked[k] = v
			}
		case "message_id", "messageId", "msg_id":
			if s, ok := v.(string); ok {
				masked[k] = MaskMessageID(s)
			} else {
				masked[k] = v
			}
		case "session", "session_id", "sessionId":
			if s, ok := v.(string); ok {
				masked[k] = MaskSessionID(s)
			} else {
				masked[k] = v
			}
		case "cpf", "cnpj", "document":
			if s, ok := v.(string); ok {
				masked[k] = MaskDocument(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
