package privacy

import (
	"testing"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Standard formats
		{"+5511999887766", "+*********7766"},
		{"5511999887766", "*********7766"},
		{"+447712345678", "+********5678"},
		{"447712345678", "********5678"},

		// Edge cases
		{"", ""},
		{"+", "+"},
		{"+1", "+*"},
		{"+123", "+***"},
		{"123", "***"},
		{"1234", "****"},
		{"12345", "*2345"},
		{"+12345", "+*2345"},
		{"+123456", "+**3456"},
	}

	for _, test := range tests {
		result := MaskPhoneNumber(test.input)
		if result != test.expected {
			t.Errorf("MaskPhoneNumber(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskMessageID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"wamid.ABCD1234", "wamid.****1234"},
		{"wamid.ab", "wamid.**"},
		{"plain-id-12345678", "*********12345678"},
		{"short", "*****"},
	}

	for _, test := range tests {
		result := MaskMessageID(test.input)
		if result != test.expected {
			t.Errorf("MaskMessageID(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskSessionID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"wa_id_5511999887766", "wa_id_*********7766"},
		{"wa_id_", "wa_id_"},
		{"something-else", "**********else"},
	}

	for _, test := range tests {
		result := MaskSessionID(test.input)
		if result != test.expected {
			t.Errorf("MaskSessionID(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskDocument(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"52998224725", "*********25"},
		{"11222333000181", "************81"},
		{"1", "*"},
	}

	for _, test := range tests {
		result := MaskDocument(test.input)
		if result != test.expected {
			t.Errorf("MaskDocument(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskString(t *testing.T) {
	tests := []struct {
		input    string
		keepLast int
		expected string
	}{
		{"", 4, ""},
		{"abcd", 4, "****"},
		{"abcdefgh", 4, "****efgh"},
		{"ab", 8, "**"},
	}

	for _, test := range tests {
		result := maskString(test.input, test.keepLast)
		if result != test.expected {
			t.Errorf("maskString(%q, %d) = %q, expected %q", test.input, test.keepLast, result, test.expected)
		}
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	if MaskSensitiveFields(nil) != nil {
		t.Error("expected nil for nil input")
	}

	fields := map[string]interface{}{
		"phone":      "+5511999887766",
		"from":       "5511999887766",
		"message_id": "wamid.ABCD1234",
		"session_id": "wa_id_5511999887766",
		"cpf":        "52998224725",
		"count":      42,
		"other":      "untouched",
	}

	masked := MaskSensitiveFields(fields)

	if masked["phone"] != "+*********7766" {
		t.Errorf("phone not masked: %v", masked["phone"])
	}
	if masked["from"] != "*********7766" {
		t.Errorf("from not masked: %v", masked["from"])
	}
	if masked["message_id"] != "wamid.****1234" {
		t.Errorf("message_id not masked: %v", masked["message_id"])
	}
	if masked["session_id"] != "wa_id_*********7766" {
		t.Errorf("session_id not masked: %v", masked["session_id"])
	}
	if masked["cpf"] != "*********25" {
		t.Errorf("cpf not masked: %v", masked["cpf"])
	}
	if masked["count"] != 42 {
		t.Errorf("count should be untouched: %v", masked["count"])
	}
	if masked["other"] != "untouched" {
		t.Errorf("other should be untouched: %v", masked["other"])
	}

	// Non-string values under sensitive keys pass through
	mixed := MaskSensitiveFields(map[string]interface{}{"phone": 123})
	if mixed["phone"] != 123 {
		t.Errorf("non-string phone should pass through: %v", mixed["phone"])
	}
}
