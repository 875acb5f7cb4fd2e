package privacy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"dashchat/internal/constants"
)

// MaskUserID masks a user identifier
// Example: "user123456" -> "******3456"
func MaskUserID(userID string) string {
	return maskString(userID, constants.DefaultUserIDMaskLength)
}

// MaskMessageID shows the last 8 characters of a message id
func MaskMessageID(messageID string) string {
	return maskString(messageID, 8)
}

// MaskToken hides a bearer token entirely except for its length
// Example: "eyJhbGciOi...abc" -> "[token:112]"
func MaskToken(token string) string {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ""
	}
	return fmt.Sprintf("[token:%d]", len(token))
}

// MaskEmail keeps the first character of the local part and the domain
// Example: "olga@example.com" -> "o***@example.com"
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return maskString(email, 0)
	}
	if local == "" {
		return "@" + domain
	}
	r, size := utf8.DecodeRuneInString(local)
	return string(r) + strings.Repeat("*", utf8.RuneCountInString(local[size:])) + "@" + domain
}

// MaskContent replaces message content with a short preview and its length
// Example: "see you at the meeting tomorrow" -> "see you at t… (31 chars)"
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	n := utf8.RuneCountInString(content)
	if n <= constants.DefaultContentPreview {
		return fmt.Sprintf("[%d chars]", n)
	}
	preview := []rune(content)[:constants.DefaultContentPreview]
	return fmt.Sprintf("%s… (%d chars)", string(preview), n)
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

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		if !isString {
			masked[k] = v
			continue
		}

		switch k {
		case "user_id", "userId", "sender_id", "recipient_id", "recipientId", "counterpart_id", "viewer_id":
			masked[k] = MaskUserID(s)
		case "message_id", "messageId", "msg_id":
			masked[k] = MaskMessageID(s)
		case "token", "authorization":
			masked[k] = MaskToken(s)
		case "email":
			masked[k] = MaskEmail(s)
		case "content", "draft", "body":
			masked[k] = MaskContent(s)
		default:
			masked[k] = v
		}
	}

	return masked
}
