// Package conversation derives read-side projections from a flat message list.
//
// Nothing here is stored. Callers recompute the projections from the last fetched
// list and replace the previous result wholesale.
package conversation

import (
	"strings"

	"dashchat/internal/models"
	"dashchat/pkg/constants"
)

// Included reports whether a message takes part in aggregation. Messages with no
// content are malformed for display purposes and are dropped silently.
func Included(m models.Message) bool {
	return m.Content != ""
}

func normalise(m models.Message) models.Message {
	if strings.TrimSpace(m.MessageType) == "" {
		m.MessageType = models.MessageTypeText
	}
	return m
}

// KeyFunc extracts a grouping key from a message.
type KeyFunc func(m models.Message) string

var keyFuncs = map[string]KeyFunc{
	constants.GroupBySentDate:    func(m models.Message) string { return m.Day() },
	constants.GroupBySender:      func(m models.Message) string { return m.SenderID },
	constants.GroupByRecipient:   func(m models.Message) string { return m.RecipientID },
	constants.GroupByTask:        func(m models.Message) string { return m.TaskID },
	constants.GroupByMessageType: func(m models.Message) string { return m.MessageType },
	constants.GroupByStatus:      func(m models.Message) string { return string(m.Status) },
}

// KeyFor returns the extractor for a grouping key name. Unknown or empty names
// fall back to the calendar day.
func KeyFor(name string) KeyFunc {
	if fn, ok := keyFuncs[name]; ok {
		return fn
	}
	return keyFuncs[constants.GroupBySentDate]
}

// SupportedKeys lists the accepted grouping key names.
func SupportedKeys() []string {
	return []string{
		constants.GroupBySentDate,
		constants.GroupBySender,
		constants.GroupByRecipient,
		constants.GroupByTask,
		constants.GroupByMessageType,
		constants.GroupByStatus,
	}
}

// GroupBy partitions messages by key. Groups appear in the order their key was
// first seen and messages keep their input order within a group. No sorting is
// applied, so callers that want calendar order must sort beforehand.
func GroupBy(messages []models.Message, key string) []models.DateGroup {
	return GroupByFunc(messages, KeyFor(key))
}

// GroupByFunc is GroupBy with a caller supplied key extractor.
func GroupByFunc(messages []models.Message, keyFn KeyFunc) []models.DateGroup {
	groups := make([]models.DateGroup, 0)
	index := make(map[string]int)

	for _, m := range messages {
		if !Included(m) {
			continue
		}
		m = normalise(m)
		k := keyFn(m)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, models.DateGroup{Key: k})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

// Conversations splits messages into one conversation per counterpart of selfID,
// in first-seen order. Task channel messages share a single conversation per task.
func Conversations(messages []models.Message, selfID string) []models.Conversation {
	convs := make([]models.Conversation, 0)
	index := make(map[string]int)

	for _, m := range messages {
		if !Included(m) {
			continue
		}
		m = normalise(m)
		k := m.Counterpart(selfID)
		i, ok := index[k]
		if !ok {
			i = len(convs)
			index[k] = i
			convs = append(convs, models.Conversation{CounterpartID: k})
		}
		convs[i].Messages = append(convs[i].Messages, m)
		if m.Unread && m.SenderID != selfID {
			convs[i].UnreadCount++
		}
	}
	return convs
}

// Days groups a conversation's messages by calendar day.
func Days(c models.Conversation) []models.DateGroup {
	return GroupBy(c.Messages, constants.GroupBySentDate)
}

// Find returns the conversation with counterpartID, if any.
func Find(convs []models.Conversation, counterpartID string) (models.Conversation, bool) {
	for _, c := range convs {
		if c.CounterpartID == counterpartID {
			return c, true
		}
	}
	return models.Conversation{}, false
}
