package delivery

import "strings"

// Author identifies who produced a chat message.
type Author string

// Message authors.
const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
	AuthorSystem    Author = "system"
)

// Message is the payload handed to a client session.
type Message struct {
	Author  Author `json:"author"`
	Content string `json:"content"`
	Detail  string `json:"detail,omitempty"`
}

// IsBlank reports whether the message has no visible content.
func (m Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// UserMessage echoes a question typed by the user.
func UserMessage(content string) Message {
	return Message{Author: AuthorUser, Content: content}
}

// AssistantMessage carries an answer; detail holds the intent token.
func AssistantMessage(content, detail string) Message {
	return Message{Author: AuthorAssistant, Content: content, Detail: detail}
}

// SystemMessage carries a failure notice.
func SystemMessage(content string) Message {
	return Message{Author: AuthorSystem, Content: content}
}
