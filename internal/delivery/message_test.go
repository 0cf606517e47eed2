package delivery

import "testing"

func TestMessage_IsBlank(t *testing.T) {
	tests := []struct {
		msg  Message
		want bool
	}{
		{Message{}, true},
		{SystemMessage(" \n\t"), true},
		{AssistantMessage("", "FIND_TASK"), true},
		{UserMessage("hi"), false},
	}
	for _, tt := range tests {
		if got := tt.msg.IsBlank(); got != tt.want {
			t.Errorf("%+v.IsBlank() = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestConstructors(t *testing.T) {
	if m := UserMessage("q"); m.Author != AuthorUser || m.Content != "q" {
		t.Errorf("UserMessage() = %+v", m)
	}
	if m := AssistantMessage("a", "EXPLAIN_TASK"); m.Author != AuthorAssistant || m.Detail != "EXPLAIN_TASK" {
		t.Errorf("AssistantMessage() = %+v", m)
	}
	if m := SystemMessage("s"); m.Author != AuthorSystem {
		t.Errorf("SystemMessage() = %+v", m)
	}
}
