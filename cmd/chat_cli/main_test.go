package main

import (
	"strings"
	"testing"
)

func TestChatCommandDocumentsReceiveOnlyTyping(t *testing.T) {
	cmd := chatCmd()
	if !strings.Contains(cmd.Long, "never sends one") {
		t.Fatalf("chat help should say typing indicators are not sent: %q", cmd.Long)
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Fatal("chat requires a peer argument")
	}
}
