package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@coach.app", "a@b.com", "Hello", "<p>hi</p>"))

	head, body, found := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, found)
	assert.Equal(t, "<p>hi</p>", body)

	lines := strings.Split(head, "\r\n")
	assert.Equal(t, []string{
		"From: noreply@coach.app",
		"To: a@b.com",
		"Subject: Hello",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}, lines)
}
