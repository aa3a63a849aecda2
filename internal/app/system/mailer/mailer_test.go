package mailer

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type captured struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func capture(c *captured, err error) SendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*c = captured{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return err
	}
}

func testConfig() Config {
	return Config{Host: "smtp.test", Port: 2525, User: "u", Pass: "p", From: "noreply@test.edu", FromName: "Capstone"}
}

func TestSend_PlainText(t *testing.T) {
	var c captured
	m := New(testConfig(), zap.NewNop()).WithSendFunc(capture(&c, nil))

	err := m.Send(Email{To: "student@test.edu", Subject: "Team approved", TextBody: "Your team was approved."})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if c.addr != "smtp.test:2525" {
		t.Errorf("addr: got %q", c.addr)
	}
	if c.auth == nil {
		t.Error("expected PLAIN auth when a user is configured")
	}
	if len(c.to) != 1 || c.to[0] != "student@test.edu" {
		t.Errorf("to: got %v", c.to)
	}
	for _, want := range []string{"Message-ID: <", "Subject: Team approved", `"Capstone" <noreply@test.edu>`, "text/plain", "Your team was approved."} {
		if !strings.Contains(c.msg, want) {
			t.Errorf("message missing %q:\n%s", want, c.msg)
		}
	}
}

func TestSend_Multipart(t *testing.T) {
	var c captured
	m := New(testConfig(), zap.NewNop()).WithSendFunc(capture(&c, nil))

	e := BuildNotice(NoticeData{SiteName: "Capstone", Heading: "Assignment confirmed", Lines: []string{"Mentor: Dr. Rao"}})
	e.To = "student@test.edu"
	if err := m.Send(e); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(c.msg, "multipart/alternative") || !strings.Contains(c.msg, "text/html") {
		t.Errorf("expected multipart message, got:\n%s", c.msg)
	}
}

func TestSend_Errors(t *testing.T) {
	var c captured
	tests := []struct {
		name string
		cfg  Config
		to   string
		send error
	}{
		{"no recipient", testConfig(), "", nil},
		{"no host", Config{From: "x@test.edu"}, "a@test.edu", nil},
		{"transport", testConfig(), "a@test.edu", errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cfg, zap.NewNop()).WithSendFunc(capture(&c, tt.send))
			if err := m.Send(Email{To: tt.to, Subject: "s", TextBody: "b"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildNotice(t *testing.T) {
	e := BuildNotice(NoticeData{
		SiteName:  "Capstone",
		Recipient: "Asha",
		Heading:   "Team rejected",
		Feedback:  "<b>Pick approved projects</b>",
		LinkURL:   "https://capstone.test/teams/1",
		LinkLabel: "View team",
	})
	if e.Subject != "[Capstone] Team rejected" {
		t.Errorf("Subject: got %q", e.Subject)
	}
	if !strings.Contains(e.TextBody, "Hello Asha") || !strings.Contains(e.TextBody, "View team: https://capstone.test/teams/1") {
		t.Errorf("TextBody: got %q", e.TextBody)
	}
	if strings.Contains(e.HTMLBody, "<b>Pick") {
		t.Error("HTML body should escape feedback")
	}
}
