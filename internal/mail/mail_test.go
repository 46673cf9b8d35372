package mail

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/ticket-engine/internal/config"
)

func TestMessageIDIsDeterministic(t *testing.T) {
	a := MessageID("t1", "m1", "tickets.example.com")
	b := MessageID("t1", "m1", "tickets.example.com")
	if a != b {
		t.Fatalf("ids differ: %s vs %s", a, b)
	}
	if MessageID("t1", "m2", "tickets.example.com") == a {
		t.Fatal("different messages must not share an id")
	}
	pattern := regexp.MustCompile(`^<[0-9a-f]{20}\.t1@tickets\.example\.com>$`)
	if !pattern.MatchString(a) {
		t.Fatalf("unexpected shape: %s", a)
	}
}

func TestRootDiffersPerTicket(t *testing.T) {
	if RootMessageID("t1", "d") == RootMessageID("t2", "d") {
		t.Fatal("roots must differ per ticket")
	}
}

func TestReferencesHelpers(t *testing.T) {
	chain := []string{"<root@d>", "<a@d>", "<b@d>"}
	if got := ReferencesHeader(chain); got != "<root@d> <a@d> <b@d>" {
		t.Fatalf("references: %q", got)
	}
	if got := InReplyTo(chain); got != "<b@d>" {
		t.Fatalf("in-reply-to: %q", got)
	}
	if InReplyTo(nil) != "" {
		t.Fatal("empty chain should have no in-reply-to")
	}
}

func TestComposePlainText(t *testing.T) {
	body, err := compose(Message{
		From:       "support@example.com",
		To:         []string{"a@example.com"},
		Subject:    "Re: order",
		Text:       "hello",
		MessageID:  "<m@d>",
		References: []string{"<root@d>"},
		Date:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	out := string(body)
	for _, want := range []string{
		"Message-ID: <m@d>\r\n",
		"In-Reply-To: <root@d>\r\n",
		"References: <root@d>\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"\r\n\r\nhello",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("message missing %q:\n%s", want, out)
		}
	}
}

func TestComposeWithHTMLIsMultipart(t *testing.T) {
	html := "<p>hi</p>"
	body, err := compose(Message{From: "f@x", To: []string{"t@x"}, Text: "hi", HTML: &html, MessageID: "<m@d>"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	out := string(body)
	if !strings.Contains(out, "multipart/alternative; boundary=") || !strings.Contains(out, html) {
		t.Fatalf("expected multipart body:\n%s", out)
	}
}

func TestDisabledSender(t *testing.T) {
	sender := NewSender(config.MailConfig{}, nil)
	if err := sender.Send(context.Background(), Message{To: []string{"a@x"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSMTPSenderRequiresRecipients(t *testing.T) {
	sender := NewSender(config.MailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1}, nil)
	if err := sender.Send(context.Background(), Message{}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestSMTPSenderHonorsCancelledContext(t *testing.T) {
	sender := NewSender(config.MailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, Message{To: []string{"a@x"}}); err == nil {
		t.Fatal("expected dial error on cancelled context")
	}
}
