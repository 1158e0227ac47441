package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigkaa/passlink/internal/domain/model"
)

// TestNotificationService_Render проверяет содержимое письма.
func TestNotificationService_Render(t *testing.T) {
	n, err := NewNotificationService(&fakeMailer{}, discardLogger())
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	name := `Ann <script>alert(1)</script>`
	link := &model.Link{ID: "abc", RecipientEmail: "ann@example.org", RecipientName: &name}
	msg, err := n.Render(link, "https://pass.example.org/reveal/abc")
	if err != nil {
		t.Fatalf("Render() вернул ошибку: %v", err)
	}

	if msg.To != "ann@example.org" || msg.ToName != name || msg.Subject == "" {
		t.Errorf("заголовки: %+v", msg)
	}
	if !strings.Contains(msg.Text, "https://pass.example.org/reveal/abc") {
		t.Error("текст письма не содержит ссылку")
	}
	if !strings.Contains(msg.HTML, `href="https://pass.example.org/reveal/abc"`) {
		t.Error("HTML письма не содержит ссылку")
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("имя получателя не экранировано в HTML")
	}
}

// TestNotificationService_SendLinkFailure — ошибка SMTP превращается в ErrDelivery.
func TestNotificationService_SendLinkFailure(t *testing.T) {
	m := &fakeMailer{err: errors.New("535 authentication failed")}
	n, err := NewNotificationService(m, discardLogger())
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	err = n.SendLink(context.Background(), &model.Link{ID: "abc", RecipientEmail: "ann@example.org"}, "https://x/reveal/abc")
	if !errors.Is(err, ErrDelivery) {
		t.Errorf("SendLink() = %v, ожидается ErrDelivery", err)
	}
}
