package mail

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kanet1105/linkdrive/app/digest"
)

type smtpSession struct {
	Auth string
	From string
	To   []string
	Data string
}

// fakeServer implements just enough of the SMTP protocol for the client
// to complete a transaction. It listens on a loopback address, which is
// what lets PLAIN auth proceed without TLS.
type fakeServer struct {
	listener net.Listener

	mu       sync.Mutex
	sessions []smtpSession
	rejects  int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	server := &fakeServer{listener: listener}
	go server.serve()
	t.Cleanup(func() { listener.Close() })

	return server
}

func (s *fakeServer) hostPort(t *testing.T) (string, string) {
	t.Helper()

	host, port, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}

func (s *fakeServer) lastSession(t *testing.T) smtpSession {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) == 0 {
		t.Fatal("Expected at least one completed SMTP session")
	}
	return s.sessions[len(s.sessions)-1]
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	write := func(line string) { fmt.Fprintf(conn, "%s\r\n", line) }

	write("220 fake.local ESMTP")

	var session smtpSession
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		cmd := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			write("250-fake.local")
			write("250 AUTH PLAIN")
		case strings.HasPrefix(cmd, "AUTH"):
			session.Auth = line
			write("235 2.7.0 Authentication successful")
		case strings.HasPrefix(cmd, "MAIL"):
			s.mu.Lock()
			reject := s.rejects > 0
			if reject {
				s.rejects--
			}
			s.mu.Unlock()

			if reject {
				write("451 4.3.0 Temporary failure")
				continue
			}
			session.From = line
			write("250 OK")
		case strings.HasPrefix(cmd, "RCPT"):
			session.To = append(session.To, line)
			write("250 OK")
		case cmd == "DATA":
			write("354 End data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				dataLine, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(dataLine, "\r\n") == "." {
					break
				}
				data.WriteString(dataLine)
			}
			session.Data = data.String()
			write("250 OK")

			s.mu.Lock()
			s.sessions = append(s.sessions, session)
			s.mu.Unlock()
			session = smtpSession{}
		case cmd == "QUIT":
			write("221 Bye")
			return
		case cmd == "RSET":
			session = smtpSession{}
			write("250 OK")
		default:
			write("250 OK")
		}
	}
}

func testMessage() digest.Message {
	return digest.Message{
		Recipient: "user@example.com",
		Subject:   "Paper digest 2026-W34 (2 items)",
		Body:      "- A: https://example.com/a\n- B: https://example.com/b\n",
		BuiltAt:   time.Date(2026, 8, 22, 6, 30, 0, 0, time.UTC),
	}
}

func newTestMailer(t *testing.T, server *fakeServer) *Mailer {
	t.Helper()

	host, port := server.hostPort(t)
	return NewMailer(Config{
		Host:    host,
		Port:    port,
		From:    "digest@example.com",
		Account: "digest@example.com",
		Secret:  "hunter2",
		Timeout: 5 * time.Second,
	})
}

func TestMailerSend(t *testing.T) {
	server := newFakeServer(t)
	mailer := newTestMailer(t, server)

	if err := mailer.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Expected send to succeed, got: %v", err)
	}

	session := server.lastSession(t)

	if !strings.Contains(session.From, "digest@example.com") {
		t.Errorf("Expected sender in MAIL command, got '%s'", session.From)
	}
	if len(session.To) != 1 || !strings.Contains(session.To[0], "user@example.com") {
		t.Errorf("Expected single recipient, got %v", session.To)
	}

	for _, header := range []string{
		"From: digest@example.com",
		"To: user@example.com",
		"Subject: Paper digest 2026-W34 (2 items)",
		"Date: Sat, 22 Aug 2026 06:30:00 +0000",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"Message-ID: <",
	} {
		if !strings.Contains(session.Data, header) {
			t.Errorf("Expected header %q in message data:\n%s", header, session.Data)
		}
	}

	if !strings.Contains(session.Data, "- A: https://example.com/a") {
		t.Errorf("Expected body in message data:\n%s", session.Data)
	}
}

func TestMailerSendAuthenticates(t *testing.T) {
	server := newFakeServer(t)
	mailer := newTestMailer(t, server)

	if err := mailer.Send(context.Background(), testMessage()); err != nil {
		t.Fatal(err)
	}

	session := server.lastSession(t)
	if session.Auth == "" {
		t.Fatal("Expected AUTH command to be sent")
	}

	parts := strings.Fields(session.Auth)
	if len(parts) != 3 || strings.ToUpper(parts[1]) != "PLAIN" {
		t.Fatalf("Expected 'AUTH PLAIN <payload>', got '%s'", session.Auth)
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(decoded), "digest@example.com") || !strings.Contains(string(decoded), "hunter2") {
		t.Error("Expected credentials in AUTH payload")
	}
}

func TestMailerSendServerRejects(t *testing.T) {
	server := newFakeServer(t)
	server.mu.Lock()
	server.rejects = 1
	server.mu.Unlock()

	mailer := newTestMailer(t, server)

	if err := mailer.Send(context.Background(), testMessage()); err == nil {
		t.Error("Expected error when server rejects the sender")
	}

	// A fresh attempt on a fresh connection succeeds.
	if err := mailer.Send(context.Background(), testMessage()); err != nil {
		t.Errorf("Expected second attempt to succeed, got: %v", err)
	}
}

func TestMailerSendConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, port, _ := net.SplitHostPort(listener.Addr().String())
	listener.Close()

	mailer := NewMailer(Config{
		Host:    host,
		Port:    port,
		From:    "digest@example.com",
		Account: "digest@example.com",
		Secret:  "hunter2",
		Timeout: time.Second,
	})

	if err := mailer.Send(context.Background(), testMessage()); err == nil {
		t.Error("Expected error for refused connection")
	}
}

func TestMailerSendCancelledContext(t *testing.T) {
	server := newFakeServer(t)
	mailer := newTestMailer(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := mailer.Send(ctx, testMessage()); err == nil {
		t.Error("Expected error on cancelled context")
	}
}

func TestRenderEncodesSubject(t *testing.T) {
	mailer := NewMailer(Config{Host: "smtp.example.com", From: "digest@example.com"})

	message := testMessage()
	message.Subject = "Résumé digest"

	data := mailer.render(message)

	if !strings.Contains(data, "Subject: =?utf-8?q?") {
		t.Errorf("Expected Q-encoded subject, got:\n%s", data)
	}
	if !strings.Contains(data, "\r\n\r\n") {
		t.Error("Expected blank line between headers and body")
	}
	if strings.Contains(strings.ReplaceAll(data, "\r\n", ""), "\n") {
		t.Error("Expected all line breaks to be CRLF")
	}
}
