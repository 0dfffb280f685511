package email

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekops/unifi-reporter/internal/model"
)

// fakeSMTPServer accepts exactly one connection and speaks the minimal
// EHLO/MAIL/RCPT/DATA sequence net/smtp.SendMail issues, recording the
// DATA payload (headers and body) so the test can assert on its content.
func fakeSMTPServer(t *testing.T) (addr string, received chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	received = make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		w := conn

		w.Write([]byte("220 localhost ESMTP\r\n"))
		var body strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			trimmed := strings.TrimRight(line, "\r\n")
			if inData {
				if trimmed == "." {
					w.Write([]byte("250 OK\r\n"))
					received <- body.String()
					inData = false
					continue
				}
				body.WriteString(trimmed + "\n")
				continue
			}
			switch {
			case strings.HasPrefix(trimmed, "EHLO"), strings.HasPrefix(trimmed, "HELO"):
				w.Write([]byte("250 localhost\r\n"))
			case strings.HasPrefix(trimmed, "MAIL FROM"):
				w.Write([]byte("250 OK\r\n"))
			case strings.HasPrefix(trimmed, "RCPT TO"):
				w.Write([]byte("250 OK\r\n"))
			case trimmed == "DATA":
				w.Write([]byte("354 Start mail input\r\n"))
				inData = true
			case trimmed == "QUIT":
				w.Write([]byte("221 Bye\r\n"))
				return
			}
		}
	}()

	return ln.Addr().String(), received
}

func TestDelivery_SendsRenderedReportToAllRecipientsAsBCC(t *testing.T) {
	addr, received := fakeSMTPServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := New(Config{
		Host:       host,
		Port:       port,
		From:       "reporter@example.com",
		Recipients: []string{"ops@example.com", "oncall@example.com"},
	}, nil)

	report := model.Report{SiteName: "HQ"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, d.Deliver(ctx, report))

	select {
	case body := <-received:
		assert.Contains(t, body, "Site: HQ")
		assert.NotContains(t, body, "ops@example.com")
		assert.NotContains(t, body, "oncall@example.com")
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a message")
	}
}
