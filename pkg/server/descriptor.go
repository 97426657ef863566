package server

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/much-hall/gomuch/pkg/world"
)

// ConnState tracks the state of a TCP connection.
type ConnState int

const (
	ConnLogin     ConnState = iota // Pre-login: awaiting connect/create/guest
	ConnConnected                  // Attached to a world session
)

// Descriptor represents a single TCP client connection. After login it is
// bound to a world session and a pump goroutine renders the session's
// delivery queue onto the socket.
type Descriptor struct {
	ID       int
	Conn     net.Conn
	Reader   *bufio.Reader
	State    ConnState
	Session  *world.Session // nil until logged in
	Addr     string
	ConnTime time.Time
	Retries  int

	BytesSent int
	BytesRecv int

	mu     sync.Mutex
	closed bool
}

// NewDescriptor wraps a net.Conn into a Descriptor.
func NewDescriptor(id int, conn net.Conn) *Descriptor {
	return &Descriptor{
		ID:       id,
		Conn:     conn,
		Reader:   bufio.NewReaderSize(conn, 4096),
		State:    ConnLogin,
		Addr:     conn.RemoteAddr().String(),
		ConnTime: time.Now(),
		Retries:  3,
	}
}

// Send writes one line to the client, ensuring a telnet \r\n ending.
func (d *Descriptor) Send(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\r\n"
	}
	d.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	n, _ := d.Conn.Write([]byte(msg))
	d.BytesSent += n
}

// SendLines writes each line in order.
func (d *Descriptor) SendLines(lines []string) {
	for _, line := range lines {
		d.Send(line)
	}
}

// SendNoNewline writes a string without appending a newline. Used for
// multi-line text files that carry their own endings.
func (d *Descriptor) SendNoNewline(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	n, _ := d.Conn.Write([]byte(msg))
	d.BytesSent += n
}

// Close shuts down the connection.
func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.Conn.Close()
	}
}

// IsClosed returns whether the connection has been closed.
func (d *Descriptor) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// pump drains the session's delivery queue onto the socket until the queue
// closes, then performs a final drain (farewell notices) and closes the
// connection. Runs as a goroutine for the lifetime of the session.
func (d *Descriptor) pump() {
	viewer := d.Session.Identity.Name
	q := d.Session.Queue()
	for {
		_, open := <-q.Wake()
		for _, ev := range q.DrainAll() {
			if line := ev.Render(viewer); line != "" {
				d.Send(line)
			}
		}
		if !open {
			d.Close()
			return
		}
	}
}

// stripTelnet removes telnet IAC command sequences and stray control bytes
// from input.
func stripTelnet(s string) string {
	var buf strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == 0xFF {
			// IAC plus up to two option bytes; a truncated sequence
			// at end of input is dropped too.
			if i+2 < len(s) {
				i += 3
			} else {
				i = len(s)
			}
			continue
		}
		if s[i] < 32 && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			i++
			continue
		}
		buf.WriteByte(s[i])
		i++
	}
	return buf.String()
}
