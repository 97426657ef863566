package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/much-hall/gomuch/pkg/world"
)

// WelcomeText is the default pre-login screen, used when no welcome.txt is
// provided.
const WelcomeText = `
   ____       __  __            _
  / ___| ___ |  \/  |_   _  ___| |__
 | |  _ / _ \| |\/| | | | |/ __| '_ \
 | |_| | (_) | |  | | |_| | (__| | | |
  \____|\___/|_|  |_|\__,_|\___|_| |_|

"connect <name> <password>" to log in to your account.
"create <name> <password>" to make a new account.
"connect guest" to look around anonymously.
"WHO" to see who is online.
"QUIT" to disconnect.

`

// Server runs the persistent line-oriented TCP transport (cleartext and
// TLS) and, when enabled, the web gateway.
type Server struct {
	Conf *Conf
	Game *Game

	nextID      atomic.Int64
	listener    net.Listener
	tlsListener net.Listener
	webServer   *WebServer
}

// NewServer creates a server around a prepared game.
func NewServer(game *Game) *Server {
	return &Server{Conf: game.Conf, Game: game}
}

// Start begins listening on every enabled transport and blocks until all
// listeners stop.
func (s *Server) Start() error {
	if !s.Conf.IsCleartext() && !s.Conf.TLS && !s.Conf.WebEnabled {
		return fmt.Errorf("all listeners are disabled; nothing to listen on")
	}

	s.Game.StartSweeps()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	if s.Conf.IsCleartext() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Conf.Port))
			if err != nil {
				errCh <- fmt.Errorf("cleartext listener: %w", err)
				return
			}
			s.listener = ln
			log.Printf("Listening (cleartext) on port %d", s.Conf.Port)
			s.acceptLoop(ln)
		}()
	}

	if s.Conf.TLS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cert, err := tls.LoadX509KeyPair(s.Conf.TLSCert, s.Conf.TLSKey)
			if err != nil {
				errCh <- fmt.Errorf("TLS cert load: %w", err)
				return
			}
			tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
			ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.Conf.TLSPort), tlsCfg)
			if err != nil {
				errCh <- fmt.Errorf("TLS listener: %w", err)
				return
			}
			s.tlsListener = ln
			log.Printf("Listening (TLS) on port %d", s.Conf.TLSPort)
			s.acceptLoop(ln)
		}()
	}

	if s.Conf.WebEnabled {
		s.webServer = NewWebServer(s.Game, s.Conf)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.webServer.Start(); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	// Close listeners when the game is told to stop.
	go func() {
		<-s.Game.Done()
		s.closeListeners()
	}()

	select {
	case err := <-errCh:
		return err
	default:
	}

	wg.Wait()
	return nil
}

// acceptLoop accepts connections on the given listener until it is closed.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Stop stops the game (which snapshots and closes the listeners).
func (s *Server) Stop() {
	s.Game.Stop()
	s.closeListeners()
}

func (s *Server) closeListeners() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.tlsListener != nil {
		s.tlsListener.Close()
	}
	if s.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.webServer.Stop(ctx)
	}
}

// handleConnection manages a single TCP client lifecycle: login screen,
// attachment to a world session, then the read loop.
func (s *Server) handleConnection(conn net.Conn) {
	d := NewDescriptor(int(s.nextID.Add(1)), conn)
	log.Printf("[%d] New connection from %s", d.ID, d.Addr)

	defer func() {
		if d.Session != nil {
			// Covers socket drops; a deliberate quit already removed the
			// session and this is a no-op.
			s.Game.World.Disconnect(d.Session.ID, world.ReasonTransport)
		}
		d.Close()
		log.Printf("[%d] Connection closed from %s", d.ID, d.Addr)
	}()

	if txt := s.Game.textOrEmpty("welcome"); txt != "" {
		d.SendNoNewline(txt)
	} else {
		d.SendNoNewline(WelcomeText)
	}

	scanner := bufio.NewScanner(d.Conn)
	scanner.Buffer(make([]byte, 8192), 8192)

	for scanner.Scan() {
		if d.IsClosed() {
			return
		}
		line := scanner.Text()
		d.BytesRecv += len(line) + 1
		line = strings.TrimRight(stripTelnet(line), "\r\n")

		if d.State == ConnLogin {
			s.handleLoginCommand(d, line)
		} else {
			s.handleGameCommand(d, line)
		}

		if d.IsClosed() {
			return
		}
	}
}

// handleGameCommand submits one post-login line and writes its immediate
// output. Hearable effects arrive through the pump instead.
func (s *Server) handleGameCommand(d *Descriptor, line string) {
	lines, err := s.Game.SubmitLine(d.Session.ID, line)
	if err != nil {
		if errors.Is(err, world.ErrNotConnected) {
			d.Close()
			return
		}
		if world.IsUserError(err) {
			d.Send(capitalize(err.Error()))
			return
		}
		log.Printf("[%d] Command failed for %s: %v", d.ID, d.Session.Identity.Name, err)
		d.Send("Something went wrong. Try again.")
		return
	}
	d.SendLines(lines)
}

// handleLoginCommand processes pre-login commands.
func (s *Server) handleLoginCommand(d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	upper := strings.ToUpper(input)
	if upper == "QUIT" {
		if txt := s.Game.textOrEmpty("quit"); txt != "" {
			d.SendNoNewline(txt)
		} else {
			d.Send("Goodbye!")
		}
		d.Close()
		return
	}
	if upper == "WHO" {
		d.SendLines(FormatWho(s.Game.World.Who("")))
		return
	}

	command, user, password := ParseConnect(input)

	switch {
	case strings.HasPrefix(command, "co"): // connect
		if strings.EqualFold(user, "guest") || user == "" {
			s.attach(d, func() (*world.Session, error) {
				return s.Game.AttachGuest(world.TransportTCP)
			})
			return
		}
		s.handleConnect(d, user, password)

	case strings.HasPrefix(command, "cr"): // create
		if user == "" || password == "" {
			d.Send("Usage: create <name> <password>")
			return
		}
		s.attach(d, func() (*world.Session, error) {
			return s.Game.CreateAccountSession(world.TransportTCP, user, password)
		})

	case command == "guest":
		s.attach(d, func() (*world.Session, error) {
			return s.Game.AttachGuest(world.TransportTCP)
		})

	default:
		d.Send(fmt.Sprintf("Welcome to %s. Commands: connect, create, WHO, QUIT", s.Conf.VenueName))
	}
}

// handleConnect authenticates an account, charging a retry on failure.
func (s *Server) handleConnect(d *Descriptor, user, password string) {
	if user == "" {
		d.Send("Usage: connect <name> <password>")
		return
	}
	session, err := s.Game.AttachAccount(world.TransportTCP, user, password)
	if err != nil {
		d.Send("Either that account does not exist, or has a different password.")
		d.Retries--
		if d.Retries <= 0 {
			d.Send("Too many failed attempts. Disconnecting.")
			d.Close()
		}
		return
	}
	s.login(d, session)
}

// attach runs a session factory and logs the result in, reporting failures
// to the client.
func (s *Server) attach(d *Descriptor, connect func() (*world.Session, error)) {
	session, err := connect()
	if err != nil {
		d.Send(capitalize(err.Error()))
		return
	}
	s.login(d, session)
}

// login binds a freshly connected world session to the descriptor, starts
// the delivery pump and shows the arrival texts.
func (s *Server) login(d *Descriptor, session *world.Session) {
	d.Session = session
	d.State = ConnConnected
	go d.pump()

	d.Send(fmt.Sprintf("Welcome to %s, %s!", s.Conf.VenueName, session.Identity.Name))
	if session.Identity.Guest {
		if txt := s.Game.textOrEmpty("guest"); txt != "" {
			d.SendNoNewline(txt)
		}
	} else if txt := s.Game.textOrEmpty("motd"); txt != "" {
		d.SendNoNewline(txt)
	}

	if lines, err := Dispatch(s.Game, session.ID, "look"); err == nil {
		d.SendLines(lines)
	}
}

// capitalize upcases the first byte of a user-facing error string.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
