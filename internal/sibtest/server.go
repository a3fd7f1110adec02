// Package sibtest provides an in-process ShellInABox server for tests.
package sibtest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Path is the URL path the fake server answers on
const Path = "/cgi-bin/sib"

// okPage is what ShellInABox returns for an accepted keystroke upload
const okPage = `<!DOCTYPE html><html><head><title>OK</title></head><body></body></html>`

// Request is one form request received by the server
type Request struct {
	Kind    string // "open", "poll" or "send"
	Width   int
	Height  int
	Session string
	RootURL string
	Keys    string // hex, as received
}

// Server is a scriptable ShellInABox endpoint
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	sessionID  string
	requests   []Request
	openStatus int
	pollStatus int
	sendStatus int
	sendBody   string
	pollBody   string

	outputs chan string
	sent    chan Request
	stop    chan struct{}
	once    sync.Once
}

// NewServer starts a server that hands out sessionID on open
func NewServer(sessionID string) *Server {
	s := &Server{
		sessionID: sessionID,
		sendBody:  okPage,
		outputs:   make(chan string, 1024),
		sent:      make(chan Request, 1024),
		stop:      make(chan struct{}),
	}

	router := mux.NewRouter()
	router.HandleFunc(Path, s.handle).Methods(http.MethodPost)
	s.Server = httptest.NewServer(router)
	return s
}

// URL returns the endpoint clients should be configured with
func (s *Server) URL() string {
	return s.Server.URL + Path
}

// Close unblocks held polls and shuts the server down
func (s *Server) Close() {
	s.once.Do(func() { close(s.stop) })
	s.Server.Close()
}

// PushOutput queues data for the next poll
func (s *Server) PushOutput(data string) {
	s.outputs <- data
}

// SetOpenStatus makes open answer with code instead of a session
func (s *Server) SetOpenStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openStatus = code
}

// SetPollStatus makes every poll answer with code
func (s *Server) SetPollStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollStatus = code
}

// SetSendStatus makes every send answer with code
func (s *Server) SetSendStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendStatus = code
}

// SetSendBody replaces the page returned for accepted keystrokes
func (s *Server) SetSendBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendBody = body
}

// SetPollBody makes polls return body verbatim instead of queued output
func (s *Server) SetPollBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollBody = body
}

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Sent delivers send requests as they arrive
func (s *Server) Sent() <-chan Request {
	return s.sent
}

// Keys returns the decoded concatenation of all keys received
func (s *Server) Keys() string {
	var b strings.Builder
	for _, r := range s.Requests() {
		if r.Kind != "send" {
			continue
		}
		raw, err := hex.DecodeString(r.Keys)
		if err != nil {
			panic(fmt.Sprintf("sibtest: bad hex %q: %v", r.Keys, err))
		}
		b.Write(raw)
	}
	return b.String()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := Request{
		Session: r.PostForm.Get("session"),
		RootURL: r.PostForm.Get("rooturl"),
		Keys:    r.PostForm.Get("keys"),
	}
	req.Width, _ = strconv.Atoi(r.PostForm.Get("width"))
	req.Height, _ = strconv.Atoi(r.PostForm.Get("height"))
	switch {
	case r.PostForm.Has("rooturl"):
		req.Kind = "open"
	case r.PostForm.Has("keys"):
		req.Kind = "send"
	default:
		req.Kind = "poll"
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	openStatus, pollStatus, sendStatus := s.openStatus, s.pollStatus, s.sendStatus
	sendBody, pollBody := s.sendBody, s.pollBody
	s.mu.Unlock()

	switch req.Kind {
	case "open":
		if openStatus != 0 {
			w.WriteHeader(openStatus)
			return
		}
		writeJSON(w, map[string]string{"session": s.sessionID})

	case "send":
		if req.Session != s.sessionID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if sendStatus != 0 {
			w.WriteHeader(sendStatus)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, sendBody)
		select {
		case s.sent <- req:
		default:
		}

	case "poll":
		if pollStatus != 0 {
			w.WriteHeader(pollStatus)
			return
		}
		if req.Session != s.sessionID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if pollBody != "" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, pollBody)
			return
		}
		select {
		case data := <-s.outputs:
			writeJSON(w, map[string]string{"data": data})
		case <-r.Context().Done():
		case <-s.stop:
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
