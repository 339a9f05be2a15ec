package testutils

import (
	"bufio"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pior/respkv/resp"
)

// Server is a minimal in-memory RESP server for tests.
//
// Supported commands: PING, ECHO, SET, GET, DEL, INCR, RPUSH, LRANGE, HSET,
// HGETALL, SCAN, DBSIZE and DEBUG SLEEP <seconds>.
type Server struct {
	// Hook is called before the built-in commands. Returning false from it
	// falls through to the built-in handling. A nil reply with true sends nothing.
	Hook func(argv []string) (reply *resp.Reply, handled bool)

	ln net.Listener
	wg sync.WaitGroup

	mu      sync.Mutex
	strings map[string]string
	lists   map[string][]string
	hashes  map[string]map[string]string
	conns   map[net.Conn]struct{}
	accepts int
}

// StartServer starts a server on a random local port, stopped on test cleanup.
func StartServer(tb testing.TB) *Server {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("Failed to start test server: %v", err)
	}

	s := &Server{
		ln:      ln,
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		hashes:  make(map[string]map[string]string),
		conns:   make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	tb.Cleanup(s.Close)
	return s
}

// Addr returns the "host:port" address of the server.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Port returns the TCP port of the server.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Accepts returns the number of connections accepted so far.
func (s *Server) Accepts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

// DropConnections closes every open client connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Close stops the server and closes all connections.
func (s *Server) Close() {
	s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.accepts++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		argv, err := resp.ReadCommand(r)
		if err != nil {
			return
		}

		reply := s.handle(argv)
		if reply == nil {
			continue
		}
		if err := resp.WriteReply(w, reply); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) handle(argv []string) *resp.Reply {
	if s.Hook != nil {
		if reply, handled := s.Hook(argv); handled {
			return reply
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := strings.ToUpper(argv[0])
	args := argv[1:]

	switch cmd {
	case "PING":
		return resp.Status("PONG")

	case "ECHO":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		return resp.String(args[0])

	case "SET":
		if len(args) < 2 {
			return wrongArgs(cmd)
		}
		s.strings[args[0]] = args[1]
		return resp.Status("OK")

	case "GET":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		v, ok := s.strings[args[0]]
		if !ok {
			return resp.Nil()
		}
		return resp.String(v)

	case "DEL":
		var n int64
		for _, k := range args {
			if s.delete(k) {
				n++
			}
		}
		return resp.Integer(n)

	case "INCR":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		n, err := strconv.ParseInt(s.strings[args[0]], 10, 64)
		if err != nil && s.strings[args[0]] != "" {
			return resp.Error("ERR value is not an integer or out of range")
		}
		n++
		s.strings[args[0]] = strconv.FormatInt(n, 10)
		return resp.Integer(n)

	case "RPUSH":
		if len(args) < 2 {
			return wrongArgs(cmd)
		}
		s.lists[args[0]] = append(s.lists[args[0]], args[1:]...)
		return resp.Integer(int64(len(s.lists[args[0]])))

	case "LRANGE":
		if len(args) != 3 {
			return wrongArgs(cmd)
		}
		list := s.lists[args[0]]
		start, err1 := strconv.Atoi(args[1])
		stop, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return resp.Error("ERR value is not an integer or out of range")
		}
		start, stop = normalizeRange(start, stop, len(list))
		if start > stop {
			return resp.Strings()
		}
		return resp.Strings(list[start : stop+1]...)

	case "HSET":
		if len(args) < 3 || len(args)%2 != 1 {
			return wrongArgs(cmd)
		}
		h := s.hashes[args[0]]
		if h == nil {
			h = make(map[string]string)
			s.hashes[args[0]] = h
		}
		var added int64
		for i := 1; i+1 < len(args); i += 2 {
			if _, ok := h[args[i]]; !ok {
				added++
			}
			h[args[i]] = args[i+1]
		}
		return resp.Integer(added)

	case "HGETALL":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		h := s.hashes[args[0]]
		fields := make([]string, 0, len(h))
		for f := range h {
			fields = append(fields, f)
		}
		slices.Sort(fields)
		flat := make([]string, 0, 2*len(h))
		for _, f := range fields {
			flat = append(flat, f, h[f])
		}
		return resp.Strings(flat...)

	case "SCAN":
		return s.scan(args)

	case "DBSIZE":
		return resp.Integer(int64(len(s.keys())))

	case "DEBUG":
		if len(args) == 2 && strings.EqualFold(args[0], "SLEEP") {
			secs, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return resp.Error("ERR invalid sleep duration")
			}
			s.mu.Unlock()
			time.Sleep(time.Duration(secs * float64(time.Second)))
			s.mu.Lock()
			return resp.Status("OK")
		}
		return resp.Error("ERR unsupported DEBUG subcommand")

	default:
		return resp.Error("ERR unknown command '" + argv[0] + "'")
	}
}

// scan pages through the sorted key space; the cursor is the offset of the next page.
func (s *Server) scan(args []string) *resp.Reply {
	if len(args) < 1 {
		return wrongArgs("SCAN")
	}
	cursor, err := strconv.Atoi(args[0])
	if err != nil || cursor < 0 {
		return resp.Error("ERR invalid cursor")
	}

	count := 10
	match := ""
	for i := 1; i+1 < len(args); i += 2 {
		switch strings.ToUpper(args[i]) {
		case "COUNT":
			count, err = strconv.Atoi(args[i+1])
			if err != nil || count <= 0 {
				return resp.Error("ERR syntax error")
			}
		case "MATCH":
			match = args[i+1]
		default:
			return resp.Error("ERR syntax error")
		}
	}

	keys := s.keys()
	end := min(cursor+count, len(keys))
	if cursor > end {
		cursor = end
	}

	page := make([]string, 0, end-cursor)
	for _, k := range keys[cursor:end] {
		if match == "" || matchPrefix(match, k) {
			page = append(page, k)
		}
	}

	next := end
	if next >= len(keys) {
		next = 0
	}
	return resp.Array(resp.String(strconv.Itoa(next)), resp.Strings(page...))
}

func (s *Server) keys() []string {
	var keys []string
	for k := range s.strings {
		keys = append(keys, k)
	}
	for k := range s.lists {
		keys = append(keys, k)
	}
	for k := range s.hashes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *Server) delete(key string) bool {
	_, a := s.strings[key]
	_, b := s.lists[key]
	_, c := s.hashes[key]
	delete(s.strings, key)
	delete(s.lists, key)
	delete(s.hashes, key)
	return a || b || c
}

// matchPrefix supports the "prefix*" glob form only.
func matchPrefix(pattern, key string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}

func normalizeRange(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	start = max(start, 0)
	stop = min(stop, n-1)
	return start, stop
}

func wrongArgs(cmd string) *resp.Reply {
	return resp.Error("ERR wrong number of arguments for '" + strings.ToLower(cmd) + "' command")
}
