// Package fakestatsd is a UDP statsd listener that records the metrics it receives.
package fakestatsd

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

type FakeStatsd struct {
	connection *net.UDPConn

	mu      sync.RWMutex
	metrics []Metric
}

func New(t testing.TB) *FakeStatsd {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "localhost:0")
	assert.Assert(t, err)

	conn, err := net.ListenUDP("udp", addr)
	assert.Assert(t, err)

	s := &FakeStatsd{
		connection: conn,
	}
	go s.listen()
	t.Cleanup(func() {
		_ = s.connection.Close()
	})

	return s
}

func (s *FakeStatsd) Addr() string {
	return s.connection.LocalAddr().String()
}

type Metric struct {
	Name  string
	Value string
	Tags  []string
}

// Metrics returns a copy of everything received so far.
func (s *FakeStatsd) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

func (s *FakeStatsd) listen() {
	buffer := make([]byte, 10000)

	for {
		n, err := s.connection.Read(buffer)
		if errors.Is(err, net.ErrClosed) {
			return
		}

		for _, raw := range bytes.Split(buffer[:n], []byte("\n")) {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 {
				continue
			}
			s.record(parse(string(raw)))
		}
	}
}

func (s *FakeStatsd) record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
}

// parse reads a dogstatsd line such as "name:1|c|#tag:a,tag:b"
func parse(raw string) Metric {
	nameAndRest := strings.SplitN(raw, ":", 2)
	m := Metric{Name: nameAndRest[0]}
	if len(nameAndRest) < 2 {
		return m
	}
	parts := strings.Split(nameAndRest[1], "|")
	m.Value = parts[0]
	for _, p := range parts[1:] {
		if strings.HasPrefix(p, "#") {
			m.Tags = strings.Split(p[1:], ",")
		}
	}
	return m
}
