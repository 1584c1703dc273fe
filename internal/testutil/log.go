package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/go-logr/logr"
)

// NewLogger returns a logr.Logger writing to t to preserve the order of
// log lines in tests.
func NewLogger(t *testing.T) logr.Logger {
	t.Helper()

	return logr.New(&sink{t: t, values: map[string]interface{}{}})
}

type sink struct {
	t      *testing.T
	names  []string
	values map[string]interface{}
}

var _ logr.LogSink = (*sink)(nil)

func (s *sink) Init(logr.RuntimeInfo) {}

func (s *sink) Enabled(int) bool {
	return true
}

func (s *sink) Info(_ int, msg string, kvs ...interface{}) {
	// marks this function as a helper method, so it will be excluded in the log stacktrace
	s.t.Helper()

	values := addValues(s.values, kvs...)

	j, err := json.Marshal(values)
	if err != nil {
		j = []byte(fmt.Sprint(values))
	}
	s.t.Logf("%-15s %-20s %s", strings.Join(s.names, "."), msg, string(j))
}

func (s *sink) Error(err error, msg string, kvs ...interface{}) {
	s.t.Helper()
	s.Info(0, msg, append(kvs, "error", err.Error())...)
}

func (s *sink) WithValues(kvs ...interface{}) logr.LogSink {
	return &sink{
		t:      s.t,
		names:  s.names,
		values: addValues(s.values, kvs...),
	}
}

func (s *sink) WithName(name string) logr.LogSink {
	names := make([]string, len(s.names), len(s.names)+1)
	copy(names, s.names)

	return &sink{
		t:      s.t,
		names:  append(names, name),
		values: s.values,
	}
}

func addValues(base map[string]interface{}, kvs ...interface{}) map[string]interface{} {
	values := map[string]interface{}{}
	// add existing k/v pairs
	for k := range base {
		values[k] = base[k]
	}
	// add new k/v pairs
	for i := 0; i+1 < len(kvs); i += 2 {
		values[fmt.Sprint(kvs[i])] = kvs[i+1]
	}
	return values
}
