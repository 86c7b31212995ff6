package hermes

import (
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestDispatch(t *testing.T) {
	c := &Client{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	var gotSubject string
	var gotData []byte
	h := c.dispatch(func(subject string, data []byte) {
		gotSubject, gotData = subject, data
	})
	h(&nats.Msg{Subject: SubjectInbound, Data: []byte(`{"sessionId":"s1"}`)})
	assert.Equal(t, SubjectInbound, gotSubject)
	assert.JSONEq(t, `{"sessionId":"s1"}`, string(gotData))

	panicking := c.dispatch(func(string, []byte) { panic("bad payload") })
	assert.NotPanics(t, func() {
		panicking(&nats.Msg{Subject: SubjectInbound})
	})
}
