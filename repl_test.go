package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/chatstore"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want *command
	}{
		{"", nil},
		{"   ", nil},
		{"hello there", &command{text: "hello there"}},
		{"/global", &command{name: "global", args: []string{}}},
		{"/dm u2", &command{name: "dm", args: []string{"u2"}}},
		{"  /group   g1 ", &command{name: "group", args: []string{"g1"}}},
		{"/mkgroup Book club u2,u3", &command{name: "mkgroup", args: []string{"Book club", "u2,u3"}}},
		{"/file /tmp/my photo.png", &command{name: "file", args: []string{"/tmp/my photo.png"}}},
		{"/save m1 /tmp/a b.png", &command{name: "save", args: []string{"m1", "/tmp/a b.png"}}},
	}
	for _, c := range cases {
		got, err := parseCommand(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.want, got, c.line)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"/", "/nope", "/dm", "/dm u2 u3", "/mkgroup solo", "/file", "/save m1", "/quit now"} {
		_, err := parseCommand(line)
		assert.Error(t, err, line)
	}
}

func TestReplPrintsNewMessagesOnly(t *testing.T) {
	var out bytes.Buffer
	r := newRepl(&out, time.Second)
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	a := chatstore.Message{Id: "m1", SenderId: "u2", SenderName: "Bob", Text: "hi", Timestamp: t0}
	b := chatstore.Message{Id: "m2", SenderId: "u1", Text: "hello", Timestamp: t0.Add(time.Second)}

	r.onMessages(chatstore.GlobalScope(), []chatstore.Message{a})
	r.onMessages(chatstore.GlobalScope(), []chatstore.Message{a, b})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "== global-global ==", lines[0])
	assert.Contains(t, lines[1], "m1 Bob: hi")
	assert.Contains(t, lines[2], "m2 u1: hello")

	// a scope change prints everything again.
	out.Reset()
	r.onMessages(chatstore.GroupScope("g1"), []chatstore.Message{a})
	assert.Contains(t, out.String(), "== group-g1 ==")
	assert.Contains(t, out.String(), "m1 Bob: hi")
}

func TestFormatMessageWithFile(t *testing.T) {
	m := &chatstore.Message{
		Id:        "m1",
		SenderId:  "u2",
		Timestamp: time.Now(),
		File:      &chatstore.File{Url: "blob://b1/a.png", Name: "a.png"},
	}
	assert.True(t, strings.HasSuffix(formatMessage(m), "m1 u2: [file a.png blob://b1/a.png]"))
}

func TestReplQuit(t *testing.T) {
	var out bytes.Buffer
	r := newRepl(&out, time.Second)

	err := r.run(context.Background(), strings.NewReader("/bogus\n\n/quit\nnever sent\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "unknown command `/bogus`")
}

func TestReadUpload(t *testing.T) {
	name := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, ioutil.WriteFile(name, []byte("hello"), 0600))

	f, err := readUpload(name)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.Name)
	assert.True(t, strings.HasPrefix(f.MimeType, "text/plain"))
	assert.Equal(t, []byte("hello"), f.Data)

	_, err = readUpload(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestParseProfiles(t *testing.T) {
	kinds, err := parseProfiles("cpu, mem,cpu,,trace")
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu", "mem", "trace"}, kinds)

	_, err = parseProfiles("cpu,gpu")
	assert.Error(t, err)
	_, err = parseProfiles(" , ")
	assert.Error(t, err)
}

func TestValidateAddr(t *testing.T) {
	assert.NoError(t, validateAddr("127.0.0.1:9100"))
	assert.NoError(t, validateAddr("10.0.0.2:9100"))
	assert.Error(t, validateAddr("8.8.8.8:9100"))
	assert.Error(t, validateAddr("localhost"))
}
