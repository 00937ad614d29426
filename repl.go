package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mqy/minichat/chat"
	"github.com/mqy/minichat/chatstore"
)

const replHelp = `commands:
  /global                      open the global chat
  /dm <user-id>                open the personal chat with a user
  /group <group-id>            open a group chat
  /groups                      list groups
  /mkgroup <name> <uid,...>    create a group chat
  /rmgroup <group-id>          delete a group chat you created
  /leave <group-id>            leave a group chat
  /file <path>                 send a file
  /save <message-id> <path>    save the file of a message
  /delete <message-id>         delete your message
  /history                     print messages of the open chat
  /notifications               list notifications
  /dismiss <notification-id>   dismiss a notification
  /clear                       clear notifications
  /quit                        exit
any other line is sent as a text message.`

var errQuit = errors.New("quit")

type command struct {
	name string
	args []string
	// text is a plain message line.
	text string
}

// arity is the number of arguments each command takes.
var arity = map[string]int{
	"global":        0,
	"dm":            1,
	"group":         1,
	"groups":        0,
	"mkgroup":       2,
	"rmgroup":       1,
	"leave":         1,
	"file":          1,
	"save":          2,
	"delete":        1,
	"history":       0,
	"notifications": 0,
	"dismiss":       1,
	"clear":         0,
	"help":          0,
	"quit":          0,
}

// parseCommand parses one console line. It returns nil for blank lines.
func parseCommand(line string) (*command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return &command{text: line}, nil
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	name, args := fields[0], fields[1:]
	n, ok := arity[name]
	if !ok {
		return nil, fmt.Errorf("unknown command `/%s`, try /help", name)
	}

	switch name {
	case "mkgroup":
		// the name may contain spaces, the member list is the last field.
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: /mkgroup <name> <uid,...>")
		}
		args = []string{strings.Join(args[:len(args)-1], " "), args[len(args)-1]}
	case "save":
		if len(args) > 2 {
			args = []string{args[0], strings.Join(args[1:], " ")}
		}
	case "file":
		// paths may contain spaces.
		if len(args) > 0 {
			args = []string{strings.TrimSpace(strings.TrimPrefix(line[1:], name))}
		}
	}

	if len(args) != n {
		return nil, fmt.Errorf("`/%s` takes %d argument(s), got %d", name, n, len(args))
	}
	return &command{name: name, args: args}, nil
}

// repl is the line console of a session. Session callbacks print into out.
type repl struct {
	session *chat.Session
	out     io.Writer
	timeout time.Duration

	mu       sync.Mutex
	scopeKey string
	printed  map[string]bool
}

func newRepl(out io.Writer, timeout time.Duration) *repl {
	return &repl{out: out, timeout: timeout, printed: map[string]bool{}}
}

// onMessages prints messages not printed yet, all of them after a scope change.
func (r *repl) onMessages(scope chatstore.Scope, msgs []chatstore.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key := scope.Key(); key != r.scopeKey {
		r.scopeKey = key
		r.printed = map[string]bool{}
		fmt.Fprintf(r.out, "== %s ==\n", scope)
	}
	for i := range msgs {
		m := &msgs[i]
		if r.printed[m.Id] {
			continue
		}
		r.printed[m.Id] = true
		fmt.Fprintln(r.out, formatMessage(m))
	}
}

func (r *repl) onNotification(n *chatstore.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "!! %s\n", formatNotification(n))
}

func formatMessage(m *chatstore.Message) string {
	name := m.SenderName
	if name == "" {
		name = m.SenderId
	}
	body := m.Text
	if m.File != nil {
		body = strings.TrimSpace(fmt.Sprintf("%s [file %s %s]", body, m.File.Name, m.File.Url))
	}
	return fmt.Sprintf("[%s] %s %s: %s", m.Timestamp.Local().Format("15:04:05"), m.Id, name, body)
}

func formatNotification(n *chatstore.Notification) string {
	scope := chatstore.Scope{Kind: n.ScopeKind, Id: n.ScopeId}
	return fmt.Sprintf("%s %s in %s: %s", n.Id, n.SenderName, scope, n.Text)
}

// run reads commands from in until EOF, /quit or ctx is done.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.println(replHelp)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd, err := parseCommand(sc.Text())
		if err != nil {
			r.println(err.Error())
			continue
		}
		if cmd == nil {
			continue
		}
		if err := r.exec(ctx, cmd); err != nil {
			if err == errQuit {
				return nil
			}
			r.printf("error(%s): %v\n", chat.ErrorCode(err), err)
		}
	}
	return sc.Err()
}

func (r *repl) exec(ctx context.Context, cmd *command) error {
	switch cmd.name {
	case "quit":
		return errQuit
	case "help":
		r.println(replHelp)
		return nil
	case "history":
		r.mu.Lock()
		defer r.mu.Unlock()
		msgs := r.session.Messages()
		fmt.Fprintf(r.out, "== %s: %d messages ==\n", r.session.ActiveScope(), len(msgs))
		for i := range msgs {
			fmt.Fprintln(r.out, formatMessage(&msgs[i]))
		}
		return nil
	case "groups":
		active := r.session.ActiveScope()
		for _, g := range r.session.Groups() {
			mark := " "
			if active.Kind == chatstore.ChatKind_Group && active.Id == g.Id {
				mark = "*"
			}
			r.printf("%s %s %s (%d members, by %s)\n", mark, g.Id, g.Name, len(g.Members), g.CreatedBy)
		}
		return nil
	case "notifications":
		for _, n := range r.session.Notifications() {
			r.println(formatNotification(n))
		}
		return nil
	case "dismiss":
		if !r.session.DismissNotification(cmd.args[0]) {
			r.printf("no notification `%s`\n", cmd.args[0])
		}
		return nil
	case "clear":
		r.session.ClearNotifications()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch cmd.name {
	case "":
		_, err := r.session.SendMessage(ctx, cmd.text)
		return err
	case "global":
		return r.session.SelectGlobal(ctx)
	case "dm":
		return r.session.SelectPersonal(ctx, cmd.args[0])
	case "group":
		return r.session.SelectGroup(ctx, cmd.args[0])
	case "mkgroup":
		g, err := r.session.CreateGroupChat(ctx, cmd.args[0], strings.Split(cmd.args[1], ","))
		if err != nil {
			return err
		}
		r.printf("group %s created\n", g.Id)
		return nil
	case "rmgroup":
		return r.session.DeleteGroupChat(ctx, cmd.args[0])
	case "leave":
		return r.session.LeaveGroupChat(ctx, cmd.args[0])
	case "delete":
		return r.session.DeleteMessage(ctx, cmd.args[0])
	case "file":
		f, err := readUpload(cmd.args[0])
		if err != nil {
			return err
		}
		_, err = r.session.SendFile(ctx, f)
		return err
	case "save":
		data, file, err := r.session.OpenFile(ctx, cmd.args[0])
		if err != nil {
			return err
		}
		if err := ioutil.WriteFile(cmd.args[1], data, 0600); err != nil {
			return err
		}
		r.printf("saved %s (%d bytes) to %s\n", file.Name, len(data), cmd.args[1])
		return nil
	}
	return fmt.Errorf("unhandled command `/%s`", cmd.name)
}

func (r *repl) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

func (r *repl) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// readUpload reads a local file as an attachment. The mime type comes from the extension,
// or is sniffed from the content.
func readUpload(name string) (*chat.FileUpload, error) {
	if unquoted, err := strconv.Unquote(name); err == nil {
		name = unquoted
	}
	data, err := ioutil.ReadFile(name)
	if err != nil {
		return nil, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &chat.FileUpload{Name: filepath.Base(name), MimeType: mimeType, Data: data}, nil
}
