package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vkuchat/vkuchat/pkg/network"
	"github.com/vkuchat/vkuchat/pkg/storage"
)

// app is the interactive chat client: one registered identity, one
// chat session at a time, transcripts and history written as the
// conversation happens.
type app struct {
	name    string
	dataDir string

	dir      *network.DirectoryClient
	listener *network.ChatListener
	history  *storage.HistoryDB

	mu         sync.Mutex
	session    *network.Session
	transcript *storage.Transcript
	pending    *network.ReceivedFile

	out io.Writer
}

func newApp(serverAddr, name, dataDir string) (*app, error) {
	if name == "" {
		return nil, errors.New("a display name is required (--name)")
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	history, err := storage.OpenHistory(filepath.Join(dataDir, "history.db"))
	if err != nil {
		return nil, err
	}

	listener, err := network.ListenChat(0, name)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("bind chat listener: %w", err)
	}

	return &app{
		name:     name,
		dataDir:  dataDir,
		dir:      network.NewDirectoryClient(serverAddr, name, listener.Port()),
		listener: listener,
		history:  history,
		out:      os.Stdout,
	}, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

// run is the interactive loop. It returns when the user quits or
// stdin closes.
func (a *app) run(ctx context.Context, input io.Reader) error {
	if err := a.dir.Register(); err != nil {
		if errors.Is(err, network.ErrNameRejected) {
			return fmt.Errorf("the name %q is already online, pick another", a.name)
		}
		return err
	}

	a.printf("Registered as %q, chat port %d", a.name, a.listener.Port())

	a.dir.Registry().OnUpdate = func(added, removed []string) {
		for _, name := range added {
			a.printf("* %s is online", name)
		}
		for _, name := range removed {
			a.printf("* %s went offline", name)
		}
	}

	// One conversation at a time: further dials are denied until the
	// current chat ends.
	a.listener.OnRequest = func(peerName string) bool {
		return a.currentSession() == nil
	}
	a.listener.OnSession = func(s *network.Session) {
		a.printf("* %s started a chat with you", s.RemoteName)
		a.attachSession(s)
	}
	a.listener.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.dir.Run(ctx)

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := a.dispatch(line); quit {
			break
		}
	}

	a.shutdown()
	return scanner.Err()
}

// dispatch runs one input line. Slash lines are commands; anything
// else is a chat message for the active session.
func (a *app) dispatch(line string) (quit bool) {
	verb, rest := parseCommand(line)

	switch verb {
	case "":
		a.sendText(line)
	case "help":
		a.printHelp()
	case "peers":
		a.listPeers()
	case "chat":
		a.openChat(rest)
	case "leave":
		a.leave()
	case "edit":
		oldText, newText, ok := splitPair(rest)
		if !ok {
			a.printf("usage: /edit <old text> | <new text>")
			return false
		}
		a.sendEdit(oldText, newText)
	case "delete":
		a.sendDelete(rest)
	case "react":
		target, emoji, ok := splitPair(rest)
		if !ok {
			a.printf("usage: /react <message> | <emoji>")
			return false
		}
		a.sendReaction(target, emoji)
	case "typing":
		a.sendTyping(rest == "on")
	case "clear":
		a.sendClear()
	case "sendfile":
		a.sendFile(rest)
	case "save":
		a.savePending()
	case "discard":
		a.discardPending()
	case "history":
		a.showHistory(rest)
	case "quit":
		return true
	default:
		a.printf("unknown command /%s (try /help)", verb)
	}
	return false
}

func (a *app) printHelp() {
	a.printf(`commands:
  /peers                       list online peers
  /chat <name>                 start a chat with a peer
  /leave                       end the current chat
  /edit <old> | <new>          edit a sent message
  /delete <text>               retract a sent message
  /react <message> | <emoji>   react to a message
  /typing on|off               share typing status
  /clear                       clear the conversation on both sides
  /sendfile <path>             send a file
  /save                        keep the last received file
  /discard                     drop the last received file
  /history [name]              show stored history
  /quit                        sign off and exit
anything else is sent as a chat message`)
}

func (a *app) listPeers() {
	friends := a.dir.Registry().Friends()
	if len(friends) == 0 {
		a.printf("nobody else is online")
		return
	}
	for _, p := range friends {
		a.printf("  %s (%s)", p.Name, p.Addr())
	}
}

func (a *app) openChat(name string) {
	if name == "" {
		a.printf("usage: /chat <name>")
		return
	}
	if a.currentSession() != nil {
		a.printf("already chatting, /leave first")
		return
	}

	peer, ok := a.dir.Registry().Lookup(name)
	if !ok {
		a.printf("%q is not online", name)
		return
	}

	s, err := network.Dial(peer, a.name, a.listener.Port())
	if err != nil {
		if errors.Is(err, network.ErrChatDenied) {
			a.printf("%s declined the chat", name)
		} else {
			a.printf("cannot reach %s: %v", name, err)
		}
		return
	}

	a.attachSession(s)
	a.printf("chatting with %s", name)
}

// attachSession wires callbacks and starts the reader. Only one
// session is active; a second inbound dial replaces a dead one but is
// refused while a live one exists by the listener's OnRequest.
func (a *app) attachSession(s *network.Session) {
	transcript, err := storage.OpenTranscript(filepath.Join(a.dataDir, "transcripts"), a.name, s.RemoteName)
	if err != nil {
		a.printf("transcript disabled: %v", err)
	}

	conv := conversationKey(a.name, s.RemoteName)
	peer := s.RemoteName

	s.OnText = func(body string) {
		a.printf("%s: %s", peer, body)
		a.record(transcript, conv, peer, body)
	}
	s.OnEdit = func(oldText, newText string) {
		a.printf("* %s edited %q to %q", peer, oldText, newText)
		if err := a.history.EditMessage(conv, peer, oldText, newText); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.printf("history: %v", err)
		}
	}
	s.OnDelete = func(body string) {
		a.printf("* %s deleted %q", peer, body)
		if err := a.history.DeleteMessage(conv, peer, body); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.printf("history: %v", err)
		}
	}
	s.OnReaction = func(target, emoji string) {
		a.printf("* %s reacted %s to %q", peer, emoji, target)
	}
	s.OnTyping = func(on bool) {
		if on {
			a.printf("* %s is typing...", peer)
		}
	}
	s.OnClear = func() {
		a.printf("* %s cleared the conversation", peer)
		if err := a.history.ClearConversation(conv); err != nil {
			a.printf("history: %v", err)
		}
	}
	s.OnFileOffer = func(name string) {
		a.printf("* %s is sending %s", peer, name)
	}
	s.OnFileProgress = func(name string, percent int) {
		a.printf("* sending %s: %d%%", name, percent)
	}
	s.OnFileReceived = func(f *network.ReceivedFile) {
		a.mu.Lock()
		a.pending = f
		a.mu.Unlock()
		a.printf("* received %s (%d bytes), /save to keep it or /discard", f.Name, f.Size)
		if transcript != nil {
			transcript.AppendEvent(fmt.Sprintf("%s sent %s", peer, f.Name))
		}
	}
	s.OnFileAborted = func(name string) {
		a.printf("* transfer of %s was aborted", name)
	}
	s.OnClosed = func(err error) {
		if err != nil {
			a.printf("* chat with %s failed: %v", peer, err)
		} else {
			a.printf("* chat with %s ended", peer)
		}
		a.detachSession(s)
	}

	a.mu.Lock()
	a.session = s
	a.transcript = transcript
	a.mu.Unlock()

	s.Start()
}

func (a *app) detachSession(s *network.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != s {
		return
	}
	if a.transcript != nil {
		a.transcript.Close()
	}
	a.session = nil
	a.transcript = nil
	a.pending = nil
}

func (a *app) currentSession() *network.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// record stores one chat line in the transcript and the history.
func (a *app) record(transcript *storage.Transcript, conv, sender, body string) {
	if transcript != nil {
		transcript.Append(sender, body)
	}
	if err := a.history.SaveMessage(&storage.StoredMessage{
		Conversation: conv,
		Sender:       sender,
		Body:         body,
	}); err != nil {
		a.printf("history: %v", err)
	}
}

func (a *app) sendText(body string) {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat, /chat <name> first")
		return
	}
	if err := s.SendText(body); err != nil {
		a.printf("send failed: %v", err)
		return
	}

	a.mu.Lock()
	transcript := a.transcript
	a.mu.Unlock()
	a.record(transcript, conversationKey(a.name, s.RemoteName), a.name, body)
}

func (a *app) sendEdit(oldText, newText string) {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat")
		return
	}
	if err := s.SendEdit(oldText, newText); err != nil {
		a.printf("edit failed: %v", err)
		return
	}
	conv := conversationKey(a.name, s.RemoteName)
	if err := a.history.EditMessage(conv, a.name, oldText, newText); err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.printf("history: %v", err)
	}
}

func (a *app) sendDelete(body string) {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat")
		return
	}
	if err := s.SendDelete(body); err != nil {
		a.printf("delete failed: %v", err)
		return
	}
	conv := conversationKey(a.name, s.RemoteName)
	if err := a.history.DeleteMessage(conv, a.name, body); err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.printf("history: %v", err)
	}
}

func (a *app) sendReaction(target, emoji string) {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat")
		return
	}
	if err := s.SendReaction(target, emoji); err != nil {
		a.printf("reaction failed: %v", err)
	}
}

func (a *app) sendTyping(on bool) {
	s := a.currentSession()
	if s == nil {
		return
	}
	if err := s.SendTyping(on); err != nil {
		a.printf("typing notice failed: %v", err)
	}
}

func (a *app) sendClear() {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat")
		return
	}
	if err := s.SendClear(); err != nil {
		a.printf("clear failed: %v", err)
		return
	}
	if err := a.history.ClearConversation(conversationKey(a.name, s.RemoteName)); err != nil {
		a.printf("history: %v", err)
	}
}

func (a *app) sendFile(path string) {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat")
		return
	}
	if path == "" {
		a.printf("usage: /sendfile <path>")
		return
	}

	// Transfers run in the background so chat stays responsive.
	go func() {
		if err := s.SendFile(path); err != nil {
			a.printf("file send failed: %v", err)
			return
		}
		a.printf("* sent %s", filepath.Base(path))
		a.mu.Lock()
		transcript := a.transcript
		a.mu.Unlock()
		if transcript != nil {
			transcript.AppendEvent(fmt.Sprintf("%s sent %s", a.name, filepath.Base(path)))
		}
	}()
}

func (a *app) savePending() {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	if pending == nil {
		a.printf("no received file waiting")
		return
	}

	downloads := filepath.Join(a.dataDir, "downloads")
	if err := os.MkdirAll(downloads, 0o755); err != nil {
		a.printf("save failed: %v", err)
		return
	}

	dst, err := pending.SaveTo(downloads)
	if err != nil {
		a.printf("save failed: %v", err)
		return
	}
	a.printf("* saved %s", dst)
}

func (a *app) discardPending() {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	if pending == nil {
		a.printf("no received file waiting")
		return
	}
	if err := pending.Discard(); err != nil {
		a.printf("discard failed: %v", err)
		return
	}
	a.printf("* discarded %s", pending.Name)
}

func (a *app) showHistory(peer string) {
	if peer == "" {
		convs, err := a.history.Conversations()
		if err != nil {
			a.printf("history: %v", err)
			return
		}
		if len(convs) == 0 {
			a.printf("no stored conversations")
			return
		}
		for _, c := range convs {
			a.printf("  %s", c)
		}
		return
	}

	msgs, err := a.history.Messages(conversationKey(a.name, peer), 50)
	if err != nil {
		a.printf("history: %v", err)
		return
	}
	for _, m := range msgs {
		if m.Deleted {
			a.printf("  %s: (deleted)", m.Sender)
			continue
		}
		a.printf("  %s: %s", m.Sender, m.Body)
	}
}

func (a *app) leave() {
	s := a.currentSession()
	if s == nil {
		a.printf("no active chat")
		return
	}
	s.Close()
}

func (a *app) shutdown() {
	if s := a.currentSession(); s != nil {
		s.Close()
	}
	a.listener.Close()
	if err := a.dir.Exit(); err != nil {
		a.printf("sign-off failed: %v", err)
	}
	a.history.Close()
	a.printf("goodbye")
}

// parseCommand splits a slash command into verb and argument. A line
// without a leading slash is plain chat text (empty verb).
func parseCommand(line string) (verb, rest string) {
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	parts := strings.SplitN(line[1:], " ", 2)
	verb = parts[0]
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return verb, rest
}

// splitPair splits "left | right" arguments.
func splitPair(s string) (left, right string, ok bool) {
	i := strings.Index(s, "|")
	if i < 0 {
		return "", "", false
	}
	left = strings.TrimSpace(s[:i])
	right = strings.TrimSpace(s[i+1:])
	return left, right, left != "" && right != ""
}

// conversationKey names a peer pair the same way from both sides.
func conversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
