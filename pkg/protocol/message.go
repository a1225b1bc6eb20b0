package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// Message is one decoded control unit. Every kind round-trips through
// Encode and its decoder for representative payloads.
type Message interface {
	// Encode renders the message in the tag grammar.
	Encode() string
}

// ===== KINDS =====

// RegisterRequest asks the directory server to register a peer name
// and inbound chat port.
type RegisterRequest struct {
	Name string
	Port int
}

// KeepAlive is the periodic client liveness report. Online maps to
// STATUS RUNNING, offline to STOP.
type KeepAlive struct {
	Name   string
	Online bool
}

// SessionDeny is the directory's duplicate-name refusal.
type SessionDeny struct{}

// ChatRequest opens a peer-to-peer session, carrying the dialer's name.
type ChatRequest struct {
	Name string
}

// ChatAccept confirms a chat request.
type ChatAccept struct{}

// ChatDeny refuses a chat request.
type ChatDeny struct{}

// ChatClose terminates a session.
type ChatClose struct{}

// ChatText is a plain chat line. The body is passed through
// unescaped, '<' and '>' included; the length-prefixed frame keeps
// the envelope unambiguous on the wire.
type ChatText struct {
	Body string
}

// ChatEdit rewrites a previously sent message.
type ChatEdit struct {
	OldText string
	NewText string
}

// ChatDelete retracts a previously sent message.
type ChatDelete struct {
	Body string
}

// Typing reports the remote user's typing state.
type Typing struct {
	On bool
}

// Reaction attaches an emoji to a previously sent message.
type Reaction struct {
	Target string
	Emoji  string
}

// ChatClear wipes the shared conversation view.
type ChatClear struct{}

// FileRequest announces an upcoming file transfer.
type FileRequest struct {
	Name string
}

// FileAck accepts a file request. Port is the acknowledging side's
// listen port, carried in binary-string form — a vestige of the
// server-mediated fallback path, preserved for protocol fidelity.
type FileAck struct {
	Port int
}

// FileBegin marks the start of the chunk stream.
type FileBegin struct{}

// FileClose marks the end (or abort) of the chunk stream.
type FileClose struct{}

// ===== ENCODERS =====

func (m RegisterRequest) Encode() string {
	return sessionOpen +
		peerNameOpen + m.Name + peerNameClose +
		portOpen + strconv.Itoa(m.Port) + portClose +
		sessionClose
}

func (m KeepAlive) Encode() string {
	status := StatusStop
	if m.Online {
		status = StatusRunning
	}
	return keepAliveOpen +
		peerNameOpen + m.Name + peerNameClose +
		statusOpen + status + statusClose +
		keepAliveClose
}

func (SessionDeny) Encode() string { return sessionDenyTag }

func (m ChatRequest) Encode() string {
	return chatReqOpen + peerNameOpen + m.Name + peerNameClose + chatReqClose
}

func (ChatAccept) Encode() string { return chatAcceptTag }
func (ChatDeny) Encode() string   { return chatDenyTag }
func (ChatClose) Encode() string  { return chatCloseTag }

func (m ChatText) Encode() string {
	return chatMsgOpen + m.Body + chatMsgClose
}

func (m ChatEdit) Encode() string {
	return chatEditOpen +
		oldOpen + m.OldText + oldClose +
		newOpen + m.NewText + newClose +
		chatEditClose
}

func (m ChatDelete) Encode() string {
	return chatDeleteOpen + bodyOpen + m.Body + bodyClose + chatDeleteClose
}

func (m Typing) Encode() string {
	state := typingOff
	if m.On {
		state = typingOn
	}
	return typingOpen + stateOpen + state + stateClose + typingClose
}

func (m Reaction) Encode() string {
	return reactionOpen +
		targetOpen + m.Target + targetClose +
		emojiOpen + m.Emoji + emojiClose +
		reactionClose
}

func (ChatClear) Encode() string { return chatClearTag }

func (m FileRequest) Encode() string {
	return fileReqOpen + m.Name + fileReqClose
}

func (m FileAck) Encode() string {
	return fileAckOpen + strconv.FormatInt(int64(m.Port), 2) + fileAckClose
}

func (FileBegin) Encode() string { return fileBeginTag }
func (FileClose) Encode() string { return fileCloseTag }

// ===== DECODERS =====

// Each kind's grammar is validated against the whole string before
// any field is extracted. Loosening these to substring searches
// reintroduces cross-kind false positives.
var (
	reRegister = regexp.MustCompile("^(?s)" + sessionOpen +
		peerNameOpen + "[^<>]+" + peerNameClose +
		portOpen + "[0-9]+" + portClose +
		sessionClose + "$")

	reKeepAlive = regexp.MustCompile("^" + keepAliveOpen +
		peerNameOpen + "[^<>]+" + peerNameClose +
		statusOpen + "(" + StatusRunning + "|" + StatusStop + ")" + statusClose +
		keepAliveClose + "$")

	reChatRequest = regexp.MustCompile("^" + chatReqOpen +
		peerNameOpen + "[^<>]+" + peerNameClose +
		chatReqClose + "$")

	reChatText = regexp.MustCompile("^(?s)" + chatMsgOpen + ".*" + chatMsgClose + "$")

	reChatEdit = regexp.MustCompile("^(?s)" + chatEditOpen +
		oldOpen + ".*" + oldClose +
		newOpen + ".*" + newClose +
		chatEditClose + "$")

	reChatDelete = regexp.MustCompile("^(?s)" + chatDeleteOpen +
		bodyOpen + ".*" + bodyClose +
		chatDeleteClose + "$")

	reTyping = regexp.MustCompile("^" + typingOpen +
		stateOpen + "(" + typingOn + "|" + typingOff + ")" + stateClose +
		typingClose + "$")

	reReaction = regexp.MustCompile("^(?s)" + reactionOpen +
		targetOpen + ".*" + targetClose +
		emojiOpen + "[^<>]+" + emojiClose +
		reactionClose + "$")

	reFileRequest = regexp.MustCompile("^(?s)" + fileReqOpen + ".*" + fileReqClose + "$")

	reFileAck = regexp.MustCompile("^" + fileAckOpen + "[01]+" + fileAckClose + "$")
)

// DecodeRegister decodes a registration request.
func DecodeRegister(raw string) (RegisterRequest, bool) {
	if !reRegister.MatchString(raw) {
		return RegisterRequest{}, false
	}
	port, err := strconv.Atoi(between(raw, portOpen, portClose))
	if err != nil {
		return RegisterRequest{}, false
	}
	return RegisterRequest{
		Name: between(raw, peerNameOpen, peerNameClose),
		Port: port,
	}, true
}

// DecodeKeepAlive decodes a keep-alive report.
func DecodeKeepAlive(raw string) (KeepAlive, bool) {
	if !reKeepAlive.MatchString(raw) {
		return KeepAlive{}, false
	}
	return KeepAlive{
		Name:   between(raw, peerNameOpen, peerNameClose),
		Online: between(raw, statusOpen, statusClose) == StatusRunning,
	}, true
}

// DecodeChatRequest decodes a chat request.
func DecodeChatRequest(raw string) (ChatRequest, bool) {
	if !reChatRequest.MatchString(raw) {
		return ChatRequest{}, false
	}
	return ChatRequest{Name: between(raw, peerNameOpen, peerNameClose)}, true
}

// DecodeChatText decodes a plain chat line. The body sits between
// the first open marker and the last close marker, so bodies that
// themselves contain tag-like text survive the round trip.
func DecodeChatText(raw string) (ChatText, bool) {
	if !reChatText.MatchString(raw) {
		return ChatText{}, false
	}
	return ChatText{Body: betweenLast(raw, chatMsgOpen, chatMsgClose)}, true
}

// DecodeChatEdit decodes an edit envelope.
func DecodeChatEdit(raw string) (ChatEdit, bool) {
	if !reChatEdit.MatchString(raw) {
		return ChatEdit{}, false
	}
	return ChatEdit{
		OldText: between(raw, oldOpen, oldClose),
		NewText: between(raw, newOpen, newClose),
	}, true
}

// DecodeChatDelete decodes a delete envelope.
func DecodeChatDelete(raw string) (ChatDelete, bool) {
	if !reChatDelete.MatchString(raw) {
		return ChatDelete{}, false
	}
	return ChatDelete{Body: between(raw, bodyOpen, bodyClose)}, true
}

// DecodeTyping decodes a typing indicator.
func DecodeTyping(raw string) (Typing, bool) {
	if !reTyping.MatchString(raw) {
		return Typing{}, false
	}
	return Typing{On: between(raw, stateOpen, stateClose) == typingOn}, true
}

// DecodeReaction decodes a reaction envelope.
func DecodeReaction(raw string) (Reaction, bool) {
	if !reReaction.MatchString(raw) {
		return Reaction{}, false
	}
	return Reaction{
		Target: between(raw, targetOpen, targetClose),
		Emoji:  between(raw, emojiOpen, emojiClose),
	}, true
}

// DecodeFileRequest decodes a file transfer request.
func DecodeFileRequest(raw string) (FileRequest, bool) {
	if !reFileRequest.MatchString(raw) {
		return FileRequest{}, false
	}
	return FileRequest{Name: betweenLast(raw, fileReqOpen, fileReqClose)}, true
}

// DecodeFileAck decodes a file transfer acknowledgment.
func DecodeFileAck(raw string) (FileAck, bool) {
	if !reFileAck.MatchString(raw) {
		return FileAck{}, false
	}
	port, err := strconv.ParseInt(between(raw, fileAckOpen, fileAckClose), 2, 32)
	if err != nil {
		return FileAck{}, false
	}
	return FileAck{Port: int(port)}, true
}

// Decode classifies a raw text payload, trying each kind in the
// session dispatch order. A false result means "unrecognized" — a
// supported steady state the caller drops, never an error.
func Decode(raw string) (Message, bool) {
	if peers, ok := DecodeRoster(raw); ok {
		return SessionAccept{Peers: peers}, true
	}
	if raw == chatCloseTag {
		return ChatClose{}, true
	}
	if m, ok := DecodeChatEdit(raw); ok {
		return m, true
	}
	if m, ok := DecodeTyping(raw); ok {
		return m, true
	}
	if m, ok := DecodeReaction(raw); ok {
		return m, true
	}
	if m, ok := DecodeChatDelete(raw); ok {
		return m, true
	}
	if raw == chatClearTag {
		return ChatClear{}, true
	}
	if m, ok := DecodeFileRequest(raw); ok {
		return m, true
	}
	if m, ok := DecodeFileAck(raw); ok {
		return m, true
	}
	if raw == fileBeginTag {
		return FileBegin{}, true
	}
	if raw == fileCloseTag {
		return FileClose{}, true
	}
	if raw == sessionDenyTag {
		return SessionDeny{}, true
	}
	if raw == chatAcceptTag {
		return ChatAccept{}, true
	}
	if raw == chatDenyTag {
		return ChatDeny{}, true
	}
	if m, ok := DecodeChatRequest(raw); ok {
		return m, true
	}
	if m, ok := DecodeRegister(raw); ok {
		return m, true
	}
	if m, ok := DecodeKeepAlive(raw); ok {
		return m, true
	}
	if m, ok := DecodeChatText(raw); ok {
		return m, true
	}
	return nil, false
}

// between extracts the text between the first occurrence of open and
// the first occurrence of close.
func between(src, open, close string) string {
	start := strings.Index(src, open)
	end := strings.Index(src, close)
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return src[start+len(open) : end]
}

// betweenLast extracts between the first open and the last close,
// used for single-field bodies that may embed tag-like text.
func betweenLast(src, open, close string) string {
	start := strings.Index(src, open)
	end := strings.LastIndex(src, close)
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return src[start+len(open) : end]
}
