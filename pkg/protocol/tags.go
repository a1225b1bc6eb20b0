package protocol

// Protocol limits
const (
	// MaxMessageSize caps a single transfer (~1MB), matching the
	// largest unit the directory and sessions will accept.
	MaxMessageSize = 1024000

	// ChunkSize is the fixed file chunk unit.
	ChunkSize = 1024
)

// Default ports
const (
	// DefaultDirectoryPort is the directory server listen port.
	DefaultDirectoryPort = 3939

	// Clients pick an inbound chat port in
	// [ClientPortBase, ClientPortBase+ClientPortSpan).
	ClientPortBase = 10000
	ClientPortSpan = 1000
)

// Keep-alive status values
const (
	StatusRunning = "RUNNING"
	StatusStop    = "STOP"
)

// Typing state values
const (
	typingOn  = "ON"
	typingOff = "OFF"
)

// Tag pairs of the wire grammar. Composite messages concatenate
// wrapped fields inside an outer wrapper; self-closing tags stand
// alone.
const (
	sessionOpen  = "<SESSION_REQ>"
	sessionClose = "</SESSION_REQ>"

	peerNameOpen  = "<PEER_NAME>"
	peerNameClose = "</PEER_NAME>"
	portOpen      = "<PORT>"
	portClose     = "</PORT>"

	keepAliveOpen  = "<SESSION_KEEP_ALIVE>"
	keepAliveClose = "</SESSION_KEEP_ALIVE>"
	statusOpen     = "<STATUS>"
	statusClose    = "</STATUS>"

	sessionDenyTag     = "<SESSION_DENY />"
	sessionAcceptOpen  = "<SESSION_ACCEPT>"
	sessionAcceptClose = "</SESSION_ACCEPT>"

	peerOpen  = "<PEER>"
	peerClose = "</PEER>"
	ipOpen    = "<IP>"
	ipClose   = "</IP>"

	chatReqOpen   = "<CHAT_REQ>"
	chatReqClose  = "</CHAT_REQ>"
	chatDenyTag   = "<CHAT_DENY />"
	chatAcceptTag = "<CHAT_ACCEPT />"
	chatCloseTag  = "<CHAT_CLOSE />"

	chatMsgOpen  = "<CHAT_MSG>"
	chatMsgClose = "</CHAT_MSG>"

	chatEditOpen  = "<CHAT_EDIT>"
	chatEditClose = "</CHAT_EDIT>"
	oldOpen       = "<OLD>"
	oldClose      = "</OLD>"
	newOpen       = "<NEW>"
	newClose      = "</NEW>"

	chatDeleteOpen  = "<CHAT_DELETE>"
	chatDeleteClose = "</CHAT_DELETE>"
	bodyOpen        = "<BODY>"
	bodyClose       = "</BODY>"

	typingOpen  = "<TYPING>"
	typingClose = "</TYPING>"
	stateOpen   = "<STATE>"
	stateClose  = "</STATE>"

	reactionOpen  = "<CHAT_REACTION>"
	reactionClose = "</CHAT_REACTION>"
	targetOpen    = "<TARGET>"
	targetClose   = "</TARGET>"
	emojiOpen     = "<EMOJI>"
	emojiClose    = "</EMOJI>"

	chatClearTag = "<CHAT_CLEAR />"

	fileReqOpen  = "<FILE_REQ>"
	fileReqClose = "</FILE_REQ>"
	fileAckOpen  = "<FILE_REQ_ACK>"
	fileAckClose = "</FILE_REQ_ACK>"
	fileBeginTag = "<FILE_DATA_BEGIN />"
	fileCloseTag = "<FILE_DATA_CLOSE />"
)
