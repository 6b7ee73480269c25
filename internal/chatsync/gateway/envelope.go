package gateway

import (
	"encoding/json"
	"math"
	"strings"
)

// Opcode is a Discord gateway opcode (§4.7).
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpResume              Opcode = 6
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
	closeCodeReidentify   = 4000
	defaultHeartbeatMsAbs = 41250
)

// envelope is the gateway's `{op, t?, s?, d?}` wire frame.
type envelope struct {
	Op Opcode          `json:"op"`
	T  string          `json:"t,omitempty"`
	S  *int64          `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// fatalCloseCodes terminate the reconnect loop outright instead of
// retrying, per §4.7 step 7.
var fatalCloseCodes = map[int]bool{
	4004: true,
	4010: true,
	4011: true,
	4012: true,
	4013: true,
	4014: true,
}

func isFatalCloseCode(code int) bool {
	return fatalCloseCodes[code]
}

type helloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type readyPayload struct {
	SessionID       string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User            struct {
		ID string `json:"id"`
	} `json:"user"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type heartbeatData struct {
	Op Opcode `json:"op"`
	D  *int64 `json:"d"`
}

// messageEventPayload is the subset of a MESSAGE_CREATE/UPDATE/DELETE
// dispatch payload the consumer reads.
type messageEventPayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    struct {
		ID            string `json:"id"`
		Bot           bool   `json:"bot"`
		Username      string `json:"username"`
		GlobalName    string `json:"global_name"`
		Discriminator string `json:"discriminator"`
		Avatar        string `json:"avatar"`
	} `json:"author"`
	Attachments []rawAttachment `json:"attachments"`
}

type rawAttachment struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Size     float64 `json:"size"`
}

// Attachment is a normalized attachment per §4.7's attachment
// normalization rule.
type Attachment struct {
	Filename string
	URL      string
	Size     int64
}

// normalizeAttachments trims filename/url, coerces a non-finite or
// negative size to 0, drops entries left empty after trimming, and
// preserves input order.
func normalizeAttachments(raw []rawAttachment) []Attachment {
	out := make([]Attachment, 0, len(raw))
	for _, a := range raw {
		filename := strings.TrimSpace(a.Filename)
		url := strings.TrimSpace(a.URL)
		if filename == "" || url == "" {
			continue
		}
		size := a.Size
		if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
			size = 0
		}
		out = append(out, Attachment{Filename: filename, URL: url, Size: int64(size)})
	}
	return out
}

type reactionEventPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Emoji     struct {
		Name string `json:"name"`
	} `json:"emoji"`
	UserID string `json:"user_id"`
	Member *struct {
		User struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			GlobalName    string `json:"global_name"`
			Discriminator string `json:"discriminator"`
			Avatar        string `json:"avatar"`
		} `json:"user"`
	} `json:"member"`
	User *struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		GlobalName    string `json:"global_name"`
		Discriminator string `json:"discriminator"`
		Avatar        string `json:"avatar"`
	} `json:"user"`
}
