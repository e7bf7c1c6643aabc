package xumm

// Types mirroring the Xaman (XUMM) platform payload API wire format. Only the
// fields this service consumes are modeled; unknown fields are ignored on
// decode.

// PayloadOptions are caller-tunable options submitted at payload creation.
// ForceNetwork is always overwritten server-side with the configured network
// before the payload leaves this process.
type PayloadOptions struct {
	Submit       bool       `json:"submit"`
	Expire       int        `json:"expire,omitempty"` // minutes
	ForceNetwork string     `json:"force_network,omitempty"`
	ReturnURL    *ReturnURL `json:"return_url,omitempty"`
}

// ReturnURL carries the templates the wallet app redirects back to after
// resolving a payload. The wallet substitutes {id} with the payload uuid and
// {txid} with the transaction id.
type ReturnURL struct {
	App string `json:"app,omitempty"`
	Web string `json:"web,omitempty"`
}

// CustomMeta is opaque metadata attached to a payload, shown in the wallet
// app and echoed back on fetch.
type CustomMeta struct {
	Identifier  string `json:"identifier,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// CreatePayloadRequest is the body submitted to POST /payload.
type CreatePayloadRequest struct {
	TxJSON     map[string]any  `json:"txjson"`
	Options    *PayloadOptions `json:"options,omitempty"`
	CustomMeta *CustomMeta     `json:"custom_meta,omitempty"`
}

// CreatedPayload is the creation response: the payload id plus the transport
// handles (QR image, deep link, push channel) used during the open window.
type CreatedPayload struct {
	UUID   string      `json:"uuid"`
	Next   PayloadNext `json:"next"`
	Refs   PayloadRefs `json:"refs"`
	Pushed bool        `json:"pushed"`
}

// PayloadNext holds the deep-link URLs for a created payload.
type PayloadNext struct {
	Always            string `json:"always"`
	NoPushMsgReceived string `json:"no_push_msg_received,omitempty"`
}

// PayloadRefs holds the QR image and push-channel handles.
type PayloadRefs struct {
	QRPng           string `json:"qr_png"`
	QRMatrix        string `json:"qr_matrix,omitempty"`
	WebsocketStatus string `json:"websocket_status"`
}

// Payload is the full record returned by GET /payload/{uuid}.
type Payload struct {
	Meta     PayloadMeta     `json:"meta"`
	Payload  PayloadRequest  `json:"payload"`
	Response PayloadResponse `json:"response"`
}

// PayloadMeta carries the lifecycle flags driven by the wallet app. They are
// observed by this system, never set directly.
type PayloadMeta struct {
	UUID             string `json:"uuid"`
	Exists           bool   `json:"exists"`
	Resolved         bool   `json:"resolved"`
	Signed           bool   `json:"signed"`
	Cancelled        bool   `json:"cancelled"`
	Expired          bool   `json:"expired"`
	Pushed           bool   `json:"pushed"`
	AppOpened        bool   `json:"app_opened"`
	OpenedByDeeplink *bool  `json:"opened_by_deeplink"`
	ReturnURLApp     string `json:"return_url_app,omitempty"`
	ReturnURLWeb     string `json:"return_url_web,omitempty"`
}

// PayloadRequest echoes the unsigned transaction the payload was created with.
type PayloadRequest struct {
	TxType      string         `json:"tx_type"`
	RequestJSON map[string]any `json:"request_json"`
	CreatedAt   string         `json:"created_at,omitempty"`
	ExpiresAt   string         `json:"expires_at,omitempty"`
}

// PayloadResponse carries the signing result. Fields are populated only once
// the payload is signed.
type PayloadResponse struct {
	Hex              string `json:"hex,omitempty"`
	TxID             string `json:"txid,omitempty"`
	Account          string `json:"account,omitempty"`
	ResolvedAt       string `json:"resolved_at,omitempty"`
	DispatchedResult string `json:"dispatched_result,omitempty"`
	DispatchedTo     string `json:"dispatched_to,omitempty"`
}

// Terminal reports whether the payload has reached a terminal lifecycle state
// (signed, cancelled or expired).
func (m PayloadMeta) Terminal() bool {
	return m.Signed || m.Cancelled || m.Expired
}
