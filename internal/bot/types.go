// Package bot turns chat updates into poll runs, vault dialogs, summaries
// and charts. It knows nothing about the transport: a Messenger delivers
// its replies.
package bot

import "context"

type (
	// Button is one inline button; Data comes back in a Callback.
	Button struct {
		Text string
		Data string
	}

	// Row is a line of buttons.
	Row []Button

	// Message is an inbound text message.
	Message struct {
		ChatID int64
		From   string
		Text   string
	}

	// Callback is an inline button press.
	Callback struct {
		ID        string
		ChatID    int64
		MessageID int
		From      string
		Data      string
	}

	// Update carries exactly one of Message or Callback.
	Update struct {
		Message  *Message
		Callback *Callback
	}
)

// Messenger delivers replies to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, keyboard []Row) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, keyboard []Row) error
	EditPhoto(ctx context.Context, chatID int64, messageID int, png []byte, caption string, keyboard []Row) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Callback data.
const (
	dataKeep        = "keep"
	dataBack        = "back"
	dataStart       = "start"
	dataChart       = "chart"
	dataChartPrefix = "chart:"
	dataEditPrefix  = "edit:"
)

// Vault edit actions, sent as "edit:<action>[:<param>]".
const (
	actionTitle    = "title"
	actionCurrency = "currency"
	actionAmount   = "amount"
	actionActive   = "active"

	paramConfirm = "confirm"
	paramCancel  = "cancel"
)
